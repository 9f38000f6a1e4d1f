package httpcontroller

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/baseera/baseera-go/internal/catalog"
	"github.com/baseera/baseera-go/internal/charts"
	"github.com/baseera/baseera-go/internal/classifier"
	"github.com/baseera/baseera-go/internal/conf"
	"github.com/baseera/baseera-go/internal/store"
	"github.com/baseera/baseera-go/internal/wizard"
)

// testClient drives the API through the echo handler, replaying session
// cookies like a browser would.
type testClient struct {
	t       *testing.T
	server  *Server
	cookies []*http.Cookie
}

func testServerSettings(t *testing.T) *conf.Settings {
	t.Helper()
	dir := t.TempDir()
	return &conf.Settings{
		Model: conf.ModelSettings{
			Path:      filepath.Join(dir, "missing.tflite"),
			LabelPath: filepath.Join(dir, "missing_labels.txt"),
			InputSize: 224,
		},
		Storage: conf.StorageSettings{DataDir: filepath.Join(dir, "food_data")},
		Dashboard: conf.DashboardSettings{
			ChartsDir: filepath.Join(dir, "charts"),
			AssetsDir: filepath.Join(dir, "assets"),
		},
		WebServer: conf.WebServerSettings{Enabled: true, Port: "0"},
		Dishes: []conf.DishConfig{
			{ID: "pizza", Name: "Pizza", Image: "foods/pizza.jpg"},
			{ID: "salad", Name: "Salad", Image: "foods/salad.jpg"},
		},
	}
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	return newTestClientWithSettings(t, testServerSettings(t))
}

func newTestClientWithSettings(t *testing.T, settings *conf.Settings) *testClient {
	t.Helper()

	st, err := store.New(settings, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cls := classifier.New(settings, nil)
	cat := catalog.New(settings)
	wiz := wizard.New(st, cls, cat, nil)

	gallery, err := charts.New(settings)
	require.NoError(t, err)
	t.Cleanup(func() { gallery.Close() })

	return &testClient{
		t:      t,
		server: New(settings, wiz, cat, cls, gallery, nil),
	}
}

func (tc *testClient) do(method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	tc.t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	for _, cookie := range tc.cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	tc.server.Echo.ServeHTTP(rec, req)
	if cookies := rec.Result().Cookies(); len(cookies) > 0 {
		tc.cookies = cookies
	}
	return rec
}

func (tc *testClient) get(path string) *httptest.ResponseRecorder {
	return tc.do(http.MethodGet, path, nil, "")
}

func (tc *testClient) post(path string) *httptest.ResponseRecorder {
	return tc.do(http.MethodPost, path, nil, "")
}

func (tc *testClient) analyze(imageData []byte) *httptest.ResponseRecorder {
	tc.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "plate.jpg")
	require.NoError(tc.t, err)
	_, err = fw.Write(imageData)
	require.NoError(tc.t, err)
	require.NoError(tc.t, mw.Close())
	return tc.do(http.MethodPost, "/api/v1/analyze", &buf, mw.FormDataContentType())
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func jpegUpload(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 180, G: 90, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	tc := newTestClient(t)
	rec := tc.get("/api/v1/health")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["model_available"])
}

func TestDishes(t *testing.T) {
	tc := newTestClient(t)
	rec := tc.get("/api/v1/dishes")

	require.Equal(t, http.StatusOK, rec.Code)
	dishes := decodeJSON[[]catalog.Dish](t, rec)
	require.Len(t, dishes, 2)
	assert.Equal(t, "pizza", dishes[0].ID)
}

func TestInitialState(t *testing.T) {
	tc := newTestClient(t)
	rec := tc.get("/api/v1/state")

	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeJSON[stateResponse](t, rec)
	assert.Equal(t, "selecting_dish", state.Step)
	assert.Nil(t, state.SelectedDish)
	assert.Zero(t, state.RecordCount)
}

func TestSelectDishAndBack(t *testing.T) {
	tc := newTestClient(t)

	rec := tc.post("/api/v1/dish/pizza")
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeJSON[stateResponse](t, rec)
	assert.Equal(t, "analyzing", state.Step)
	require.NotNil(t, state.SelectedDish)
	assert.Equal(t, "Pizza", state.SelectedDish.Name)

	rec = tc.post("/api/v1/back")
	require.Equal(t, http.StatusOK, rec.Code)
	state = decodeJSON[stateResponse](t, rec)
	assert.Equal(t, "selecting_dish", state.Step)
	assert.Nil(t, state.SelectedDish)
}

func TestSelectUnknownDishKeepsState(t *testing.T) {
	tc := newTestClient(t)

	rec := tc.post("/api/v1/dish/sushi")
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeJSON[stateResponse](t, rec)
	assert.Equal(t, "selecting_dish", state.Step)
}

func TestAnalyzeWithoutDishRejected(t *testing.T) {
	tc := newTestClient(t)
	rec := tc.analyze(jpegUpload(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeWithoutUploadRejected(t *testing.T) {
	tc := newTestClient(t)
	tc.post("/api/v1/dish/pizza")

	rec := tc.post("/api/v1/analyze")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeFlow(t *testing.T) {
	tc := newTestClient(t)
	tc.post("/api/v1/dish/pizza")

	rec := tc.analyze(jpegUpload(t))
	require.Equal(t, http.StatusCreated, rec.Code)
	record := decodeJSON[store.Record](t, rec)
	assert.Equal(t, "Pizza", record.Dish)
	assert.Equal(t, classifier.SentinelLabel, record.Result)
	assert.NotEmpty(t, record.ID)

	rec = tc.get("/api/v1/records")
	require.Equal(t, http.StatusOK, rec.Code)
	records := decodeJSON[[]store.Record](t, rec)
	require.Len(t, records, 1)
	assert.Equal(t, record.ID, records[0].ID)

	rec = tc.get("/api/v1/state")
	state := decodeJSON[stateResponse](t, rec)
	assert.Equal(t, 1, state.RecordCount)
}

func TestExportEmptyIsNoContent(t *testing.T) {
	tc := newTestClient(t)
	rec := tc.get("/api/v1/records/export")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestExportAfterAnalyze(t *testing.T) {
	tc := newTestClient(t)
	tc.post("/api/v1/dish/salad")
	require.Equal(t, http.StatusCreated, tc.analyze(jpegUpload(t)).Code)

	rec := tc.get("/api/v1/records/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "dataset.csv")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte{0xEF, 0xBB, 0xBF}))
	assert.Contains(t, rec.Body.String(), "Salad")
}

func TestClearHistory(t *testing.T) {
	tc := newTestClient(t)
	tc.post("/api/v1/dish/pizza")
	require.Equal(t, http.StatusCreated, tc.analyze(jpegUpload(t)).Code)

	rec := tc.post("/api/v1/clear")
	require.Equal(t, http.StatusNoContent, rec.Code)

	records := decodeJSON[[]store.Record](t, tc.get("/api/v1/records"))
	assert.Empty(t, records)
}

func TestChartsEmpty(t *testing.T) {
	tc := newTestClient(t)
	rec := tc.get("/api/v1/charts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeJSON[[]charts.Chart](t, rec))
}

func TestChartImageNotFound(t *testing.T) {
	tc := newTestClient(t)
	rec := tc.get("/api/v1/charts/missing.png")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionsAreIndependent(t *testing.T) {
	tc := newTestClient(t)
	other := &testClient{t: t, server: tc.server}

	tc.post("/api/v1/dish/pizza")

	state := decodeJSON[stateResponse](t, other.get("/api/v1/state"))
	assert.Equal(t, "selecting_dish", state.Step, "second browser starts fresh")
}

func TestAnalyzeLimiterFollowsSettings(t *testing.T) {
	settings := testServerSettings(t)
	settings.WebServer.AnalyzeLimit = conf.RateLimitSettings{RPS: 0.5, Burst: 3}

	tc := newTestClientWithSettings(t, settings)
	assert.Equal(t, rate.Limit(0.5), tc.server.analyzeLimiter.Limit())
	assert.Equal(t, 3, tc.server.analyzeLimiter.Burst())
}

func TestAnalyzeLimiterDefaultsWhenUnset(t *testing.T) {
	tc := newTestClient(t)
	assert.Equal(t, rate.Limit(2), tc.server.analyzeLimiter.Limit())
	assert.Equal(t, 5, tc.server.analyzeLimiter.Burst())
}

func TestAnalyzeRateLimited(t *testing.T) {
	settings := testServerSettings(t)
	// One request allowed, the refill rate is effectively zero.
	settings.WebServer.AnalyzeLimit = conf.RateLimitSettings{RPS: 0.000001, Burst: 1}

	tc := newTestClientWithSettings(t, settings)
	tc.post("/api/v1/dish/pizza")

	require.Equal(t, http.StatusCreated, tc.analyze(jpegUpload(t)).Code)
	assert.Equal(t, http.StatusTooManyRequests, tc.analyze(jpegUpload(t)).Code)
}

func TestEvictedSessionStartsFresh(t *testing.T) {
	tc := newTestClient(t)
	tc.post("/api/v1/dish/pizza")

	state := decodeJSON[stateResponse](t, tc.get("/api/v1/state"))
	require.Equal(t, "analyzing", state.Step)

	// Stand in for the idle-session sweep.
	tc.server.sessions.states.Flush()

	state = decodeJSON[stateResponse](t, tc.get("/api/v1/state"))
	assert.Equal(t, "selecting_dish", state.Step)
}

func TestSessionStateBoundedByCache(t *testing.T) {
	tc := newTestClient(t)
	tc.get("/api/v1/state")
	require.Equal(t, 1, tc.server.sessions.states.ItemCount())

	other := &testClient{t: t, server: tc.server}
	other.get("/api/v1/state")
	assert.Equal(t, 2, tc.server.sessions.states.ItemCount())

	tc.server.sessions.states.Flush()
	assert.Zero(t, tc.server.sessions.states.ItemCount())
}
