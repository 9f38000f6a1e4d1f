package charts

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baseera/baseera-go/internal/conf"
)

func testGallery(t *testing.T) (*Gallery, string) {
	t.Helper()
	dir := t.TempDir()
	settings := &conf.Settings{
		Dashboard: conf.DashboardSettings{ChartsDir: dir},
	}
	g, err := New(settings)
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g, dir
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestChartsListsImagesSorted(t *testing.T) {
	g, dir := testGallery(t)

	writePNG(t, filepath.Join(dir, "weekly_trend.png"))
	writePNG(t, filepath.Join(dir, "dish_breakdown.png"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644))

	charts := g.Charts()
	require.Len(t, charts, 2, "non-image files are excluded")
	assert.Equal(t, "dish_breakdown.png", charts[0].File)
	assert.Equal(t, "weekly_trend.png", charts[1].File)
}

func TestChartsEmptyWhenDirectoryMissing(t *testing.T) {
	settings := &conf.Settings{
		Dashboard: conf.DashboardSettings{ChartsDir: filepath.Join(t.TempDir(), "nope")},
	}
	g, err := New(settings)
	require.NoError(t, err)
	defer g.Close()

	assert.Empty(t, g.Charts())
}

func TestTitleFromName(t *testing.T) {
	assert.Equal(t, "Weekly Waste Trend", titleFromName("weekly_waste_trend"))
	assert.Equal(t, "Dish Breakdown", titleFromName("dish-breakdown"))
	assert.Equal(t, "Overview", titleFromName("overview"))
}

func TestDataURI(t *testing.T) {
	g, dir := testGallery(t)
	writePNG(t, filepath.Join(dir, "chart.png"))

	uri, err := g.DataURI("chart.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	// Second call is served from cache.
	again, err := g.DataURI("chart.png")
	require.NoError(t, err)
	assert.Equal(t, uri, again)
}

func TestDataURIRejectsTraversal(t *testing.T) {
	g, _ := testGallery(t)

	for _, name := range []string{"../secret.png", "sub/chart.png", "", "."} {
		_, err := g.DataURI(name)
		assert.Error(t, err, "name %q must be rejected", name)
	}
}

func TestDataURIMissingChart(t *testing.T) {
	g, _ := testGallery(t)
	_, err := g.DataURI("missing.png")
	assert.Error(t, err)
}
