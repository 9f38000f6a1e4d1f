package httpcontroller

import (
	"bytes"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/baseera/baseera-go/internal/catalog"
	"github.com/baseera/baseera-go/internal/store"
	"github.com/baseera/baseera-go/internal/wizard"
)

// stateResponse describes the session's wizard position for the frontend.
type stateResponse struct {
	Step         string        `json:"step"`
	SelectedDish *catalog.Dish `json:"selected_dish,omitempty"`
	RecordCount  int           `json:"record_count"`
}

func (s *Server) initRoutes() {
	api := s.Echo.Group("/api/v1")

	api.GET("/health", s.handleHealth)
	api.GET("/state", s.handleState)
	api.GET("/dishes", s.handleDishes)
	api.POST("/dish/:id", s.handleSelectDish)
	api.POST("/back", s.handleBack)
	api.POST("/analyze", s.handleAnalyze, s.rateLimitAnalyze)
	api.POST("/clear", s.handleClear)
	api.GET("/records", s.handleRecords)
	api.GET("/records/export", s.handleExport)
	api.GET("/charts", s.handleCharts)
	api.GET("/charts/:file", s.handleChartImage)

	if s.Metrics != nil {
		s.Echo.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
	}

	s.Echo.Static("/images", s.Settings.ImagesDir())
	s.Echo.Static("/assets", s.Settings.Dashboard.AssetsDir)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":          "ok",
		"model_available": s.Classifier.Available(),
	})
}

func (s *Server) handleState(c echo.Context) error {
	state, err := s.sessions.state(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.stateOf(state))
}

func (s *Server) handleDishes(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Catalog.Dishes())
}

func (s *Server) handleSelectDish(c echo.Context) error {
	state, err := s.sessions.state(c)
	if err != nil {
		return err
	}
	s.Wizard.SelectDish(state, c.Param("id"))
	return c.JSON(http.StatusOK, s.stateOf(state))
}

func (s *Server) handleBack(c echo.Context) error {
	state, err := s.sessions.state(c)
	if err != nil {
		return err
	}
	s.Wizard.GoBack(state)
	return c.JSON(http.StatusOK, s.stateOf(state))
}

// handleAnalyze accepts a multipart upload under the "image" field and runs
// one classification. Invalid actions come back as 400 with the unchanged
// state, matching the no-op contract.
func (s *Server) handleAnalyze(c echo.Context) error {
	state, err := s.sessions.state(c)
	if err != nil {
		return err
	}

	imageData, err := s.readUpload(c)
	if err != nil {
		s.webLogger.Warn("Rejecting analyze upload", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "image upload required"})
	}

	record, ok := s.Wizard.Analyze(state, imageData)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "select a dish and supply an image first",
			"state": s.stateOf(state),
		})
	}
	return c.JSON(http.StatusCreated, record)
}

func (s *Server) handleClear(c echo.Context) error {
	s.Wizard.ClearHistory()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRecords(c echo.Context) error {
	records := s.Wizard.Records()
	if records == nil {
		records = []store.Record{}
	}
	return c.JSON(http.StatusOK, records)
}

// handleExport streams the record collection as a CSV download. An empty
// collection yields 204, the frontend disables the button on that.
func (s *Server) handleExport(c echo.Context) error {
	var buf bytes.Buffer
	wrote, err := s.Wizard.ExportCSV(&buf)
	if err != nil {
		return err
	}
	if !wrote {
		return c.NoContent(http.StatusNoContent)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="dataset.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) handleCharts(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Gallery.Charts())
}

func (s *Server) handleChartImage(c echo.Context) error {
	uri, err := s.Gallery.DataURI(c.Param("file"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown chart"})
	}
	return c.JSON(http.StatusOK, map[string]string{"uri": uri})
}

func (s *Server) stateOf(state *wizard.SessionState) stateResponse {
	resp := stateResponse{
		Step:        state.Step.String(),
		RecordCount: len(s.Wizard.Records()),
	}
	if state.HasDish() {
		dish := state.SelectedDish
		resp.SelectedDish = &dish
	}
	return resp
}

// readUpload extracts the uploaded image bytes from the multipart form.
func (s *Server) readUpload(c echo.Context) ([]byte, error) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return nil, err
	}
	f, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
