// Package wizard implements the two step analysis flow: pick a dish, upload
// a plate photo, store the classification outcome. Invalid actions are
// no-ops, never errors, so the driving layer needs no failure handling.
package wizard

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/baseera/baseera-go/internal/catalog"
	"github.com/baseera/baseera-go/internal/classifier"
	"github.com/baseera/baseera-go/internal/imageproc"
	"github.com/baseera/baseera-go/internal/logging"
	"github.com/baseera/baseera-go/internal/observability"
	"github.com/baseera/baseera-go/internal/store"
)

// Step identifies the current position in the flow.
type Step int

const (
	// StepSelectingDish is the initial state, no dish chosen yet.
	StepSelectingDish Step = iota
	// StepAnalyzing is entered once a dish has been selected.
	StepAnalyzing
)

func (s Step) String() string {
	switch s {
	case StepSelectingDish:
		return "selecting_dish"
	case StepAnalyzing:
		return "analyzing"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// SessionState holds the per session wizard position. The record collection
// is shared across sessions and lives on the Wizard itself.
type SessionState struct {
	Step         Step
	SelectedDish catalog.Dish
}

// HasDish reports whether a dish is currently selected.
func (s *SessionState) HasDish() bool {
	return s.SelectedDish.ID != ""
}

// Wizard owns the in-memory record collection and keeps it synchronized with
// the store on every mutation. Access is serialized with a mutex so multiple
// web sessions can share one Wizard.
type Wizard struct {
	mu         sync.Mutex
	records    []store.Record
	store      *store.Store
	classifier *classifier.Classifier
	catalog    *catalog.Catalog
	metrics    *observability.Metrics
	logger     *slog.Logger

	// now is replaceable for tests.
	now func() time.Time
}

// New loads the persisted record collection and returns a ready Wizard.
func New(st *store.Store, cls *classifier.Classifier, cat *catalog.Catalog, metrics *observability.Metrics) *Wizard {
	w := &Wizard{
		records:    st.LoadAll(),
		store:      st,
		classifier: cls,
		catalog:    cat,
		metrics:    metrics,
		logger:     logging.ForService("wizard"),
		now:        time.Now,
	}
	metrics.SetRecordCount(len(w.records))
	return w
}

// NewSession returns a fresh session positioned at dish selection.
func (w *Wizard) NewSession() *SessionState {
	return &SessionState{Step: StepSelectingDish}
}

// SelectDish sets the current dish and moves the session to analysis.
// Unknown dish ids are ignored.
func (w *Wizard) SelectDish(sess *SessionState, dishID string) {
	dish, ok := w.catalog.Get(dishID)
	if !ok {
		w.logger.Debug("Ignoring unknown dish id", "dish_id", dishID)
		return
	}
	sess.SelectedDish = dish
	sess.Step = StepAnalyzing
}

// GoBack returns the session to dish selection. A no-op unless the session
// is analyzing.
func (w *Wizard) GoBack(sess *SessionState) {
	if sess.Step != StepAnalyzing {
		return
	}
	sess.SelectedDish = catalog.Dish{}
	sess.Step = StepSelectingDish
}

// Analyze classifies the uploaded image, persists it together with a new
// record, and prepends the record to the collection. It returns the created
// record and true, or a zero record and false when the action is invalid
// (wrong step, no image). Classification failure is not invalid: the record
// is still created, carrying the error sentinel.
func (w *Wizard) Analyze(sess *SessionState, imageData []byte) (store.Record, bool) {
	if sess.Step != StepAnalyzing || !sess.HasDish() || len(imageData) == 0 {
		return store.Record{}, false
	}

	result := w.classify(imageData)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	id := w.newRecordID(now)

	imagePath, err := w.store.SaveImage(imageData, id)
	if err != nil {
		// The record is kept even when the image could not be stored.
		w.logger.Warn("Failed to persist uploaded image", "record_id", id, "error", err)
		imagePath = w.store.ImagePath(id)
	}

	record := store.Record{
		ID:         id,
		Date:       now.Format("2006-01-02"),
		Time:       now.Format("15:04:05"),
		Dish:       sess.SelectedDish.Name,
		Image:      imagePath,
		Result:     result.Label,
		Confidence: roundConfidence(result.Confidence),
	}

	w.records = append([]store.Record{record}, w.records...)
	if err := w.store.SaveAll(w.records); err != nil {
		w.logger.Error("Failed to persist record collection", "record_id", id, "error", err)
	}

	w.metrics.RecordAnalysis(record.Dish, record.Result)
	w.logger.Info("Analysis complete",
		"record_id", id,
		"dish", record.Dish,
		"result", record.Result,
		"confidence", record.Confidence)
	return record, true
}

// ClearHistory empties the in-memory and persisted record collections.
// Valid from any step. Stored image files are left in place.
func (w *Wizard) ClearHistory() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.records = []store.Record{}
	if err := w.store.SaveAll(w.records); err != nil {
		w.logger.Error("Failed to clear persisted records", "error", err)
	}
}

// ExportCSV writes the record collection as CSV. A no-op returning false
// when the collection is empty.
func (w *Wizard) ExportCSV(out io.Writer) (bool, error) {
	w.mu.Lock()
	records := make([]store.Record, len(w.records))
	copy(records, w.records)
	w.mu.Unlock()

	if len(records) == 0 {
		return false, nil
	}
	if err := store.ExportCSV(out, records); err != nil {
		return false, err
	}
	return true, nil
}

// Records returns a copy of the record collection, newest first.
func (w *Wizard) Records() []store.Record {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]store.Record, len(w.records))
	copy(out, w.records)
	return out
}

// classify decodes the upload and runs the model. Decode failure degrades to
// the sentinel, same as model failure.
func (w *Wizard) classify(imageData []byte) classifier.Result {
	img, err := imageproc.Decode(imageData)
	if err != nil {
		w.logger.Warn("Uploaded image could not be decoded", "error", err)
		return classifier.Result{Label: classifier.SentinelLabel, Confidence: classifier.SentinelConfidence}
	}
	return w.classifier.Classify(img)
}

// newRecordID derives a record id from the wall clock. Two analyses within
// the same second get a numeric suffix so ids stay unique and image files
// are never overwritten. Caller holds w.mu.
func (w *Wizard) newRecordID(now time.Time) string {
	base := "pred_" + now.Format("20060102_150405")
	id := base
	for n := 1; w.idTaken(id); n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	return id
}

func (w *Wizard) idTaken(id string) bool {
	for i := range w.records {
		if w.records[i].ID == id {
			return true
		}
	}
	return false
}

func roundConfidence(v float64) float64 {
	return math.Round(v*100) / 100
}
