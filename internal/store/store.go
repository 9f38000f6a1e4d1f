// Package store owns the durable representation of analysis records and the
// persisted plate images.
//
// The authoritative store is a JSON dataset file holding the full record
// collection, newest first, rewritten atomically on every mutation. An
// optional SQLite mirror keeps a queryable copy for external tooling.
package store

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/baseera/baseera-go/internal/conf"
	"github.com/baseera/baseera-go/internal/errors"
	"github.com/baseera/baseera-go/internal/imageproc"
	"github.com/baseera/baseera-go/internal/logging"
	"github.com/baseera/baseera-go/internal/observability"
	"gorm.io/gorm"
)

// Store persists the record collection and uploaded images. Designed for a
// single writer process; concurrent processes are out of scope.
type Store struct {
	settings *conf.Settings
	metrics  *observability.Metrics
	logger   *slog.Logger
	db       *gorm.DB // optional SQLite mirror, nil when disabled
	mu       sync.Mutex
}

// New creates the storage directories and, when enabled, opens the SQLite
// mirror. A mirror that fails to open is logged and disabled, never fatal.
func New(settings *conf.Settings, metrics *observability.Metrics) (*Store, error) {
	s := &Store{
		settings: settings,
		metrics:  metrics,
		logger:   logging.ForService("store"),
	}

	for _, dir := range []string{settings.Storage.DataDir, settings.ImagesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryFileIO).
				Context("dir", dir).
				Build()
		}
	}

	if settings.Output.SQLite.Enabled {
		if err := s.openMirror(); err != nil {
			s.logger.Warn("SQLite mirror unavailable, continuing with JSON store only",
				"error", err.Error(), "path", settings.Output.SQLite.Path)
			s.db = nil
		}
	}

	return s, nil
}

// LoadAll reads the full persisted collection. A missing or unreadable
// dataset file yields an empty collection, never an error.
func (s *Store) LoadAll() []Record {
	data, err := os.ReadFile(s.settings.DatasetPath())
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read dataset file, starting with empty history",
				"error", err.Error(), "path", s.settings.DatasetPath())
		}
		return []Record{}
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		// No partial recovery attempt, a malformed dataset is treated as empty.
		s.logger.Warn("Dataset file is malformed, starting with empty history",
			"error", err.Error(), "path", s.settings.DatasetPath())
		return []Record{}
	}
	if records == nil {
		records = []Record{}
	}
	return records
}

// SaveAll atomically overwrites the persisted collection with the given
// ordered sequence.
func (s *Store) SaveAll(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if records == nil {
		records = []Record{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("records", len(records)).
			Build()
	}

	if err := s.writeFileAtomic(s.settings.DatasetPath(), data); err != nil {
		return err
	}

	s.metrics.IncStoreWrite("dataset")
	s.metrics.SetRecordCount(len(records))
	s.mirror(records)
	return nil
}

// SaveImage normalizes the uploaded image to a 3-channel JPEG and persists it
// as {recordID}.jpg in the images directory, silently overwriting any
// existing file with that name. It returns the stored path.
func (s *Store) SaveImage(data []byte, recordID string) (string, error) {
	img, err := imageproc.Decode(data)
	if err != nil {
		return "", err
	}

	path := s.ImagePath(recordID)

	var buf bytes.Buffer
	if err := imageproc.EncodeJPEG(&buf, imageproc.ToRGB(img)); err != nil {
		return "", err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", errors.New(err).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	s.metrics.IncStoreWrite("image")
	return path, nil
}

// ImagePath returns the canonical location of the image for a record id.
func (s *Store) ImagePath(recordID string) string {
	return filepath.Join(s.settings.ImagesDir(), recordID+".jpg")
}

// writeFileAtomic writes data to a temporary file in the target directory and
// renames it into place.
func (s *Store) writeFileAtomic(path string, data []byte) error {
	tempFile, err := os.CreateTemp(filepath.Dir(path), "dataset-*.json")
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("path", tempFileName).
			Build()
	}
	if err := tempFile.Close(); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("path", tempFileName).
			Build()
	}

	if err := os.Rename(tempFileName, path); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return nil
}

// Close releases the SQLite mirror connection if one is open.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
