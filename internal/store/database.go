package store

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/baseera/baseera-go/internal/errors"
)

// openMirror sets up the SQLite mirror database connection and migrates the
// records table.
func (s *Store) openMirror() error {
	dir := filepath.Dir(s.settings.Output.SQLite.Path)
	if dir != "." {
		// Directory creation failures surface on gorm.Open below.
		_ = ensureDir(dir)
	}

	db, err := gorm.Open(sqlite.Open(s.settings.Output.SQLite.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Context("path", s.settings.Output.SQLite.Path).
			Build()
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return errors.New(err).
			Category(errors.CategoryDatabase).
			Context("path", s.settings.Output.SQLite.Path).
			Build()
	}

	s.db = db
	s.logger.Info("SQLite mirror initialized", "path", s.settings.Output.SQLite.Path)
	return nil
}

// mirror replaces the mirrored table contents with the given collection.
// The JSON dataset is authoritative, so mirror failures are logged and
// otherwise ignored.
func (s *Store) mirror(records []Record) {
	if s.db == nil {
		return
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&Record{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(&records).Error
	})
	if err != nil {
		s.logger.Warn("Failed to mirror records to SQLite",
			"error", err.Error(), "records", len(records))
		return
	}
	s.metrics.IncStoreWrite("mirror")
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
