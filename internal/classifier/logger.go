package classifier

import (
	"log/slog"
	"sync"

	"github.com/baseera/baseera-go/internal/logging"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

// GetLogger returns the package logger, scoped to the classifier service.
func GetLogger() *slog.Logger {
	loggerOnce.Do(func() {
		logger = logging.ForService("classifier")
	})
	return logger
}
