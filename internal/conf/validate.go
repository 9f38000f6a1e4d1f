// validate.go: validation of the loaded settings.
package conf

import (
	"fmt"
	"strconv"

	"github.com/baseera/baseera-go/internal/errors"
)

// ValidateSettings checks the loaded settings for values that would only fail
// later at runtime. It normalizes what it safely can and rejects the rest.
func ValidateSettings(settings *Settings) error {
	var errs []error

	if err := validateModelSettings(&settings.Model); err != nil {
		errs = append(errs, err)
	}
	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		errs = append(errs, err)
	}
	if err := validateDishes(settings.Dishes); err != nil {
		errs = append(errs, err)
	}
	if settings.Storage.DataDir == "" {
		errs = append(errs, fmt.Errorf("storage.datadir must not be empty"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateModelSettings(m *ModelSettings) error {
	if m.InputSize <= 0 {
		return fmt.Errorf("model.inputsize must be positive, got %d", m.InputSize)
	}
	if m.Threads < 0 {
		return fmt.Errorf("model.threads must not be negative, got %d", m.Threads)
	}
	// Note: a missing model file is not a validation error, the classifier
	// degrades to the error sentinel instead.
	return nil
}

func validateWebServerSettings(w *WebServerSettings) error {
	if !w.Enabled {
		return nil
	}
	port, err := strconv.Atoi(w.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("webserver.port must be a number between 1 and 65535, got %q", w.Port)
	}
	if w.AnalyzeLimit.RPS < 0 {
		return fmt.Errorf("webserver.analyzelimit.rps must not be negative, got %g", w.AnalyzeLimit.RPS)
	}
	if w.AnalyzeLimit.Burst < 0 {
		return fmt.Errorf("webserver.analyzelimit.burst must not be negative, got %d", w.AnalyzeLimit.Burst)
	}
	// An empty session secret is filled in with a generated one so sessions
	// survive within a single process run.
	if w.SessionSecret == "" {
		w.SessionSecret = GenerateRandomSecret()
	}
	return nil
}

func validateDishes(dishes []DishConfig) error {
	if len(dishes) == 0 {
		return fmt.Errorf("dishes catalog must contain at least one entry")
	}
	seen := make(map[string]bool, len(dishes))
	for i := range dishes {
		d := &dishes[i]
		if d.ID == "" || d.Name == "" {
			return fmt.Errorf("dish entry %d must have both id and name", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate dish id %q", d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}
