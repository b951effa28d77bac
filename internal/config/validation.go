package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/muurk/trellis/internal/webapp"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks struct tags and then the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if cfg.Version != currentVersion {
		return fmt.Errorf("version: unsupported config version %d (expected %d)", cfg.Version, currentVersion)
	}

	if len(cfg.Handlers) == 0 {
		return fmt.Errorf("handlers: at least one handler must be configured")
	}

	seen := make(map[string]int)
	for i, h := range cfg.Handlers {
		if !webapp.Known(h.Type) {
			return fmt.Errorf("handlers[%d]: unknown handler type %q (known: %s)",
				i, h.Type, strings.Join(webapp.Types(), ", "))
		}
		if err := checkLocations(h.Location); err != nil {
			return fmt.Errorf("handlers[%d]: %w", i, err)
		}
		for _, loc := range strings.Fields(h.Location) {
			if prev, dup := seen[loc]; dup {
				return fmt.Errorf("handlers[%d]: location %q already used by handlers[%d]", i, loc, prev)
			}
			seen[loc] = i
		}
	}

	wsSeen := make(map[string]int)
	for i, w := range cfg.WebSocket {
		if err := checkLocations(w.Location); err != nil {
			return fmt.Errorf("websocket[%d]: %w", i, err)
		}
		for _, loc := range strings.Fields(w.Location) {
			if prev, dup := wsSeen[loc]; dup {
				return fmt.Errorf("websocket[%d]: location %q already used by websocket[%d]", i, loc, prev)
			}
			wsSeen[loc] = i
		}
	}

	if (cfg.TLS.Cert == "") != (cfg.TLS.Key == "") {
		return fmt.Errorf("tls: cert and key must be set together")
	}

	if cfg.Sessions.Store == "badger" && cfg.Sessions.Dir == "" {
		return fmt.Errorf("sessions: dir is required for the badger store")
	}

	return nil
}

func checkLocations(location string) error {
	fields := strings.Fields(location)
	if len(fields) == 0 {
		return fmt.Errorf("location must not be empty")
	}
	for _, loc := range fields {
		if !strings.HasPrefix(loc, "/") {
			return fmt.Errorf("location %q must start with /", loc)
		}
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
