package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvValidator checks that LMO_* environment variables, when set, are
// well-formed before they reach the configuration decoder
type EnvValidator struct{}

// NewEnvValidator creates a new environment validator instance
func NewEnvValidator() *EnvValidator {
	return &EnvValidator{}
}

var (
	durationVars = []string{"LMO_REQUEST_TIMEOUT", "LMO_STREAM_WAIT_TIMEOUT"}
	intVars      = []string{"LMO_MAX_STREAM_TIMEOUTS"}
	boolVars     = []string{"LMO_NO_COLOR"}
)

// ValidateFormats returns an error listing every malformed variable
func (e *EnvValidator) ValidateFormats() error {
	var problems []string

	for _, name := range durationVars {
		if value := os.Getenv(name); value != "" {
			if _, err := time.ParseDuration(value); err != nil {
				problems = append(problems, fmt.Sprintf("%s must be a duration such as 30s, got: %s", name, value))
			}
		}
	}

	for _, name := range intVars {
		if value := os.Getenv(name); value != "" {
			if _, err := strconv.Atoi(value); err != nil {
				problems = append(problems, fmt.Sprintf("%s must be a valid integer, got: %s", name, value))
			}
		}
	}

	for _, name := range boolVars {
		if value := os.Getenv(name); value != "" {
			if _, err := strconv.ParseBool(value); err != nil {
				problems = append(problems, fmt.Sprintf("%s must be true or false, got: %s", name, value))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid environment variables: %s", strings.Join(problems, "; "))
	}
	return nil
}
