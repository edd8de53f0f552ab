package config

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationErrors collects all validation errors
type ValidationErrors struct {
	InvalidLocations []string
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return len(e.InvalidLocations) > 0
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")

	if len(e.InvalidLocations) > 0 {
		sb.WriteString("\nInvalid locations:\n")
		for _, l := range e.InvalidLocations {
			sb.WriteString(fmt.Sprintf("  - %s\n", l))
		}
		sb.WriteString(fmt.Sprintf("\nValid locations: %s\n", validLocationsList()))
	}

	return sb.String()
}

// ValidateLocations checks each configured location against the catalog.
func ValidateLocations(locations []string) error {
	errs := &ValidationErrors{}

	if len(locations) == 0 {
		return fmt.Errorf("at least one location is required")
	}

	for _, loc := range locations {
		if !ValidLocations[loc] {
			errs.InvalidLocations = append(errs.InvalidLocations, loc)
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validLocationsList() string {
	locations := make([]string, 0, len(ValidLocations))
	for l := range ValidLocations {
		locations = append(locations, l)
	}
	sort.Strings(locations)
	return strings.Join(locations, ", ")
}
