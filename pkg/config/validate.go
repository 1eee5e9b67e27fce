package config

import (
	"fmt"
	"net/url"
	"strings"
)

// FieldError represents a validation error for a specific field of the
// gateway document.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "providers[0].base_url").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a gateway
// document. It implements the error interface and provides access to all
// field errors.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "gateway config validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("gateway config validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("gateway config validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks a gateway document and returns a ValidationError if any
// rule fails. All errors are collected and returned together.
func Validate(cfg *GatewayConfig) error {
	var errs []FieldError

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, FieldError{
			Field:   "port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", cfg.Port),
		})
	}

	for i, p := range cfg.Providers {
		errs = append(errs, validateProvider(i, p)...)
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateProvider(index int, p Provider) []FieldError {
	var errs []FieldError
	prefix := fmt.Sprintf("providers[%d]", index)

	if p.ID == "" {
		errs = append(errs, FieldError{
			Field:   prefix + ".id",
			Message: "must not be empty",
		})
	}
	if p.Name == "" {
		errs = append(errs, FieldError{
			Field:   prefix + ".name",
			Message: "must not be empty",
		})
	}

	if p.BaseURL == "" {
		errs = append(errs, FieldError{
			Field:   prefix + ".base_url",
			Message: "must not be empty",
		})
	} else {
		u, err := url.Parse(p.BaseURL)
		switch {
		case err != nil:
			errs = append(errs, FieldError{
				Field:   prefix + ".base_url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		case u.Scheme != "http" && u.Scheme != "https":
			errs = append(errs, FieldError{
				Field:   prefix + ".base_url",
				Message: fmt.Sprintf("scheme must be http or https, got %q", u.Scheme),
			})
		case u.Host == "":
			errs = append(errs, FieldError{
				Field:   prefix + ".base_url",
				Message: "missing host",
			})
		}
	}

	return errs
}
