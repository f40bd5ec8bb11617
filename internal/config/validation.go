package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/bnema/rulekit/internal/models"
)

var validate = validator.New()

// Validate checks a decoded configuration against its struct tags
func Validate(cfg *models.Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a URL, got %v", field, fe.Value())
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port, got %v", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
}
