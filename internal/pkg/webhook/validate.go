package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report payload field names the way providers spell them.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// DecodePayload parses the raw body into a top-level JSON object.
func DecodePayload(raw []byte) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return nil, fmt.Errorf("%w: Invalid JSON payload", ErrValidation)
	}
	return payload, nil
}

// ValidatePayload checks that every required top-level field is present and
// not null.
func ValidatePayload(payload map[string]any, requiredFields []string) error {
	for _, field := range requiredFields {
		v, ok := payload[field]
		if !ok || v == nil {
			return fmt.Errorf("%w: Missing required field: %s", ErrValidation, field)
		}
	}
	return nil
}

// validateStruct runs struct-tag validation and turns the first failure into
// a descriptive ErrValidation.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fe := verrs[0]
	field := fe.Namespace()
	// Drop the Go struct name prefix.
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	if fe.Tag() == "required" {
		return fmt.Errorf("%w: Missing required field: %s", ErrValidation, field)
	}
	return fmt.Errorf("%w: Invalid field: %s", ErrValidation, field)
}

// ValidationMessage extracts the client-facing message from a validation error.
func ValidationMessage(err error) string {
	msg := err.Error()
	prefix := ErrValidation.Error() + ": "
	if strings.HasPrefix(msg, prefix) {
		return strings.TrimPrefix(msg, prefix)
	}
	return "Invalid payload"
}
