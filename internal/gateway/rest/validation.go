package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

var (
	validate     = newValidator()
	queryDecoder = newQueryDecoder()
)

// newValidator reports fields by their wire names ("tripNumber", "limit")
// rather than Go field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "schema"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	return v
}

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is returned by decodeAndValidate when the body parsed but
// failed its constraints.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Field + ": " + e.Message
	}
	return strings.Join(parts, "; ")
}

func describeConstraint(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	case "gte":
		return "Must be at least " + fe.Param()
	}
	return "Failed constraint " + fe.Tag()
}

func toValidationErrors(err error) ValidationErrors {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationErrors{{Field: "request", Message: err.Error()}}
	}
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{Field: fe.Field(), Message: describeConstraint(fe)})
	}
	return out
}

func decodeAndValidate[T any](r *http.Request) (*T, error) {
	req := new(T)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return nil, fmt.Errorf("decode request body: %w", err)
	}
	if err := validate.Struct(req); err != nil {
		return nil, toValidationErrors(err)
	}
	return req, nil
}

// writeDecodeError answers 400, listing field problems when there are any.
func writeDecodeError(w http.ResponseWriter, err error) {
	var fields ValidationErrors
	if errors.As(err, &fields) {
		writeJSON(w, http.StatusBadRequest, APIError{Code: ErrCodeBadRequest, Message: "Validation failed", Fields: fields})
		return
	}
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body")
}
