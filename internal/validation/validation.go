package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"civic-reporting-api/internal/models"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Struct runs tag-based validation on a request body and reports the first
// failing field as a *ValidationError.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{Field: fieldPath(fe), Message: message(fe)}
	}
	return err
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	kind := fe.Kind()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		if kind == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	}
	return "is invalid"
}

// SanitizeString strips control characters (except common whitespace) and
// surrounding spaces.
func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

func ValidateProblemStatus(status models.ProblemStatus) error {
	if !status.Valid() {
		return &ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("unknown status %q", status),
		}
	}
	return nil
}

func ValidateJobStatus(status string) error {
	if status == "" {
		return nil
	}
	if !models.JobStatus(status).Valid() {
		return &ValidationError{
			Field:   "status",
			Message: "must be one of: pending, completed, failed",
		}
	}
	return nil
}

// ParseBounds reads an optional bounding box. All four corners must be
// supplied together; none at all yields nil.
func ParseBounds(neLat, neLng, swLat, swLng string) (*models.Bounds, error) {
	raw := []string{neLat, neLng, swLat, swLng}
	names := []string{"neLat", "neLng", "swLat", "swLng"}

	given := 0
	for _, v := range raw {
		if v != "" {
			given++
		}
	}
	if given == 0 {
		return nil, nil
	}
	if given != len(raw) {
		return nil, &ValidationError{
			Field:   "bounds",
			Message: "neLat, neLng, swLat and swLng must be provided together",
		}
	}

	vals := make([]float64, len(raw))
	for i, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, &ValidationError{Field: names[i], Message: "must be a number"}
		}
		vals[i] = f
	}

	b := &models.Bounds{NeLat: vals[0], NeLng: vals[1], SwLat: vals[2], SwLng: vals[3]}
	if b.NeLat < -90 || b.NeLat > 90 || b.SwLat < -90 || b.SwLat > 90 {
		return nil, &ValidationError{Field: "bounds", Message: "latitude must be between -90 and 90"}
	}
	if b.NeLng < -180 || b.NeLng > 180 || b.SwLng < -180 || b.SwLng > 180 {
		return nil, &ValidationError{Field: "bounds", Message: "longitude must be between -180 and 180"}
	}
	if b.SwLat > b.NeLat || b.SwLng > b.NeLng {
		return nil, &ValidationError{Field: "bounds", Message: "south-west corner must not exceed north-east corner"}
	}
	return b, nil
}
