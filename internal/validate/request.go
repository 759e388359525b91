package validate

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ppiankov/framewise/internal/model"
)

// ValidationError lists every rule a request violates
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Violations, "; ")
}

// Has reports whether a violation message is present
func (e *ValidationError) Has(message string) bool {
	for _, v := range e.Violations {
		if v == message {
			return true
		}
	}
	return false
}

// RequestValidator checks content requests against struct tags plus the
// custom mintrimmed, region, contenttype and httpurl rules
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator creates a validator with the custom rules registered
func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Registration only fails for empty tags or nil functions
	_ = v.RegisterValidation("mintrimmed", validateMinTrimmed)
	_ = v.RegisterValidation("region", validateRegion)
	_ = v.RegisterValidation("contenttype", validateContentType)
	_ = v.RegisterValidation("httpurl", validateHTTPURL)

	return &RequestValidator{validate: v}
}

// Validate returns nil or a *ValidationError carrying every violation
func (rv *RequestValidator) Validate(req model.ContentRequest) error {
	err := rv.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Violations: []string{err.Error()}}
	}

	violations := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, message(fe))
	}
	return &ValidationError{Violations: violations}
}

// IsValidHTTPURL reports whether raw is an absolute http(s) URL with a host
func IsValidHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validateMinTrimmed(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len([]rune(strings.TrimSpace(fl.Field().String()))) >= n
}

func validateRegion(fl validator.FieldLevel) bool {
	return model.IsSupportedRegion(fl.Field().String())
}

func validateContentType(fl validator.FieldLevel) bool {
	return model.IsSupportedContentType(model.ContentType(fl.Field().String()))
}

func validateHTTPURL(fl validator.FieldLevel) bool {
	return IsValidHTTPURL(fl.Field().String())
}

var fieldLabels = map[string]string{
	"Topic":           "Topic",
	"Region":          "Region",
	"ContentType":     "Content type",
	"Temperature":     "Temperature",
	"MaxOutputTokens": "Max output tokens",
	"ReferenceURL":    "Reference URL",
}

// message renders a field error as a user-facing sentence
func message(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "mintrimmed":
		if strings.TrimSpace(fmt.Sprint(fe.Value())) == "" {
			return label + " is required"
		}
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "region":
		return fmt.Sprintf("%s must be one of: %s", label, strings.Join(model.SupportedRegions, ", "))
	case "contenttype":
		types := make([]string, 0, len(model.SupportedContentTypes))
		for _, ct := range model.SupportedContentTypes {
			types = append(types, string(ct))
		}
		return fmt.Sprintf("%s must be one of: %s", label, strings.Join(types, ", "))
	case "httpurl":
		return label + " must be a well-formed http or https URL"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", label, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", label, fe.Tag())
	}
}
