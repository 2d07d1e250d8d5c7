package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	folioAuth "github.com/MrEthical07/folioAuth"
)

const maxBodyBytes = 64 << 10

var validate = newValidator()

// newValidator reports fields under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing useful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor maps a failure kind onto an HTTP status. Only store outages and
// unclassified errors are 5xx.
func StatusFor(kind folioAuth.FailureKind) int {
	switch kind {
	case folioAuth.FailureNotFound,
		folioAuth.FailureBadCredentials,
		folioAuth.FailureTwoFactorRequired,
		folioAuth.FailureBadTwoFactor,
		folioAuth.FailureUnauthenticated:
		return http.StatusUnauthorized
	case folioAuth.FailureBanned,
		folioAuth.FailureUnverified,
		folioAuth.FailureForbidden:
		return http.StatusForbidden
	case folioAuth.FailureInvalidOrExpiredToken, folioAuth.FailureValidation:
		return http.StatusBadRequest
	case folioAuth.FailureRateLimited:
		return http.StatusTooManyRequests
	case folioAuth.FailureConflict:
		return http.StatusConflict
	case folioAuth.FailureStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorCode is the machine-readable code sent to clients. Unknown accounts
// and wrong passwords share a code.
func errorCode(kind folioAuth.FailureKind) string {
	switch kind {
	case folioAuth.FailureNotFound, folioAuth.FailureBadCredentials:
		return "invalid_credentials"
	case folioAuth.FailureNone:
		return string(folioAuth.FailureInternal)
	default:
		return string(kind)
	}
}

type errorResponder struct {
	logger *slog.Logger
}

// write renders err in the JSON envelope with the status of its kind.
func (e errorResponder) write(w http.ResponseWriter, r *http.Request, err error) {
	e.writeStatus(w, r, err, 0)
}

// writeStatus is write with an explicit status. A zero status uses
// [StatusFor].
func (e errorResponder) writeStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	kind := folioAuth.KindOf(err)
	if status == 0 {
		status = StatusFor(kind)
	}

	body := errorBody{Code: errorCode(kind), Message: folioAuth.PublicMessage(kind)}
	var verr *validationError
	if errors.As(err, &verr) {
		body.Fields = verr.fields
	}

	if status >= http.StatusInternalServerError {
		e.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
	} else {
		e.logger.DebugContext(r.Context(), "request rejected",
			slog.String("path", r.URL.Path),
			slog.String("kind", string(kind)),
		)
	}
	writeJSON(w, status, errorEnvelope{Error: body})
}

// validationError carries per-field messages from the validator.
type validationError struct {
	fields map[string]string
}

func (v *validationError) Error() string {
	parts := make([]string, 0, len(v.fields))
	for f, msg := range v.fields {
		parts = append(parts, fmt.Sprintf("field '%s' %s", f, msg))
	}
	return strings.Join(parts, "; ")
}

func (v *validationError) Unwrap() error { return folioAuth.ErrValidation }

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode request body: %v", folioAuth.ErrValidation, err)
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make(map[string]string, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields[fe.Field()] = msgForTag(fe)
			}
			return &validationError{fields: fields}
		}
		return fmt.Errorf("%w: %v", folioAuth.ErrValidation, err)
	}
	return nil
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "numeric":
		return "must contain only digits"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "hexadecimal":
		return "must be hexadecimal"
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}
