// Package api holds the JSON helpers shared by the request/response
// handlers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/Vasu1712/coachlink-backend/internal/apperr"
	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, logger *log.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		if logger == nil {
			logger = log.Default()
		}
		logger.Debug("Failed to write response", "status", status, "err", err)
	}
}

// Error writes err as {"error": ...} with the status it maps to. Store and
// unexpected failures are logged.
func Error(w http.ResponseWriter, logger *log.Logger, err error) {
	if logger == nil {
		logger = log.Default()
	}
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "status", status, "err", err)
	}
	JSON(w, logger, status, map[string]string{"error": apperr.Public(err)})
}

// Decode reads a JSON body into dst and checks its validate tags. Failures
// wrap apperr.ErrInvalid.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", apperr.ErrInvalid)
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
		}
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return fmt.Errorf("%w: %s", apperr.ErrInvalid, strings.Join(msgs, "; "))
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}
