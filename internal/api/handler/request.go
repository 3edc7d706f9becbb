package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/tubedrop/internal/api/response"
)

const maxBodyBytes = 64 << 10

var validate = validator.New()

// requestError is a malformed body. Its message is safe to show to clients.
type requestError struct {
	field string
	msg   string
}

func (e *requestError) Error() string { return e.msg }

// decodeJSON reads a JSON body into dst and checks its validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &requestError{msg: "Invalid JSON body"}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return &requestError{msg: err.Error()}
	}
	return nil
}

func fieldError(fe validator.FieldError) *requestError {
	field := strings.ToLower(fe.Field())
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return &requestError{field: field, msg: msg}
}

// writeBadRequest reports a decodeJSON failure as INVALID_REQUEST.
func writeBadRequest(w http.ResponseWriter, err error) {
	var details any
	var re *requestError
	if errors.As(err, &re) && re.field != "" {
		details = map[string]string{"field": re.field}
	}
	response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), details)
}

// jobIDParam parses the {jobID} route parameter.
func jobIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	return id, err == nil
}
