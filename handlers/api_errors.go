package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/camden-git/mediasysfaces/services"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	resp := APIErrorResponse{
		Errors: []APIErrorDetail{
			{
				Code:   code,
				Status: strconv.Itoa(httpStatus),
				Detail: detail,
			},
		},
	}

	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Error encoding JSON response: %v", err)
		}
	}
}

// writeServiceError maps the service sentinels onto status codes. anything
// unrecognized is logged and reported as a 500 without its detail.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		WriteAPIError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, services.ErrNotFound):
		WriteAPIError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, services.ErrForbidden):
		WriteAPIError(w, http.StatusForbidden, "forbidden", "You do not have permission to perform this action")
	case errors.Is(err, services.ErrInvalidTransition):
		WriteAPIError(w, http.StatusConflict, "invalid_transition", err.Error())
	default:
		log.Printf("handlers: unexpected service error: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

var validate = validator.New()

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// it writes the 400 itself and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_payload", "Invalid request payload: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" failed '"+fe.Tag()+"'")
			}
			WriteAPIError(w, http.StatusBadRequest, "validation_error", strings.Join(fields, "; "))
			return false
		}
		WriteAPIError(w, http.StatusBadRequest, "validation_error", err.Error())
		return false
	}
	return true
}
