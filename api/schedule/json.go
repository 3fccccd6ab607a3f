package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/kilianp07/crewsched/core/model"
)

func (h *Handler) readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// decode reads and validates a request body, answering 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := h.readJSON(r, v); err != nil {
		h.badRequest(w, r, err)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		h.badRequest(w, r, err)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorf("%s %s: encode response: %v", r.Method, r.URL.Path, err)
	}
}

type errorResponse struct {
	Error *model.Reason `json:"error"`
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		err = fmt.Errorf("%s: failed %q", fe.Field(), fe.Tag())
	}
	h.writeJSON(w, r, http.StatusBadRequest, errorResponse{model.NewReason(model.ReasonInvalidInput, err.Error())})
}

// fail answers with the status matching the reason carried by err.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var reason *model.Reason
	if !errors.As(err, &reason) {
		h.log.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		reason = model.WrapReason(model.ReasonPersistence, err)
	}
	status := statusFor(reason.Code)
	if status >= http.StatusInternalServerError {
		h.log.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	h.writeJSON(w, r, status, errorResponse{reason})
}

func statusFor(code model.ReasonCode) int {
	switch code {
	case model.ReasonInvalidInput, model.ReasonOutOfBounds:
		return http.StatusBadRequest
	case model.ReasonNotFound:
		return http.StatusNotFound
	case model.ReasonAssignmentCompleted, model.ReasonCommitInFlight:
		return http.StatusConflict
	case model.ReasonOverlap, model.ReasonInsufficientTravel, model.ReasonInsufficientHQ,
		model.ReasonHQTravelUnknown, model.ReasonTravelPending:
		return http.StatusUnprocessableEntity
	case model.ReasonCancelled:
		return http.StatusRequestTimeout
	case model.ReasonPersistence:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
