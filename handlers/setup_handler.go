package handlers

import (
	"errors"
	"net/http"

	"github.com/camden-git/mediasysfaces/services"
)

type SetupHandler struct {
	Setup *services.SetupService
}

func NewSetupHandler(setup *services.SetupService) *SetupHandler {
	return &SetupHandler{Setup: setup}
}

type FirstAdminPayload struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required,min=8"`
}

// CreateFirstAdmin creates the initial administrator. it only works while no
// user exists.
func (h *SetupHandler) CreateFirstAdmin(w http.ResponseWriter, r *http.Request) {
	var payload FirstAdminPayload
	if !decodeAndValidate(w, r, &payload) {
		return
	}
	user, err := h.Setup.CreateFirstAdmin(r.Context(), payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, services.ErrSetupCompleted) {
			WriteAPIError(w, http.StatusForbidden, "setup_completed", "Setup has already been completed.")
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Initial admin user created successfully. Please log in.",
		"user":    profileOf(user),
	})
}
