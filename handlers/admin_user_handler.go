package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"gorm.io/gorm"

	"github.com/camden-git/mediasysfaces/models"
	"github.com/camden-git/mediasysfaces/permissions"
	"github.com/camden-git/mediasysfaces/repository"
)

// AdminUserHandler manages accounts and the global permissions that decide
// who may tag and who may review.
type AdminUserHandler struct {
	UserRepo repository.UserRepository
	RoleRepo repository.RoleRepository
}

func NewAdminUserHandler(userRepo repository.UserRepository, roleRepo repository.RoleRepository) *AdminUserHandler {
	return &AdminUserHandler{UserRepo: userRepo, RoleRepo: roleRepo}
}

type CreateUserPayload struct {
	Username          string   `json:"username" validate:"required,max=150"`
	Password          string   `json:"password" validate:"required,min=8"`
	GlobalPermissions []string `json:"global_permissions"`
	Roles             []string `json:"roles"`
}

type UpdatePermissionsPayload struct {
	GlobalPermissions []string `json:"global_permissions" validate:"required"`
}

func invalidPermission(keys []string) string {
	for _, k := range keys {
		if !permissions.IsValidPermissionKey(k) {
			return k
		}
	}
	return ""
}

func (h *AdminUserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.UserRepo.ListAll(r.Context())
	if err != nil {
		log.Printf("admin: failed to list users: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve users")
		return
	}
	out := make([]userProfile, 0, len(users))
	for i := range users {
		out = append(out, profileOf(&users[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminUserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "user_id")
	if !ok {
		return
	}
	user, err := h.UserRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "User not found")
			return
		}
		log.Printf("admin: failed to get user %d: %v", id, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve user")
		return
	}
	writeJSON(w, http.StatusOK, profileOf(user))
}

func (h *AdminUserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var payload CreateUserPayload
	if !decodeAndValidate(w, r, &payload) {
		return
	}
	if bad := invalidPermission(payload.GlobalPermissions); bad != "" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_permission", fmt.Sprintf("Invalid global permission key: %s", bad))
		return
	}

	roles := make([]*models.Role, 0, len(payload.Roles))
	for _, name := range payload.Roles {
		role, err := h.RoleRepo.GetByName(r.Context(), name)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				WriteAPIError(w, http.StatusBadRequest, "invalid_role", fmt.Sprintf("Role '%s' not found", name))
				return
			}
			log.Printf("admin: failed to look up role %s: %v", name, err)
			WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve role")
			return
		}
		roles = append(roles, role)
	}

	perms := payload.GlobalPermissions
	if perms == nil {
		perms = []string{}
	}
	user := &models.User{Username: payload.Username, GlobalPermissions: perms}
	if err := user.SetPassword(payload.Password); err != nil {
		log.Printf("admin: failed to hash password: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to hash password")
		return
	}
	if _, err := h.UserRepo.GetByUsername(r.Context(), user.Username); err == nil {
		WriteAPIError(w, http.StatusConflict, "username_taken", "Username already exists")
		return
	}
	if err := h.UserRepo.Create(r.Context(), user); err != nil {
		log.Printf("admin: failed to create user %s: %v", user.Username, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to create user")
		return
	}
	for _, role := range roles {
		if err := h.RoleRepo.AddUserToRole(r.Context(), user.ID, role.ID); err != nil {
			log.Printf("admin: failed to add user %d to role %s: %v", user.ID, role.Name, err)
		}
	}

	created, err := h.UserRepo.GetByID(r.Context(), user.ID)
	if err != nil {
		log.Printf("admin: failed to reload user %d: %v", user.ID, err)
		created = user
	}
	writeJSON(w, http.StatusCreated, profileOf(created))
}

// UpdatePermissions replaces the direct global permissions of a user
func (h *AdminUserHandler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "user_id")
	if !ok {
		return
	}
	var payload UpdatePermissionsPayload
	if !decodeAndValidate(w, r, &payload) {
		return
	}
	if bad := invalidPermission(payload.GlobalPermissions); bad != "" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_permission", fmt.Sprintf("Invalid global permission key: %s", bad))
		return
	}
	if err := h.UserRepo.SetGlobalPermissions(r.Context(), id, payload.GlobalPermissions); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			WriteAPIError(w, http.StatusNotFound, "not_found", "User not found")
			return
		}
		log.Printf("admin: failed to update permissions of user %d: %v", id, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to update user")
		return
	}
	h.GetUser(w, r)
}
