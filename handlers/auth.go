package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/camden-git/mediasysfaces/models"
	"github.com/camden-git/mediasysfaces/repository"
)

const tokenIssuer = "mediasysfaces"

type AuthHandler struct {
	UserRepo   repository.UserRepository
	Secret     []byte
	Expiration time.Duration
}

func NewAuthHandler(userRepo repository.UserRepository, secret []byte, expiration time.Duration) *AuthHandler {
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	return &AuthHandler{UserRepo: userRepo, Secret: secret, Expiration: expiration}
}

type LoginPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	User      userProfile `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// userProfile is the user as the frontend sees it, with the effective
// permissions resolved so it can decide what to show
type userProfile struct {
	models.User
	Permissions []string `json:"permissions"`
	IsReviewer  bool     `json:"is_reviewer"`
}

func profileOf(u *models.User) userProfile {
	perms := u.EffectivePermissions()
	if perms == nil {
		perms = []string{}
	}
	return userProfile{User: *u, Permissions: perms, IsReviewer: u.IsReviewer()}
}

// IssueToken signs a token whose subject is the user id
func (h *AuthHandler) IssueToken(user *models.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(h.Expiration)
	claims := &jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(user.ID), 10),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    tokenIssuer,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if !decodeAndValidate(w, r, &payload) {
		return
	}

	user, err := h.UserRepo.GetByUsername(r.Context(), payload.Username)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("auth: failed to look up user '%s': %v", payload.Username, err)
		}
		WriteAPIError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
		return
	}
	if !user.CheckPassword(payload.Password) {
		WriteAPIError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
		return
	}

	token, expiresAt, err := h.IssueToken(user)
	if err != nil {
		log.Printf("auth: failed to sign token for user %d: %v", user.ID, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: profileOf(user), ExpiresAt: expiresAt})
}

// Logout is client side for JWTs; the endpoint exists so clients have one to call
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully. Please discard your token."})
}

func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Could not retrieve user from context")
		return
	}
	writeJSON(w, http.StatusOK, profileOf(user))
}
