package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Dosada05/tournament-matchroom/services"
)

const sessionTTL = 24 * time.Hour

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AuthHandler struct {
	authService services.AuthService
	jwtSecret   []byte
	logger      *slog.Logger
}

func NewAuthHandler(authService services.AuthService, jwtSecret string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		jwtSecret:   []byte(jwtSecret),
		logger:      logger,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input services.LoginInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	user, err := h.authService.Login(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, h.logger, err)
		return
	}

	now := time.Now()
	expiresAt := now.Add(sessionTTL)
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"name":    user.DisplayName,
		"exp":     expiresAt.Unix(),
		"iat":     now.Unix(),
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
	if err != nil {
		serverErrorResponse(w, r, h.logger, fmt.Errorf("failed to sign token: %w", err))
		return
	}

	writeSuccess(w, r, h.logger, http.StatusOK, LoginResponse{Token: tokenString, ExpiresAt: expiresAt.UTC()})
}
