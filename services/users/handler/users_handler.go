package handler

//go:generate mockgen -source=users_handler.go -destination=mock_users_service.go -package=handler

import (
	"context"
	"net/http"
	"time"

	model "auction-marketplace/internal/models"
	users "auction-marketplace/internal/userService"
	"auction-marketplace/services/helpers"
	"auction-marketplace/utils"

	"github.com/gin-gonic/gin"
)

// CookieName is the HttpOnly cookie carrying the session token
const CookieName = "jwt"

type UserServiceInterface interface {
	Register(ctx context.Context, name, email, password string) (model.User, error)
	Login(ctx context.Context, email, password string) (users.LoginResult, error)
	Profile(ctx context.Context, userID string) (model.User, error)
}

type UsersHandler struct {
	service   UserServiceInterface
	cookieTTL time.Duration
	secure    bool
}

// NewUsersHandler creates a handler; cookieTTL should match the token lifetime
func NewUsersHandler(service UserServiceInterface, cookieTTL time.Duration, secureCookie bool) *UsersHandler {
	return &UsersHandler{service: service, cookieTTL: cookieTTL, secure: secureCookie}
}

// RegisterHandler handles POST /users/register
func (h *UsersHandler) RegisterHandler(c *gin.Context) {
	var req helpers.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RegisterHandler", err)
		return
	}

	user, err := h.service.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		helpers.RespondError(c, "RegisterHandler", err, map[string]any{"email": req.Email})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, user, "user registered successfully")
	helpers.LogSuccess("RegisterHandler", "user registered", map[string]any{"userId": user.UserID})
}

// LoginHandler handles POST /users/login
func (h *UsersHandler) LoginHandler(c *gin.Context) {
	var req helpers.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "LoginHandler", err)
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		helpers.RespondError(c, "LoginHandler", err, map[string]any{"email": req.Email})
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, result.Token, int(h.cookieTTL.Seconds()), "/", "", h.secure, true)

	utils.JSONResponse(c, http.StatusOK, result, "login successful")
	helpers.LogSuccess("LoginHandler", "user logged in", map[string]any{"userId": result.User.UserID})
}

// LogoutHandler handles POST /users/logout
func (h *UsersHandler) LogoutHandler(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, "", -1, "/", "", h.secure, true)
	utils.JSONResponse(c, http.StatusOK, nil, "logged out successfully")
}

// ProfileHandler handles GET and POST /users/profile
func (h *UsersHandler) ProfileHandler(c *gin.Context) {
	userID := helpers.UserID(c)
	user, err := h.service.Profile(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "ProfileHandler", err, map[string]any{"userId": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, user, "profile retrieved successfully")
}
