package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kakitori/kakitori-api/internal/api/metrics"
	"github.com/kakitori/kakitori-api/internal/api/middleware"
	"github.com/kakitori/kakitori-api/internal/core/ports"
)

// CookieOptions controls the session cookie written on login.
type CookieOptions struct {
	Secure bool
	MaxAge time.Duration
}

type AuthHandler struct {
	authService ports.AuthService
	cookie      CookieOptions
}

func NewAuthHandler(authService ports.AuthService, cookie CookieOptions) *AuthHandler {
	if cookie.MaxAge <= 0 {
		cookie.MaxAge = time.Hour
	}
	return &AuthHandler{authService: authService, cookie: cookie}
}

type registerRequest struct {
	Email           string `json:"email" validate:"required,email" example:"kana@example.com"`
	Password        string `json:"password" validate:"required,min=6" example:"secret123"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password" example:"secret123"`
	FullName        string `json:"fullName" validate:"required,max=100" example:"Kana Tanaka"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"kana@example.com"`
	Password string `json:"password" validate:"required" example:"secret123"`
}

type loginResponse struct {
	UID      string `json:"uid"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Token    string `json:"token"`
}

type accountResponse struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// Register creates a new user account.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  Response{data=domain.Profile}
// @Failure      400   {object}  Response
// @Failure      429   {object}  Response
// @Router       /register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.authService.Register(c.Request().Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		metrics.AuthEventsTotal.WithLabelValues("register", "failure").Inc()
		return err
	}

	metrics.AuthEventsTotal.WithLabelValues("register", "success").Inc()
	return success(c, http.StatusCreated, "User registered successfully", user.Profile())
}

// Login authenticates a user, returns a JWT and sets it as the token cookie.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  Response{data=loginResponse}
// @Failure      400   {object}  Response
// @Failure      429   {object}  Response
// @Router       /login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	token, user, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		metrics.AuthEventsTotal.WithLabelValues("login", "failure").Inc()
		return err
	}

	c.SetCookie(h.tokenCookie(middleware.EncodeCookieValue(token), int(h.cookie.MaxAge/time.Second)))
	metrics.AuthEventsTotal.WithLabelValues("login", "success").Inc()

	return success(c, http.StatusOK, "Login successful", loginResponse{
		UID:      user.UID,
		Email:    user.Email,
		FullName: user.FullName,
		Token:    token,
	})
}

// Logout expires the token cookie. Tokens are stateless, so a copied bearer
// token stays valid until it expires.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  Response
// @Router       /logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.tokenCookie("", -1))
	return success(c, http.StatusOK, "Logged out", nil)
}

// Account returns the caller's profile.
//
// @Summary      Get the current account
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  Response{data=accountResponse}
// @Failure      401  {object}  Response
// @Failure      404  {object}  Response
// @Router       /account [get]
func (h *AuthHandler) Account(c echo.Context) error {
	uid, err := ctxUID(c)
	if err != nil {
		return err
	}

	user, err := h.authService.Account(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "", accountResponse{FullName: user.FullName, Email: user.Email})
}

func (h *AuthHandler) tokenCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

