package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/AlibekovAA/social-auth/internal/auth/service"
	"github.com/AlibekovAA/social-auth/internal/common/constants"
	"github.com/AlibekovAA/social-auth/internal/common/dto"
	commonhttp "github.com/AlibekovAA/social-auth/internal/common/http"
	"github.com/AlibekovAA/social-auth/internal/common/jwtverify"
	"github.com/AlibekovAA/social-auth/internal/common/logger"
)

type authResponse struct {
	User        dto.User `json:"user"`
	AccessToken string   `json:"accessToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type logoutResponse struct {
	Success bool `json:"success"`
}

type Config struct {
	CookiePath     string
	CookieSecure   bool
	RefreshTTL     time.Duration
	RequestTimeout time.Duration
	Pinger         commonhttp.Pinger
	RateLimiter    *commonhttp.StrictRateLimiter
}

type Handler struct {
	auth      *service.AuthService
	cfg       Config
	validator *Validator
	errors    *commonhttp.ErrorHandler
	log       *logger.Logger
}

func NewHandler(auth *service.AuthService, cfg Config, log *logger.Logger) http.Handler {
	if cfg.CookiePath == "" {
		cfg.CookiePath = constants.DefaultRefreshCookiePath
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = constants.DefaultAuthRequestTimeout
	}

	h := &Handler{
		auth:      auth,
		cfg:       cfg,
		validator: NewValidator(),
		errors:    commonhttp.NewErrorHandler(log),
		log:       log,
	}

	requireAuth := jwtverify.Middleware(auth, log)
	post := commonhttp.RequireMethod(http.MethodPost)
	get := commonhttp.RequireMethod(http.MethodGet)
	timeout := commonhttp.WithTimeout(cfg.RequestTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", commonhttp.HealthHandler(log, cfg.Pinger))
	h.route(mux, "/api/auth/register", post(timeout(h.register)))
	h.route(mux, "/api/auth/login", post(timeout(h.login)))
	h.route(mux, "/api/auth/refresh", post(timeout(h.refresh)))
	h.route(mux, "/api/auth/logout", h.clearsRefreshCookie(requireAuth(post(timeout(h.logout)))))
	h.route(mux, "/api/auth/me", requireAuth(get(timeout(h.me))))
	return mux
}

func (h *Handler) route(mux *http.ServeMux, path string, handler http.Handler) {
	if h.cfg.RateLimiter != nil {
		handler = h.cfg.RateLimiter.MiddlewareForPath(path)(handler)
	}
	mux.Handle(path, handler)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.validator.ValidateRegister(req).Err(); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	result, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	h.setRefreshCookie(w, result.Tokens.RefreshToken)
	commonhttp.WriteJSON(w, http.StatusCreated, authResponse{
		User:        result.User,
		AccessToken: result.Tokens.AccessToken,
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.validator.ValidateLogin(req).Err(); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	result, err := h.auth.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	h.setRefreshCookie(w, result.Tokens.RefreshToken)
	commonhttp.WriteJSON(w, http.StatusOK, authResponse{
		User:        result.User,
		AccessToken: result.Tokens.AccessToken,
	})
}

// refresh answers 401 for every core failure, including store outages, and
// drops the cookie so the client stops replaying it.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(constants.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		commonhttp.WriteError(w, http.StatusUnauthorized, commonhttp.CodeMissingRefreshToken, "refresh token not found")
		return
	}

	tokens, err := h.auth.Refresh(r.Context(), cookie.Value)
	if err != nil {
		h.log.WithFields(r.Context(), logger.Fields{
			"action": "refresh_rejected",
		}).Warnf("refresh rejected: %v", err)
		h.clearRefreshCookie(w)
		commonhttp.WriteError(w, http.StatusUnauthorized, commonhttp.CodeInvalidToken, "invalid refresh token")
		return
	}

	h.setRefreshCookie(w, tokens.RefreshToken)
	commonhttp.WriteJSON(w, http.StatusOK, refreshResponse{AccessToken: tokens.AccessToken})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	claims, _ := jwtverify.FromContext(r.Context())

	if cookie, err := r.Cookie(constants.RefreshCookieName); err == nil && cookie.Value != "" {
		h.auth.Logout(r.Context(), claims.UserID, cookie.Value)
	}

	commonhttp.WriteJSON(w, http.StatusOK, logoutResponse{Success: true})
}

// clearsRefreshCookie drops the refresh cookie on every logout response,
// including the 401 for an expired or missing access token.
func (h *Handler) clearsRefreshCookie(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.clearRefreshCookie(w)
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := jwtverify.FromContext(r.Context())
	if !ok {
		commonhttp.WriteError(w, http.StatusUnauthorized, commonhttp.CodeMissingAuthorization, "missing or invalid authorization")
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), claims.UserID)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	commonhttp.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := commonhttp.DecodeJSON(r, v)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		commonhttp.WriteError(w, http.StatusRequestEntityTooLarge, commonhttp.CodeRequestTooLarge, "request body too large")
		return false
	}

	h.log.WithFields(r.Context(), logger.Fields{
		"path":   r.URL.Path,
		"action": "invalid_json",
	}).Warnf("invalid json: %v", err)
	commonhttp.WriteError(w, http.StatusBadRequest, commonhttp.CodeInvalidJSON, "invalid json")
	return false
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string) {
	if token == "" {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     constants.RefreshCookieName,
		Value:    token,
		Path:     h.cfg.CookiePath,
		MaxAge:   int(h.cfg.RefreshTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   h.cfg.CookieSecure,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     constants.RefreshCookieName,
		Value:    "",
		Path:     h.cfg.CookiePath,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   h.cfg.CookieSecure,
	})
}
