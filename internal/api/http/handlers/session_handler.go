package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/session-service/internal/api/dto"
	"github.com/spec-kit/session-service/internal/session"
	"github.com/spec-kit/session-service/pkg/util"
)

// SessionHandler exposes the session endpoints. Response shapes here are a
// wire contract shared with browser clients and must not change.
type SessionHandler struct {
	sessions      *session.Service
	cookieName    string
	secureCookies bool
	ttl           time.Duration
	logger        *zap.Logger
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(sessions *session.Service, cookieName string, secureCookies bool, ttl time.Duration, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:      sessions,
		cookieName:    cookieName,
		secureCookies: secureCookies,
		ttl:           ttl,
		logger:        logger,
	}
}

// Create handles POST /api/auth/session.
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	// an unparsable body is treated the same as a missing token
	_ = c.BodyParser(&req)

	cred, _, err := h.sessions.Create(c.Context(), req.IDToken)
	if err != nil {
		domainErr := util.ToDomainError(err)
		switch domainErr.Code {
		case "MISSING_TOKEN":
			return c.Status(http.StatusBadRequest).JSON(dto.ErrorResponse{Error: "ID Token is required"})
		case "UNAUTHORIZED":
			return c.Status(http.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "Unauthorized", Message: domainErr.Message})
		default:
			h.logger.Error("session creation failed", zap.Error(domainErr))
			return c.Status(http.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "Internal Server Error"})
		}
	}

	h.setSessionCookie(c, cred)
	return c.JSON(dto.StatusResponse{Status: "success"})
}

// Verify handles GET /api/auth/verify-session. An absent cookie is
// indistinguishable from an invalid one.
func (h *SessionHandler) Verify(c *fiber.Ctx) error {
	cred := c.Cookies(h.cookieName)

	if _, err := h.sessions.Verify(c.Context(), cred); err != nil {
		return c.Status(http.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "Unauthorized"})
	}
	return c.JSON(dto.StatusResponse{Status: "valid"})
}

// Logout handles POST /api/auth/logout. Succeeds unconditionally.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	cred := c.Cookies(h.cookieName)
	_ = h.sessions.Destroy(c.Context(), cred)

	h.clearSessionCookie(c)
	return c.JSON(dto.StatusResponse{Status: "success"})
}

func (h *SessionHandler) setSessionCookie(c *fiber.Ctx, value string) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(h.ttl.Seconds()),
		Expires:  time.Now().Add(h.ttl),
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// clearSessionCookie must mirror setSessionCookie attribute for attribute or
// browsers will refuse to drop the cookie.
func (h *SessionHandler) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
