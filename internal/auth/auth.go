// Package auth extracts the caller's access-scope claim from the
// embedding host's request headers and gates the Management API with
// a constant-time admin token comparison. The embedding SDK is
// trusted to have already authenticated the end user; this package
// only decodes the scope claim it presents and enforces the one
// shared secret the Management API requires.
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/pohodnya/mtchat/internal/config"
	"github.com/pohodnya/mtchat/internal/errors"
	"github.com/pohodnya/mtchat/internal/models"
)

// ScopeHeader carries the caller's base64-encoded JSON scope claim on
// every Chat API request.
const ScopeHeader = "X-Scope-Config"

// UserHeader carries the caller's user id, set by the embedding host
// after its own authentication.
const UserHeader = "X-User-ID"

// ExtractScopeClaim decodes the X-Scope-Config header into a
// ScopeClaim. A missing header is not an error here: callers that
// need a claim (e.g. join, list-available) reject a nil claim
// themselves, since some endpoints are reachable by participants
// without presenting one.
func ExtractScopeClaim(c *fiber.Ctx) (*models.ScopeClaim, error) {
	raw := c.Get(ScopeHeader)
	if raw == "" {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, errors.New(errors.ErrBadRequest, "X-Scope-Config is not valid base64")
	}
	var claim models.ScopeClaim
	if err := json.Unmarshal(decoded, &claim); err != nil {
		return nil, errors.New(errors.ErrBadRequest, "X-Scope-Config is not valid JSON")
	}
	return &claim, nil
}

// RequireUserID reads X-User-ID, the identity the embedding host
// asserts on behalf of an already-authenticated end user.
func RequireUserID(c *fiber.Ctx) (string, error) {
	userID := c.Get(UserHeader)
	if userID == "" {
		return "", errors.New(errors.ErrUnauthorized, "X-User-ID header is required")
	}
	return userID, nil
}

// RequireWSUserID reads the caller's identity for a WebSocket upgrade.
// Browser WebSocket clients cannot set custom headers on the handshake
// request, so the upgrade path also accepts a user_id query parameter;
// the header takes precedence when both are present.
func RequireWSUserID(c *fiber.Ctx) (string, error) {
	if userID := c.Get(UserHeader); userID != "" {
		return userID, nil
	}
	if userID := c.Query("user_id"); userID != "" {
		return userID, nil
	}
	return "", errors.New(errors.ErrUnauthorized, "user id is required (X-User-ID header or user_id query parameter)")
}

const bearerPrefix = "Bearer "

// AdminMiddleware gates the Management API behind the configured admin
// token, presented as a standard `Authorization: Bearer <token>`
// header and compared in constant time to avoid a timing oracle.
func AdminMiddleware(cfg config.AdminConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.APIToken == "" {
			return errors.New(errors.ErrServiceUnavailable, "management API is not configured")
		}
		header := c.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			return errors.New(errors.ErrUnauthorized, "missing or malformed Authorization header")
		}
		presented := strings.TrimPrefix(header, bearerPrefix)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(cfg.APIToken)) != 1 {
			return errors.New(errors.ErrUnauthorized, "invalid admin token")
		}
		return c.Next()
	}
}
