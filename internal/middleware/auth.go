package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	// SessionAccountKey holds the caller's account hint in the session cookie.
	SessionAccountKey = "account_id"
	SyncSecretHeader  = "X-Sync-Secret"

	accountHintKey = "rpinsights.account_hint"
	callerKey      = "rpinsights.sync_caller"
)

// SyncAuth admits job triggers that present the shared secret, either as
// X-Sync-Secret or as a bearer token, or that carry the trusted-caller header
// set by the scheduler's ingress.
func SyncAuth(secret, trustedHeader, trustedValue string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret != "" {
			if presented := presentedSecret(c.Request); presented != "" && secretEqual(presented, secret) {
				c.Set(callerKey, "secret")
				c.Next()
				return
			}
		}

		if trustedHeader != "" {
			v := c.GetHeader(trustedHeader)
			if v != "" && (trustedValue == "" || secretEqual(v, trustedValue)) {
				c.Set(callerKey, "trusted")
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody("unauthorized", "missing or invalid sync credentials"))
	}
}

func presentedSecret(r *http.Request) string {
	if v := r.Header.Get(SyncSecretHeader); v != "" {
		return v
	}
	authz := r.Header.Get("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

func secretEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// SessionAccount requires a session carrying an account hint and exposes it
// through AccountHint.
func SessionAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		hint, ok := session.Get(SessionAccountKey).(string)
		if !ok || strings.TrimSpace(hint) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody("unauthenticated", "no account in session"))
			return
		}
		SetAccountHint(c, hint)
		c.Next()
	}
}

func SetAccountHint(c *gin.Context, hint string) {
	c.Set(accountHintKey, strings.TrimSpace(hint))
}

// AccountHint returns the account hint stored by SessionAccount.
func AccountHint(c *gin.Context) string {
	return c.GetString(accountHintKey)
}

// SyncCaller reports how the current sync request authenticated.
func SyncCaller(c *gin.Context) string {
	return c.GetString(callerKey)
}

// ErrorBody is the envelope for every failed response.
func ErrorBody(code, message string) gin.H {
	return gin.H{"ok": false, "error": code, "message": message}
}
