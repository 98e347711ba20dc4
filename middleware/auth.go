package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/zatyrani/zatyrani-backend/utils"
)

const (
	MemberCookie     = "zatyrani_session"
	NieboCrossCookie = "niebocross_session"

	memberIDKey          = "member_id"
	registrationIDKey    = "registration_id"
	registrationEmailKey = "registration_email"
)

// ErrSessionExpired lets token checkers ask for the "log in again" message.
var ErrSessionExpired = errors.New("session expired")

// MemberSessions resolves a session cookie to the member that owns it.
type MemberSessions interface {
	Authenticate(ctx context.Context, token string) (memberID string, err error)
}

// RegistrationTokens resolves a NieboCross token to its registration.
type RegistrationTokens interface {
	Parse(token string) (registrationID, email string, err error)
}

// MemberAuth requires a valid association member session cookie.
func MemberAuth(sessions MemberSessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := utils.Cookie(c.GetHeader("Cookie"), MemberCookie)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Brak sesji"})
			return
		}

		memberID, err := sessions.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Sesja nieważna lub wygasła"})
			return
		}

		c.Set(memberIDKey, memberID)
		c.Next()
	}
}

// NieboCrossAuth requires a registration token, either as a Bearer header
// or in the session cookie.
func NieboCrossAuth(tokens RegistrationTokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c.GetHeader("Authorization"))
		if token == "" {
			token, _ = utils.Cookie(c.GetHeader("Cookie"), NieboCrossCookie)
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Brak tokenu autoryzacji"})
			return
		}

		regID, email, err := tokens.Parse(token)
		if err != nil {
			msg := "Nieprawidłowy token"
			if errors.Is(err, ErrSessionExpired) {
				msg = "Sesja wygasła. Zaloguj się ponownie."
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": msg})
			return
		}

		c.Set(registrationIDKey, regID)
		c.Set(registrationEmailKey, email)
		c.Next()
	}
}

// CronAuth guards scheduled jobs with a shared bearer secret. An unset
// secret disables the endpoints entirely.
func CronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			logrus.Error("❌ CRON_SECRET is not set")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Server misconfiguration"})
			return
		}
		got := bearer(c.GetHeader("Authorization"))
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			logrus.WithField("path", c.FullPath()).Warn("⚠️ Unauthorized cron request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// MemberID returns the member set by MemberAuth.
func MemberID(c *gin.Context) string {
	return c.GetString(memberIDKey)
}

// RegistrationID returns the registration set by NieboCrossAuth.
func RegistrationID(c *gin.Context) string {
	return c.GetString(registrationIDKey)
}

// RegistrationEmail returns the e-mail carried by the registration token.
func RegistrationEmail(c *gin.Context) string {
	return c.GetString(registrationEmailKey)
}

func bearer(header string) string {
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
