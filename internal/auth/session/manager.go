package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smallbiznis/qatech/internal/cart/domain"
	"github.com/smallbiznis/qatech/internal/config"
)

const DefaultCookieName = "cart_sid"

// Manager issues and reads the anonymous cart session cookie.
type Manager struct {
	cookieName string
	secure     bool
	ttl        time.Duration
}

func NewManager(cfg config.Config) *Manager {
	return &Manager{
		cookieName: DefaultCookieName,
		secure:     cfg.CookieSecure,
		ttl:        domain.TTL,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

func (m *Manager) ReadKey(c *gin.Context) (string, bool) {
	key, err := c.Cookie(m.cookieName)
	if err != nil {
		return "", false
	}
	key = strings.TrimSpace(key)
	if _, err := uuid.Parse(key); err != nil {
		return "", false
	}
	return key, true
}

// EnsureKey returns the caller's cart key, issuing a new cookie when absent.
// The cookie lifetime is refreshed on every call.
func (m *Manager) EnsureKey(c *gin.Context) string {
	key, ok := m.ReadKey(c)
	if !ok {
		key = uuid.NewString()
	}
	m.set(c, key)
	return key
}

func (m *Manager) set(c *gin.Context, key string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, key, int(m.ttl.Seconds()), "/", "", m.secure, true)
}

func (m *Manager) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, "", -1, "/", "", m.secure, true)
}
