package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	sessionUserKey  = "user_id"
	sessionRolesKey = "roles"
)

var ErrNoSession = errors.New("no session")

// SessionManager keeps the signed-in user in a signed cookie.
type SessionManager struct {
	store *sessions.CookieStore
	name  string
}

func NewSessionManager(name, secret string, maxAge time.Duration, secure bool, sameSite string) *SessionManager {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: parseSameSite(sameSite),
	}
	return &SessionManager{store: store, name: name}
}

func (m *SessionManager) Save(c *gin.Context, userID uuid.UUID, roles []string) error {
	session, err := m.store.Get(c.Request, m.name)
	if err != nil && session == nil {
		return err
	}
	session.Values[sessionUserKey] = userID.String()
	session.Values[sessionRolesKey] = roles
	return session.Save(c.Request, c.Writer)
}

// Load returns the user stored in the request's session cookie.
func (m *SessionManager) Load(r *http.Request) (uuid.UUID, []string, error) {
	session, err := m.store.Get(r, m.name)
	if err != nil {
		return uuid.Nil, nil, err
	}
	raw, ok := session.Values[sessionUserKey].(string)
	if !ok {
		return uuid.Nil, nil, ErrNoSession
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, nil, err
	}
	roles, _ := session.Values[sessionRolesKey].([]string)
	return id, roles, nil
}

func (m *SessionManager) Clear(c *gin.Context) error {
	session, err := m.store.Get(c.Request, m.name)
	if err != nil && session == nil {
		return err
	}
	session.Values = map[interface{}]interface{}{}
	session.Options.MaxAge = -1
	return session.Save(c.Request, c.Writer)
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
