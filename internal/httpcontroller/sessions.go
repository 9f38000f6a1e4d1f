package httpcontroller

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	gocache "github.com/patrickmn/go-cache"

	"github.com/baseera/baseera-go/internal/wizard"
)

const sessionCookieName = "baseera-session"

// sessionTTL bounds both the cookie lifetime and the server side state. An
// idle session is swept once the TTL elapses; the next request from that
// browser simply starts at dish selection again.
const sessionTTL = 24 * time.Hour

// sessionManager binds wizard session state to browser cookies. The cookie
// only carries an opaque id; the state itself stays server side, in an
// expiring cache so abandoned sessions do not accumulate.
type sessionManager struct {
	store  *sessions.CookieStore
	wizard *wizard.Wizard

	mu     sync.Mutex
	states *gocache.Cache
}

func newSessionManager(secret string, wiz *wizard.Wizard) *sessionManager {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &sessionManager{
		store:  store,
		wizard: wiz,
		states: gocache.New(sessionTTL, time.Hour),
	}
}

// state returns the wizard state for the request's session, creating both
// the cookie and the state on first contact. Each access refreshes the
// state's expiry so only idle sessions are swept.
func (m *sessionManager) state(c echo.Context) (*wizard.SessionState, error) {
	session, err := m.store.Get(c.Request(), sessionCookieName)
	if err != nil {
		// A cookie signed with an old secret decodes to a fresh session.
		session, _ = m.store.New(c.Request(), sessionCookieName)
	}

	sid, ok := session.Values["sid"].(string)
	if !ok || sid == "" {
		sid = uuid.New().String()
		session.Values["sid"] = sid
		if err := session.Save(c.Request(), c.Response()); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.states.Get(sid); ok {
		state := cached.(*wizard.SessionState)
		m.states.SetDefault(sid, state)
		return state, nil
	}
	state := m.wizard.NewSession()
	m.states.SetDefault(sid, state)
	return state, nil
}
