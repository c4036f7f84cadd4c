package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myformhq/myform/sys"
)

func setupAuthTest(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	prevConfig := sys.GlobalConfig
	sys.GlobalConfig = &sys.Config{JWTSecret: "test-secret"}
	t.Cleanup(func() {
		sys.GlobalConfig = prevConfig
		sessions.Range(func(key, _ any) bool {
			sessions.Delete(key)
			return true
		})
	})
}

func authRouter(api bool) *gin.Engine {
	router := gin.New()
	router.GET("/protected", requireSession(api), func(c *gin.Context) {
		c.String(http.StatusOK, currentSession(c).Username)
	})
	return router
}

func TestSessionTokenRoundTrip(t *testing.T) {
	setupAuthTest(t)

	session := newSession("u1", "tester", "", map[string]string{"g1": "Guild"})
	signed, err := signSessionToken(session.ID)
	require.NoError(t, err)

	router := authRouter(true)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: signed})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tester", w.Body.String())
}

func TestRequireSessionRejectsBadTokens(t *testing.T) {
	setupAuthTest(t)
	router := authRouter(true)

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"no cookie", nil},
		{"garbage token", &http.Cookie{Name: sessionCookie, Value: "not-a-jwt"}},
		{"unknown session", func() *http.Cookie {
			signed, _ := signSessionToken("no-such-session")
			return &http.Cookie{Name: sessionCookie, Value: signed}
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireSessionRedirectsPages(t *testing.T) {
	setupAuthTest(t)
	router := authRouter(false)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/discord", w.Header().Get("Location"))
}

func TestSessionExpiry(t *testing.T) {
	setupAuthTest(t)

	session := newSession("u1", "tester", "", nil)
	session.ExpiresAt = time.Now().Add(-time.Second)

	assert.Nil(t, getSession(session.ID), "expired sessions are dropped on access")
}

func TestSweepSessions(t *testing.T) {
	setupAuthTest(t)

	fresh := newSession("u1", "fresh", "", nil)
	stale := newSession("u2", "stale", "", nil)
	stale.ExpiresAt = time.Now().Add(-time.Minute)

	removed := sweepSessions()
	assert.Equal(t, 1, removed)
	assert.NotNil(t, getSession(fresh.ID))
	assert.Nil(t, getSession(stale.ID))
}

func TestCanManage(t *testing.T) {
	s := &panelSession{Guilds: map[string]string{"g1": "Guild"}}
	assert.True(t, s.canManage("g1"))
	assert.False(t, s.canManage("g2"))
}

func withDiscordAPI(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	prev := DiscordAPIBase
	DiscordAPIBase = server.URL
	t.Cleanup(func() { DiscordAPIBase = prev })
}

func TestDiscordGetRetriesRateLimit(t *testing.T) {
	calls := 0
	withDiscordAPI(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"id":"u1","username":"tester"}`))
	})

	var user discordUser
	err := discordGet(context.Background(), "token", "/users/@me", &user)
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "two rate limits then success")
	assert.Equal(t, "tester", user.Username)
}

func TestDiscordGetGivesUpAfterThreeRateLimits(t *testing.T) {
	calls := 0
	withDiscordAPI(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"retry_after":0.01}`))
	})

	var user discordUser
	err := discordGet(context.Background(), "token", "/users/@me", &user)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDiscordGetFailsFastOnOtherErrors(t *testing.T) {
	calls := 0
	withDiscordAPI(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	})

	var user discordUser
	err := discordGet(context.Background(), "token", "/users/@me", &user)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "non-429 statuses are not retried")
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryAfter("2", nil))
	assert.Equal(t, 500*time.Millisecond, retryAfter("0.5", nil))
	assert.Equal(t, 250*time.Millisecond, retryAfter("", []byte(`{"retry_after":0.25}`)))
	assert.Equal(t, time.Second, retryAfter("", []byte(`not json`)))
}
