package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/myformhq/myform/sys"
	"golang.org/x/oauth2"
)

// Discord OAuth2: /auth/discord redirects to Discord, the callback exchanges
// the code, loads the guilds the user can manage, and issues a JWT cookie
// referencing a server-side session.

const (
	sessionCookie     = "myform_session"
	permManageGuild   = 1 << 5
	permAdministrator = 1 << 3
)

// DiscordAPIBase is a variable so tests can point identity fetches at a
// local server.
var DiscordAPIBase = "https://discord.com/api/v10"

var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// oauthStates holds pending state tokens so the callback can reject forged
// requests. States expire with the same janitor as sessions.
var oauthStates sync.Map // state -> time.Time issued

func oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     sys.GlobalConfig.ClientID,
		ClientSecret: sys.GlobalConfig.ClientSecret,
		RedirectURL:  sys.GlobalConfig.BaseURL + "/auth/discord/callback",
		Scopes:       []string{"identify", "guilds"},
		Endpoint:     discordEndpoint,
	}
}

func handleAuthDiscord(c *gin.Context) {
	state := uuid.NewString()
	oauthStates.Store(state, time.Now())
	c.Redirect(http.StatusFound, oauthConfig().AuthCodeURL(state))
}

func handleAuthCallback(c *gin.Context) {
	state := c.Query("state")
	if _, ok := oauthStates.LoadAndDelete(state); !ok {
		renderError(c, http.StatusForbidden, "Invalid OAuth state, please log in again.")
		return
	}

	code := c.Query("code")
	if code == "" {
		renderError(c, http.StatusBadRequest, "Discord did not return an authorization code.")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	token, err := oauthConfig().Exchange(ctx, code)
	if err != nil {
		sys.LogPanel("OAuth exchange failed: %v", err)
		renderError(c, http.StatusBadGateway, "Discord login failed, please retry.")
		return
	}

	user, guilds, err := fetchDiscordIdentity(ctx, token.AccessToken)
	if err != nil {
		sys.LogPanel("identity fetch failed: %v", err)
		renderError(c, http.StatusBadGateway, "Could not load your Discord profile.")
		return
	}

	session := newSession(user.ID, user.Username, user.Avatar, guilds)

	signed, err := signSessionToken(session.ID)
	if err != nil {
		sys.LogPanel("token signing failed: %v", err)
		renderError(c, http.StatusInternalServerError, "Login failed.")
		return
	}

	c.SetCookie(sessionCookie, signed, int(sessionTTL.Seconds()), "/", "", false, true)
	c.Redirect(http.StatusFound, "/")
}

func handleLogout(c *gin.Context) {
	if claims := parseSessionCookie(c); claims != nil {
		dropSession(claims.SessionID)
	}
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/")
}

func signSessionToken(sessionID string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(sys.GlobalConfig.JWTSecret))
}

func parseSessionCookie(c *gin.Context) *sessionClaims {
	raw, err := c.Cookie(sessionCookie)
	if err != nil || raw == "" {
		return nil
	}
	token, err := jwt.ParseWithClaims(raw, &sessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(sys.GlobalConfig.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok {
		return nil
	}
	return claims
}

// requireSession loads the panel session for the request or redirects to
// login. API routes get a JSON 401 instead of a redirect.
func requireSession(api bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := parseSessionCookie(c)
		if claims != nil {
			if session := getSession(claims.SessionID); session != nil {
				c.Set("session", session)
				c.Next()
				return
			}
		}
		if api {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		c.Redirect(http.StatusFound, "/auth/discord")
		c.Abort()
	}
}

func currentSession(c *gin.Context) *panelSession {
	v, ok := c.Get("session")
	if !ok {
		return nil
	}
	return v.(*panelSession)
}

type discordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type discordGuild struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Permissions string `json:"permissions"`
	Owner       bool   `json:"owner"`
}

// fetchDiscordIdentity loads the user profile and the guilds where the user
// can manage forms.
func fetchDiscordIdentity(ctx context.Context, accessToken string) (*discordUser, map[string]string, error) {
	var user discordUser
	if err := discordGet(ctx, accessToken, "/users/@me", &user); err != nil {
		return nil, nil, err
	}

	var guilds []discordGuild
	if err := discordGet(ctx, accessToken, "/users/@me/guilds", &guilds); err != nil {
		return nil, nil, err
	}

	managed := make(map[string]string)
	for _, g := range guilds {
		perms := uint64(0)
		fmt.Sscan(g.Permissions, &perms)
		if g.Owner || perms&permManageGuild != 0 || perms&permAdministrator != 0 {
			managed[g.ID] = g.Name
		}
	}
	return &user, managed, nil
}

const discordGetAttempts = 3

// discordGet fetches a Discord API resource with the user's token. Rate
// limits are retried with the server-supplied backoff, up to three attempts;
// every other failure is surfaced immediately.
func discordGet(ctx context.Context, accessToken, path string, out any) error {
	var lastErr error
	for attempt := 1; attempt <= discordGetAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, DiscordAPIBase+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)

		resp, err := sys.HttpClient.Do(req)
		if err != nil {
			return err
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("discord API %s rate limited", path)
			wait := retryAfter(resp.Header.Get("Retry-After"), body)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if resp.StatusCode != 200 {
			return fmt.Errorf("discord API %s returned %d", path, resp.StatusCode)
		}
		if readErr != nil {
			return readErr
		}
		return json.Unmarshal(body, out)
	}
	return lastErr
}

// retryAfter extracts the backoff from a 429: the Retry-After header first,
// then the JSON retry_after field, then a one-second default.
func retryAfter(header string, body []byte) time.Duration {
	if header != "" {
		if secs, err := strconv.ParseFloat(header, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	var payload struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.RetryAfter > 0 {
		return time.Duration(payload.RetryAfter * float64(time.Second))
	}
	return time.Second
}
