package web

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Panel sessions are server-side and short-lived: 15 minutes after login the
// session is dropped and the user has to re-authenticate. The JWT cookie
// only references the session ID, so guild permissions never leave the
// server.

const sessionTTL = 15 * time.Minute

type panelSession struct {
	ID        string
	UserID    string
	Username  string
	Avatar    string
	Guilds    map[string]string // guildID -> guild name, manage-permission guilds only
	ExpiresAt time.Time
}

var sessions sync.Map // sessionID -> *panelSession

func newSession(userID, username, avatar string, guilds map[string]string) *panelSession {
	s := &panelSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  username,
		Avatar:    avatar,
		Guilds:    guilds,
		ExpiresAt: time.Now().Add(sessionTTL),
	}
	sessions.Store(s.ID, s)
	return s
}

func getSession(id string) *panelSession {
	v, ok := sessions.Load(id)
	if !ok {
		return nil
	}
	s := v.(*panelSession)
	if time.Now().After(s.ExpiresAt) {
		sessions.Delete(id)
		return nil
	}
	return s
}

func dropSession(id string) {
	sessions.Delete(id)
}

// canManage reports whether the session's user holds manage-guild on the
// given guild.
func (s *panelSession) canManage(guildID string) bool {
	_, ok := s.Guilds[guildID]
	return ok
}

// sweepSessions removes expired sessions; run periodically by the panel
// janitor.
func sweepSessions() int {
	now := time.Now()
	removed := 0
	sessions.Range(func(key, value any) bool {
		if now.After(value.(*panelSession).ExpiresAt) {
			sessions.Delete(key)
			removed++
		}
		return true
	})
	return removed
}
