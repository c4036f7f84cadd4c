package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myformhq/myform/sys"
)

// newTestRouter wires the API routes behind a stub session, bypassing the
// OAuth flow.
func newTestRouter(t *testing.T, session *panelSession) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := sys.OpenStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	prevStore, prevConfig := sys.DataStore, sys.GlobalConfig
	sys.DataStore = store
	sys.GlobalConfig = &sys.Config{
		FreeFormLimit: 3,
		FreeAIQuota:   5,
		JWTSecret:     "test-secret",
		TopGGAuth:     "topgg-secret",
	}
	t.Cleanup(func() {
		sys.DataStore = prevStore
		sys.GlobalConfig = prevConfig
	})

	router := gin.New()
	api := router.Group("/api", func(c *gin.Context) {
		if session != nil {
			c.Set("session", session)
		}
		c.Next()
	})
	api.GET("/form/:guildId", handleListForms)
	api.GET("/form/:guildId/:formId", handleGetForm)
	api.POST("/form/:guildId", handleUpsertForm)
	api.POST("/form/:guildId/:formId", handleUpsertForm)
	api.DELETE("/forms/:guildId/:formId", handleDeleteFormAPI)
	api.POST("/forms/:guildId/:formId/toggle", handleToggleForm)
	api.POST("/gift-code/redeem", handleRedeemGiftCode)
	router.POST("/webhooks/topgg", handleTopGGWebhook)
	router.POST("/api/paypal/ipn", handlePayPalIPN)
	return router
}

func testSession(guilds ...string) *panelSession {
	m := make(map[string]string)
	for _, g := range guilds {
		m[g] = "Guild " + g
	}
	return &panelSession{
		ID: "test", UserID: "u1", Username: "tester",
		Guilds: m, ExpiresAt: time.Now().Add(time.Hour),
	}
}

func formPayload(title string) map[string]any {
	return map[string]any{
		"title":             title,
		"questions":         []map[string]string{{"text": "Pourquoi ?", "style": "PARAGRAPH"}},
		"embedChannelId":    "100",
		"responseChannelId": "200",
	}
}

func doJSON(router *gin.Engine, method, path string, payload any) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if payload != nil {
		json.NewEncoder(&body).Encode(payload)
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestFormAPILifecycle(t *testing.T) {
	router := newTestRouter(t, testSession("g1"))

	w := doJSON(router, http.MethodPost, "/api/form/g1", formPayload("Candidature"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created sys.Form
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Empty(t, created.EmbedMessageID)

	w = doJSON(router, http.MethodGet, "/api/form/g1/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/form/g1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []sys.Form
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	// The bot-owned embed message ID survives a panel update.
	require.NoError(t, sys.DataStore.SetFormEmbedMessage(context.Background(), "g1", created.ID, "msg-1"))
	update := formPayload("Candidature v2")
	update["embedMessageId"] = "hijacked"
	w = doJSON(router, http.MethodPost, "/api/form/g1/"+created.ID, update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	form, err := sys.DataStore.GetForm(context.Background(), "g1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Candidature v2", form.Title)
	assert.Equal(t, "msg-1", form.EmbedMessageID)

	w = doJSON(router, http.MethodPost, "/api/forms/g1/"+created.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	form, err = sys.DataStore.GetForm(context.Background(), "g1", created.ID)
	require.NoError(t, err)
	assert.True(t, form.Disabled)

	w = doJSON(router, http.MethodDelete, "/api/forms/g1/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	form, err = sys.DataStore.GetForm(context.Background(), "g1", created.ID)
	require.NoError(t, err)
	assert.Nil(t, form)
}

func TestFormAPIValidation(t *testing.T) {
	router := newTestRouter(t, testSession("g1"))

	tests := []struct {
		name   string
		mutate func(p map[string]any)
	}{
		{"missing title", func(p map[string]any) { p["title"] = "" }},
		{"no questions", func(p map[string]any) { p["questions"] = []map[string]string{} }},
		{"bad style", func(p map[string]any) {
			p["questions"] = []map[string]string{{"text": "Q", "style": "ESSAY"}}
		}},
		{"question over 100 chars", func(p map[string]any) {
			p["questions"] = []map[string]string{{"text": strings.Repeat("q", 101), "style": "SHORT"}}
		}},
		{"missing channel", func(p map[string]any) { p["embedChannelId"] = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := formPayload("Test")
			tt.mutate(payload)
			w := doJSON(router, http.MethodPost, "/api/form/g1", payload)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestFormAPIForbiddenGuild(t *testing.T) {
	router := newTestRouter(t, testSession("g1"))

	w := doJSON(router, http.MethodPost, "/api/form/g2", formPayload("Intrus"))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(router, http.MethodGet, "/api/form/g2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestFreeFormLimitAndPremium(t *testing.T) {
	router := newTestRouter(t, testSession("g1"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		w := doJSON(router, http.MethodPost, "/api/form/g1", formPayload(fmt.Sprintf("Form %d", i)))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := doJSON(router, http.MethodPost, "/api/form/g1", formPayload("One too many"))
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	// Premium lifts the cap.
	require.NoError(t, sys.DataStore.CreateGiftCode(ctx, "AAAA-BBBB-CCCC-DDDD", "staff"))
	w = doJSON(router, http.MethodPost, "/api/gift-code/redeem",
		map[string]string{"code": "aaaa-bbbb-cccc-dddd", "guildId": "g1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(router, http.MethodPost, "/api/form/g1", formPayload("Fourth form"))
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Codes are single-use.
	w = doJSON(router, http.MethodPost, "/api/gift-code/redeem",
		map[string]string{"code": "AAAA-BBBB-CCCC-DDDD", "guildId": "g1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, http.MethodPost, "/api/gift-code/redeem",
		map[string]string{"code": "ZZZZ-ZZZZ-ZZZZ-ZZZZ", "guildId": "g1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
