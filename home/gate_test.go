package home

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myformhq/myform/sys"
)

func setupGateTest(t *testing.T) {
	t.Helper()
	store, err := sys.OpenStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	prevStore, prevConfig := sys.DataStore, sys.GlobalConfig
	sys.DataStore = store
	sys.GlobalConfig = &sys.Config{FreeFormLimit: 3, FreeAIQuota: 5}
	t.Cleanup(func() {
		sys.DataStore = prevStore
		sys.GlobalConfig = prevConfig
	})
}

func gateForm() *sys.Form {
	return &sys.Form{
		ID:      "f1",
		GuildID: "g1",
		Title:   "Candidature",
		Questions: []sys.Question{
			{Text: "Pourquoi ?", Style: sys.QuestionStyleParagraph},
		},
		EmbedChannelID:    "100",
		ResponseChannelID: "200",
	}
}

func TestGateMissingForm(t *testing.T) {
	setupGateTest(t)

	block, err := EvaluateGate(context.Background(), nil, "u1")
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, GateBlockGone, block.Code)
}

func TestGateDisabledForm(t *testing.T) {
	setupGateTest(t)

	form := gateForm()
	form.Disabled = true
	block, err := EvaluateGate(context.Background(), form, "u1")
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, GateBlockDisabled, block.Code)
}

func TestGateBlacklist(t *testing.T) {
	setupGateTest(t)
	ctx := context.Background()

	require.NoError(t, sys.DataStore.SetBlacklisted(ctx, "g1", "u1", true))

	block, err := EvaluateGate(ctx, gateForm(), "u1")
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, GateBlockBlacklisted, block.Code)

	block, err = EvaluateGate(ctx, gateForm(), "u2")
	require.NoError(t, err)
	assert.Nil(t, block)
}

func TestGateBlacklistBeforeClarty(t *testing.T) {
	setupGateTest(t)
	ctx := context.Background()

	clartyCalled := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clartyCalled = true
		w.Write([]byte(`{"blacklisted":true,"reason":"raid"}`))
	}))
	defer server.Close()
	sys.GlobalConfig.ClartyAPIURL = server.URL

	require.NoError(t, sys.DataStore.SetBlacklisted(ctx, "g1", "u1", true))

	form := gateForm()
	form.ClartyProtection = true
	block, err := EvaluateGate(ctx, form, "u1")
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, GateBlockBlacklisted, block.Code, "local blacklist short-circuits before the external lookup")
	assert.False(t, clartyCalled)
}

func TestGateClartyBlocks(t *testing.T) {
	setupGateTest(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/u1", r.URL.Path)
		w.Write([]byte(`{"blacklisted":true,"reason":"cross-server scam"}`))
	}))
	defer server.Close()
	sys.GlobalConfig.ClartyAPIURL = server.URL

	form := gateForm()
	form.ClartyProtection = true
	block, err := EvaluateGate(context.Background(), form, "u1")
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, GateBlockClarty, block.Code)
}

func TestGateClartyFailsOpen(t *testing.T) {
	setupGateTest(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	form := gateForm()
	form.ClartyProtection = true

	for name, url := range map[string]string{
		"server error": server.URL,
		"unreachable":  "http://127.0.0.1:1",
	} {
		t.Run(name, func(t *testing.T) {
			sys.GlobalConfig.ClartyAPIURL = url
			block, err := EvaluateGate(context.Background(), form, "u1")
			require.NoError(t, err)
			assert.Nil(t, block, "a Clarty outage must not block submissions")
		})
	}
}

func TestGateCooldownPremiumOnly(t *testing.T) {
	setupGateTest(t)
	ctx := context.Background()

	form := gateForm()
	form.Cooldown = sys.CooldownOptions{Enabled: true, DurationMinutes: 60}
	expiry := time.Now().Add(30 * time.Minute).UnixMilli()
	require.NoError(t, sys.DataStore.SetCooldown(ctx, "g1", "f1", "u1", expiry))

	// Free guild: the cooldown option is configured but inert.
	block, err := EvaluateGate(ctx, form, "u1")
	require.NoError(t, err)
	assert.Nil(t, block)

	require.NoError(t, sys.DataStore.CreateGiftCode(ctx, "TEST-TEST-TEST-TEST", "staff"))
	require.NoError(t, sys.DataStore.RedeemGiftCode(ctx, "TEST-TEST-TEST-TEST", "g1", "u1"))

	block, err = EvaluateGate(ctx, form, "u1")
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, GateBlockCooldown, block.Code)
	assert.Contains(t, block.Message, "minute")

	// Expired cooldown no longer blocks.
	require.NoError(t, sys.DataStore.SetCooldown(ctx, "g1", "f1", "u1", time.Now().Add(-time.Minute).UnixMilli()))
	block, err = EvaluateGate(ctx, form, "u1")
	require.NoError(t, err)
	assert.Nil(t, block)
}

func TestGateSingleResponse(t *testing.T) {
	setupGateTest(t)
	ctx := context.Background()

	form := gateForm()
	form.SingleResponse = true

	block, err := EvaluateGate(ctx, form, "u1")
	require.NoError(t, err)
	assert.Nil(t, block)

	require.NoError(t, sys.DataStore.PutRespondent(ctx, &sys.Respondent{
		GuildID: "g1", FormID: "f1", UserID: "u1", MessageID: "m1",
	}))

	block, err = EvaluateGate(ctx, form, "u1")
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, GateBlockAlreadySent, block.Code)

	// Deleting the response message re-opens the form for the submitter.
	require.NoError(t, sys.DataStore.DeleteRespondentByMessage(ctx, "g1", "f1", "m1"))
	block, err = EvaluateGate(ctx, form, "u1")
	require.NoError(t, err)
	assert.Nil(t, block)
}
