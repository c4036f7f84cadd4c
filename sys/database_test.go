package sys

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) Store {
	t.Helper()
	store, err := OpenStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleForm(guildID, formID string) *Form {
	return &Form{
		ID:      formID,
		GuildID: guildID,
		Title:   "Candidature modérateur",
		Questions: []Question{
			{Text: "Pourquoi veux-tu rejoindre l'équipe ?", Style: QuestionStyleParagraph},
			{Text: "Quel âge as-tu ?", Style: QuestionStyleShort},
		},
		EmbedChannelID:    "100",
		ResponseChannelID: "200",
		EmbedText:         "Clique pour postuler !",
		ButtonLabel:       "Répondre",
		SingleResponse:    true,
		CreateThreads:     true,
		ClartyProtection:  true,
		Cooldown:          CooldownOptions{Enabled: true, DurationMinutes: 60},
		Review: ReviewOptions{
			Enabled:               true,
			CustomMessagesEnabled: true,
			AcceptMessage:         "Bienvenue !",
			AcceptRoleID:          "300",
		},
	}
}

func TestFormRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	form := sampleForm("g1", "f1")
	require.NoError(t, store.CreateForm(ctx, form))

	got, err := store.GetForm(ctx, "g1", "f1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, form.Title, got.Title)
	assert.Equal(t, form.Questions, got.Questions, "question order and styles must survive persistence")
	assert.Equal(t, form.Cooldown, got.Cooldown)
	assert.Equal(t, form.Review, got.Review)
	assert.True(t, got.SingleResponse)
	assert.Empty(t, got.EmbedMessageID)
	assert.False(t, got.Disabled)

	// Forms are scoped to their guild.
	missing, err := store.GetForm(ctx, "other-guild", "f1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	got.Title = "Candidature staff"
	got.Disabled = true
	require.NoError(t, store.UpdateForm(ctx, got))

	updated, err := store.GetForm(ctx, "g1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "Candidature staff", updated.Title)
	assert.True(t, updated.Disabled)

	require.NoError(t, store.SetFormEmbedMessage(ctx, "g1", "f1", "msg-1"))
	updated, err = store.GetForm(ctx, "g1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", updated.EmbedMessageID)

	count, err := store.CountForms(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, store.DeleteForm(ctx, "g1", "f1"))
	gone, err := store.GetForm(ctx, "g1", "f1")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestListFormsOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.CreateForm(ctx, sampleForm("g1", id)))
	}
	require.NoError(t, store.CreateForm(ctx, sampleForm("g2", "other")))

	forms, err := store.ListForms(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, forms, 3)
	for _, f := range forms {
		assert.Equal(t, "g1", f.GuildID)
	}
}

func TestBlacklist(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	blocked, err := store.IsBlacklisted(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, store.SetBlacklisted(ctx, "g1", "u1", true))
	blocked, err = store.IsBlacklisted(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.True(t, blocked)

	// Blacklist entries are per guild.
	blocked, err = store.IsBlacklisted(ctx, "g2", "u1")
	require.NoError(t, err)
	assert.False(t, blocked)

	users, err := store.ListBlacklist(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)

	require.NoError(t, store.SetBlacklisted(ctx, "g1", "u1", false))
	blocked, err = store.IsBlacklisted(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestRespondentLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	r := &Respondent{GuildID: "g1", FormID: "f1", UserID: "u1", MessageID: "m1", CreatedAt: time.Now()}
	require.NoError(t, store.PutRespondent(ctx, r))

	got, err := store.GetRespondent(ctx, "g1", "f1", "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "m1", got.MessageID)

	// Deleting by message re-opens eligibility for the submitter.
	require.NoError(t, store.DeleteRespondentByMessage(ctx, "g1", "f1", "m1"))
	got, err = store.GetRespondent(ctx, "g1", "f1", "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCooldowns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	expiry, err := store.GetCooldownExpiry(ctx, "g1", "f1", "u1")
	require.NoError(t, err)
	assert.Zero(t, expiry)

	require.NoError(t, store.SetCooldown(ctx, "g1", "f1", "u1", now+60_000))
	require.NoError(t, store.SetCooldown(ctx, "g1", "f1", "u2", now-1))

	expiry, err = store.GetCooldownExpiry(ctx, "g1", "f1", "u1")
	require.NoError(t, err)
	assert.Equal(t, now+60_000, expiry)

	pruned, err := store.SweepCooldowns(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)

	expiry, err = store.GetCooldownExpiry(ctx, "g1", "f1", "u1")
	require.NoError(t, err)
	assert.Equal(t, now+60_000, expiry, "active cooldowns survive the sweep")
}

func TestGiftCodeRedemption(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateGiftCode(ctx, "AAAA-BBBB-CCCC-DDDD", "staff"))

	premium, err := store.IsPremium(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, premium)

	require.NoError(t, store.RedeemGiftCode(ctx, "AAAA-BBBB-CCCC-DDDD", "g1", "u1"))

	premium, err = store.IsPremium(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, premium)

	code, err := store.GetGiftCode(ctx, "AAAA-BBBB-CCCC-DDDD")
	require.NoError(t, err)
	assert.True(t, code.Used)
	assert.Equal(t, "u1", code.UsedBy)
	assert.Equal(t, "g1", code.GuildID)

	// Second redemption attempt loses, regardless of guild.
	err = store.RedeemGiftCode(ctx, "AAAA-BBBB-CCCC-DDDD", "g2", "u2")
	assert.ErrorIs(t, err, ErrGiftCodeUsed)

	err = store.RedeemGiftCode(ctx, "ZZZZ-ZZZZ-ZZZZ-ZZZZ", "g1", "u1")
	assert.ErrorIs(t, err, ErrGiftCodeNotFound)

	count, err := store.CountPremium(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVoteCredits(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.SpendVoteCredit(ctx, "u1")
	assert.ErrorIs(t, err, ErrNoCredits)

	votedAt := time.Now().Truncate(time.Second)
	require.NoError(t, store.AddVoteCredits(ctx, "u1", 2, votedAt))
	require.NoError(t, store.AddVoteCredits(ctx, "u1", 3, votedAt.Add(12*time.Hour)))

	vc, err := store.GetVoteCredits(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, vc.Credits)

	require.NoError(t, store.SpendVoteCredit(ctx, "u1"))
	vc, err = store.GetVoteCredits(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, vc.Credits)

	stats, err := store.GetVoteStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Voters)
	assert.Equal(t, 4, stats.TotalCredits)
}

func TestDecideResponseFirstWins(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	r := &Response{
		GuildID: "g1", FormID: "f1", UserID: "u1",
		ChannelID: "c1", MessageID: "m1",
		Status: ResponseStatusPending, CreatedAt: time.Now(),
	}
	require.NoError(t, store.CreateResponse(ctx, r))

	won, err := store.DecideResponse(ctx, "m1", ResponseStatusAccepted, "mod1")
	require.NoError(t, err)
	assert.True(t, won)

	// A concurrent second decision must lose.
	won, err = store.DecideResponse(ctx, "m1", ResponseStatusRejected, "mod2")
	require.NoError(t, err)
	assert.False(t, won)

	got, err := store.GetResponse(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, ResponseStatusAccepted, got.Status)
	assert.Equal(t, "mod1", got.DecidedBy)
}

func TestAIUsage(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	used, err := store.GetAIUsage(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, used)

	require.NoError(t, store.IncrementAIUsage(ctx, "u1"))
	require.NoError(t, store.IncrementAIUsage(ctx, "u1"))

	used, err = store.GetAIUsage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, used)
}

func TestConfigValues(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	val, err := store.GetConfigValue(ctx, "commands_hash")
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, store.SetConfigValue(ctx, "commands_hash", "abc"))
	require.NoError(t, store.SetConfigValue(ctx, "commands_hash", "def"))

	val, err = store.GetConfigValue(ctx, "commands_hash")
	require.NoError(t, err)
	assert.Equal(t, "def", val)
}
