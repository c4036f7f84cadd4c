package sys

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	MsgDatabaseInitSuccess = "Database initialized successfully"
	MsgDatabaseTableError  = "failed to create table: %w"
	MsgDatabasePragmaError = "failed to set pragma %s: %w"
	MsgDBMigrationFail     = "migration failed: %w"
)

// Question styles mirror the two modal input styles the platform offers.
const (
	QuestionStyleShort     = "SHORT"
	QuestionStyleParagraph = "PARAGRAPH"
)

// Review states for a published response.
const (
	ResponseStatusNone     = "none" // review workflow disabled for the form
	ResponseStatusPending  = "pending"
	ResponseStatusAccepted = "accepted"
	ResponseStatusRejected = "rejected"
)

type Question struct {
	Text  string `json:"text"`
	Style string `json:"style"`
}

type CooldownOptions struct {
	Enabled         bool `json:"enabled"`
	DurationMinutes int  `json:"durationMinutes"`
}

type ReviewOptions struct {
	Enabled               bool   `json:"enabled"`
	CustomMessagesEnabled bool   `json:"customMessagesEnabled"`
	ShowStatusMessage     bool   `json:"showStatusMessage"`
	AcceptMessage         string `json:"acceptMessage"`
	RejectMessage         string `json:"rejectMessage"`
	AcceptRoleID          string `json:"acceptRoleId"`
	RejectRoleID          string `json:"rejectRoleId"`
}

type Form struct {
	ID                string          `json:"id"`
	GuildID           string          `json:"-"`
	Title             string          `json:"title"`
	Questions         []Question      `json:"questions"`
	EmbedChannelID    string          `json:"embedChannelId"`
	ResponseChannelID string          `json:"responseChannelId"`
	EmbedText         string          `json:"embedText"`
	ButtonLabel       string          `json:"buttonLabel"`
	SingleResponse    bool            `json:"singleResponse"`
	CreateThreads     bool            `json:"createThreads"`
	ClartyProtection  bool            `json:"clartyProtection"`
	Cooldown          CooldownOptions `json:"cooldownOptions"`
	Review            ReviewOptions   `json:"reviewOptions"`
	EmbedMessageID    string          `json:"embedMessageId"` // "" until the embed is first published
	Disabled          bool            `json:"disabled"`
}

type Respondent struct {
	GuildID   string
	FormID    string
	UserID    string
	MessageID string
	CreatedAt time.Time
}

type GiftCode struct {
	Code      string
	GuildID   string // bound after redemption
	CreatedBy string
	CreatedAt time.Time
	Used      bool
	UsedBy    string
	UsedAt    time.Time
}

type VoteCredit struct {
	UserID   string
	Credits  int
	LastVote time.Time // zero when the user never voted
}

type VoteStats struct {
	Voters       int
	TotalCredits int
	VotesToday   int
}

// Response tracks the review lifecycle of one published response message.
type Response struct {
	GuildID   string
	FormID    string
	UserID    string
	ChannelID string
	MessageID string
	Status    string
	DecidedBy string
	DecidedAt time.Time
	CreatedAt time.Time
}

type SupportPreference struct {
	UserID    string
	PreferDM  bool
	Reminders bool
	UpdatedAt time.Time
}

// Store fronts all persistent state so call sites never touch the database
// driver directly and tests can run against an in-memory instance.
type Store interface {
	// Forms
	CreateForm(ctx context.Context, f *Form) error
	GetForm(ctx context.Context, guildID, formID string) (*Form, error)
	UpdateForm(ctx context.Context, f *Form) error
	DeleteForm(ctx context.Context, guildID, formID string) error
	ListForms(ctx context.Context, guildID string) ([]*Form, error)
	CountForms(ctx context.Context, guildID string) (int, error)
	SetFormDisabled(ctx context.Context, guildID, formID string, disabled bool) error
	SetFormEmbedMessage(ctx context.Context, guildID, formID, messageID string) error

	// Blacklist
	IsBlacklisted(ctx context.Context, guildID, userID string) (bool, error)
	SetBlacklisted(ctx context.Context, guildID, userID string, blocked bool) error
	ListBlacklist(ctx context.Context, guildID string) ([]string, error)

	// Respondents (single-response forms)
	GetRespondent(ctx context.Context, guildID, formID, userID string) (*Respondent, error)
	PutRespondent(ctx context.Context, r *Respondent) error
	DeleteRespondent(ctx context.Context, guildID, formID, userID string) error
	DeleteRespondentByMessage(ctx context.Context, guildID, formID, messageID string) error

	// Cooldowns
	GetCooldownExpiry(ctx context.Context, guildID, formID, userID string) (int64, error)
	SetCooldown(ctx context.Context, guildID, formID, userID string, expiresAt int64) error
	SweepCooldowns(ctx context.Context, now int64) (int64, error)

	// Premium & gift codes
	IsPremium(ctx context.Context, guildID string) (bool, error)
	CountPremium(ctx context.Context) (int, error)
	CreateGiftCode(ctx context.Context, code, createdBy string) error
	GetGiftCode(ctx context.Context, code string) (*GiftCode, error)
	RedeemGiftCode(ctx context.Context, code, guildID, userID string) error

	// Vote credits
	GetVoteCredits(ctx context.Context, userID string) (*VoteCredit, error)
	AddVoteCredits(ctx context.Context, userID string, amount int, votedAt time.Time) error
	SpendVoteCredit(ctx context.Context, userID string) error
	ListVoteEligible(ctx context.Context, votedBefore time.Time) ([]*VoteCredit, error)
	GetVoteStats(ctx context.Context) (*VoteStats, error)

	// AI quota
	GetAIUsage(ctx context.Context, userID string) (int, error)
	IncrementAIUsage(ctx context.Context, userID string) error

	// Responses (review lifecycle)
	CreateResponse(ctx context.Context, r *Response) error
	GetResponse(ctx context.Context, messageID string) (*Response, error)
	DecideResponse(ctx context.Context, messageID, status, actorID string) (bool, error)
	DeleteResponse(ctx context.Context, messageID string) error

	// Support preferences
	GetSupportPreference(ctx context.Context, userID string) (*SupportPreference, error)
	SetSupportPreference(ctx context.Context, p *SupportPreference) error
	CountSupportPreferences(ctx context.Context) (total int, preferDM int, err error)

	// Bot config
	GetConfigValue(ctx context.Context, key string) (string, error)
	SetConfigValue(ctx context.Context, key, value string) error

	// Maintenance
	BackupTo(ctx context.Context, path string) error
	Close() error
}

// ErrGiftCodeUsed and friends are sentinel errors for deterministic
// redemption failures.
var (
	ErrGiftCodeNotFound = fmt.Errorf("gift code does not exist")
	ErrGiftCodeUsed     = fmt.Errorf("gift code already used")
	ErrNoCredits        = fmt.Errorf("no vote credits left")
	ErrFormNotFound     = fmt.Errorf("form does not exist")
)

// DataStore is the injected store used by all handlers. InitDatabase sets it
// to a SQLite-backed implementation; tests may replace it.
var DataStore Store

type sqliteStore struct {
	db *sql.DB
}

// InitDatabase opens the SQLite database, applies pragmas and schema, and
// installs the resulting store as the global DataStore.
func InitDatabase(ctx context.Context, dataSourceName string) error {
	store, err := OpenStore(ctx, dataSourceName)
	if err != nil {
		return err
	}
	DataStore = store
	LogDatabase(MsgDatabaseInitSuccess)
	return nil
}

// OpenStore opens a SQLite-backed store without installing it globally.
func OpenStore(ctx context.Context, dataSourceName string) (Store, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, err
	}

	if strings.Contains(dataSourceName, ":memory:") {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, p := range pragmas {
		if _, err := db.ExecContext(initCtx, p); err != nil {
			return nil, fmt.Errorf(MsgDatabasePragmaError, p, err)
		}
	}

	tx, err := db.BeginTx(initCtx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tableQueries := []string{
		`CREATE TABLE IF NOT EXISTS forms (
			guild_id TEXT NOT NULL,
			form_id TEXT NOT NULL,
			title TEXT NOT NULL,
			questions TEXT NOT NULL DEFAULT '[]',
			embed_channel_id TEXT,
			response_channel_id TEXT,
			embed_text TEXT,
			button_label TEXT,
			single_response INTEGER DEFAULT 0,
			create_threads INTEGER DEFAULT 0,
			clarty_protection INTEGER DEFAULT 0,
			cooldown_enabled INTEGER DEFAULT 0,
			cooldown_minutes INTEGER DEFAULT 0,
			review_enabled INTEGER DEFAULT 0,
			review_custom_messages INTEGER DEFAULT 0,
			review_status_message INTEGER DEFAULT 0,
			review_accept_message TEXT,
			review_reject_message TEXT,
			review_accept_role_id TEXT,
			review_reject_role_id TEXT,
			embed_message_id TEXT,
			disabled INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (guild_id, form_id)
		)`,
		`CREATE TABLE IF NOT EXISTS blacklist (
			guild_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (guild_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS respondents (
			guild_id TEXT NOT NULL,
			form_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			message_id TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (guild_id, form_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS cooldowns (
			guild_id TEXT NOT NULL,
			form_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (guild_id, form_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS premium_guilds (
			guild_id TEXT PRIMARY KEY,
			granted_by TEXT,
			granted_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS gift_codes (
			code TEXT PRIMARY KEY,
			guild_id TEXT,
			created_by TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			used INTEGER DEFAULT 0,
			used_by TEXT,
			used_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS vote_credits (
			user_id TEXT PRIMARY KEY,
			credits INTEGER DEFAULT 0,
			last_vote INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS ai_usage (
			user_id TEXT PRIMARY KEY,
			used INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS responses (
			message_id TEXT PRIMARY KEY,
			guild_id TEXT NOT NULL,
			form_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			decided_by TEXT,
			decided_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS support_preferences (
			user_id TEXT PRIMARY KEY,
			prefer_dm INTEGER DEFAULT 1,
			reminders INTEGER DEFAULT 1,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS bot_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_form ON responses(guild_id, form_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cooldowns_expiry ON cooldowns(expires_at)`,
	}

	for _, q := range tableQueries {
		if _, err := tx.ExecContext(initCtx, q); err != nil {
			return nil, fmt.Errorf(MsgDatabaseTableError, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	migrations := []string{
		"ALTER TABLE support_preferences ADD COLUMN reminders INTEGER DEFAULT 1",
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(initCtx, m); err != nil {
			if !strings.Contains(err.Error(), "duplicate column") {
				return nil, fmt.Errorf(MsgDBMigrationFail, err)
			}
		}
	}

	return &sqliteStore{db: db}, nil
}

// CloseDatabase closes the global store.
func CloseDatabase() {
	if DataStore != nil {
		_ = DataStore.Close()
	}
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// --- Forms ---

func scanForm(row interface{ Scan(...any) error }) (*Form, error) {
	f := &Form{}
	var questionsJSON string
	var embedChannel, responseChannel, embedText, buttonLabel sql.NullString
	var acceptMsg, rejectMsg, acceptRole, rejectRole, embedMsgID sql.NullString
	var singleResponse, createThreads, clarty, cdEnabled, rvEnabled, rvCustom, rvStatus, disabled int

	err := row.Scan(
		&f.GuildID, &f.ID, &f.Title, &questionsJSON,
		&embedChannel, &responseChannel, &embedText, &buttonLabel,
		&singleResponse, &createThreads, &clarty,
		&cdEnabled, &f.Cooldown.DurationMinutes,
		&rvEnabled, &rvCustom, &rvStatus,
		&acceptMsg, &rejectMsg, &acceptRole, &rejectRole,
		&embedMsgID, &disabled,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(questionsJSON), &f.Questions); err != nil {
		return nil, fmt.Errorf("corrupt questions for form %s: %w", f.ID, err)
	}

	f.EmbedChannelID = embedChannel.String
	f.ResponseChannelID = responseChannel.String
	f.EmbedText = embedText.String
	f.ButtonLabel = buttonLabel.String
	f.SingleResponse = singleResponse == 1
	f.CreateThreads = createThreads == 1
	f.ClartyProtection = clarty == 1
	f.Cooldown.Enabled = cdEnabled == 1
	f.Review.Enabled = rvEnabled == 1
	f.Review.CustomMessagesEnabled = rvCustom == 1
	f.Review.ShowStatusMessage = rvStatus == 1
	f.Review.AcceptMessage = acceptMsg.String
	f.Review.RejectMessage = rejectMsg.String
	f.Review.AcceptRoleID = acceptRole.String
	f.Review.RejectRoleID = rejectRole.String
	f.EmbedMessageID = embedMsgID.String
	f.Disabled = disabled == 1

	return f, nil
}

const formColumns = `guild_id, form_id, title, questions,
	embed_channel_id, response_channel_id, embed_text, button_label,
	single_response, create_threads, clarty_protection,
	cooldown_enabled, cooldown_minutes,
	review_enabled, review_custom_messages, review_status_message,
	review_accept_message, review_reject_message, review_accept_role_id, review_reject_role_id,
	embed_message_id, disabled`

func (s *sqliteStore) CreateForm(ctx context.Context, f *Form) error {
	questionsJSON, err := json.Marshal(f.Questions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO forms (`+formColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		f.GuildID, f.ID, f.Title, string(questionsJSON),
		f.EmbedChannelID, f.ResponseChannelID, f.EmbedText, f.ButtonLabel,
		boolToInt(f.SingleResponse), boolToInt(f.CreateThreads), boolToInt(f.ClartyProtection),
		boolToInt(f.Cooldown.Enabled), f.Cooldown.DurationMinutes,
		boolToInt(f.Review.Enabled), boolToInt(f.Review.CustomMessagesEnabled), boolToInt(f.Review.ShowStatusMessage),
		f.Review.AcceptMessage, f.Review.RejectMessage, f.Review.AcceptRoleID, f.Review.RejectRoleID,
		f.EmbedMessageID, boolToInt(f.Disabled),
	)
	return err
}

func (s *sqliteStore) GetForm(ctx context.Context, guildID, formID string) (*Form, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+formColumns+` FROM forms WHERE guild_id = ? AND form_id = ?`, guildID, formID)
	f, err := scanForm(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

func (s *sqliteStore) UpdateForm(ctx context.Context, f *Form) error {
	questionsJSON, err := json.Marshal(f.Questions)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE forms SET
			title = ?, questions = ?,
			embed_channel_id = ?, response_channel_id = ?, embed_text = ?, button_label = ?,
			single_response = ?, create_threads = ?, clarty_protection = ?,
			cooldown_enabled = ?, cooldown_minutes = ?,
			review_enabled = ?, review_custom_messages = ?, review_status_message = ?,
			review_accept_message = ?, review_reject_message = ?, review_accept_role_id = ?, review_reject_role_id = ?,
			embed_message_id = ?, disabled = ?
		WHERE guild_id = ? AND form_id = ?
	`,
		f.Title, string(questionsJSON),
		f.EmbedChannelID, f.ResponseChannelID, f.EmbedText, f.ButtonLabel,
		boolToInt(f.SingleResponse), boolToInt(f.CreateThreads), boolToInt(f.ClartyProtection),
		boolToInt(f.Cooldown.Enabled), f.Cooldown.DurationMinutes,
		boolToInt(f.Review.Enabled), boolToInt(f.Review.CustomMessagesEnabled), boolToInt(f.Review.ShowStatusMessage),
		f.Review.AcceptMessage, f.Review.RejectMessage, f.Review.AcceptRoleID, f.Review.RejectRoleID,
		f.EmbedMessageID, boolToInt(f.Disabled),
		f.GuildID, f.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFormNotFound
	}
	return nil
}

func (s *sqliteStore) DeleteForm(ctx context.Context, guildID, formID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM forms WHERE guild_id = ? AND form_id = ?", guildID, formID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM respondents WHERE guild_id = ? AND form_id = ?", guildID, formID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM cooldowns WHERE guild_id = ? AND form_id = ?", guildID, formID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM responses WHERE guild_id = ? AND form_id = ?", guildID, formID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) ListForms(ctx context.Context, guildID string) ([]*Form, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+formColumns+` FROM forms WHERE guild_id = ? ORDER BY form_id ASC`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var forms []*Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

func (s *sqliteStore) CountForms(ctx context.Context, guildID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM forms WHERE guild_id = ?", guildID).Scan(&n)
	return n, err
}

func (s *sqliteStore) SetFormDisabled(ctx context.Context, guildID, formID string, disabled bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE forms SET disabled = ? WHERE guild_id = ? AND form_id = ?", boolToInt(disabled), guildID, formID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFormNotFound
	}
	return nil
}

func (s *sqliteStore) SetFormEmbedMessage(ctx context.Context, guildID, formID, messageID string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE forms SET embed_message_id = ? WHERE guild_id = ? AND form_id = ?", messageID, guildID, formID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFormNotFound
	}
	return nil
}

// --- Blacklist ---

func (s *sqliteStore) IsBlacklisted(ctx context.Context, guildID, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blacklist WHERE guild_id = ? AND user_id = ?", guildID, userID).Scan(&n)
	return n > 0, err
}

func (s *sqliteStore) SetBlacklisted(ctx context.Context, guildID, userID string, blocked bool) error {
	if blocked {
		_, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO blacklist (guild_id, user_id) VALUES (?, ?)", guildID, userID)
		return err
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM blacklist WHERE guild_id = ? AND user_id = ?", guildID, userID)
	return err
}

func (s *sqliteStore) ListBlacklist(ctx context.Context, guildID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT user_id FROM blacklist WHERE guild_id = ? ORDER BY created_at ASC", guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// --- Respondents ---

func (s *sqliteStore) GetRespondent(ctx context.Context, guildID, formID, userID string) (*Respondent, error) {
	r := &Respondent{}
	var messageID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT guild_id, form_id, user_id, message_id, created_at
		FROM respondents WHERE guild_id = ? AND form_id = ? AND user_id = ?
	`, guildID, formID, userID).Scan(&r.GuildID, &r.FormID, &r.UserID, &messageID, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.MessageID = messageID.String
	return r, nil
}

func (s *sqliteStore) PutRespondent(ctx context.Context, r *Respondent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO respondents (guild_id, form_id, user_id, message_id) VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id, form_id, user_id) DO UPDATE SET message_id = excluded.message_id
	`, r.GuildID, r.FormID, r.UserID, r.MessageID)
	return err
}

func (s *sqliteStore) DeleteRespondent(ctx context.Context, guildID, formID, userID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM respondents WHERE guild_id = ? AND form_id = ? AND user_id = ?", guildID, formID, userID)
	return err
}

func (s *sqliteStore) DeleteRespondentByMessage(ctx context.Context, guildID, formID, messageID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM respondents WHERE guild_id = ? AND form_id = ? AND message_id = ?", guildID, formID, messageID)
	return err
}

// --- Cooldowns ---

func (s *sqliteStore) GetCooldownExpiry(ctx context.Context, guildID, formID, userID string) (int64, error) {
	var expiry int64
	err := s.db.QueryRowContext(ctx, `
		SELECT expires_at FROM cooldowns WHERE guild_id = ? AND form_id = ? AND user_id = ?
	`, guildID, formID, userID).Scan(&expiry)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return expiry, err
}

func (s *sqliteStore) SetCooldown(ctx context.Context, guildID, formID, userID string, expiresAt int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cooldowns (guild_id, form_id, user_id, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id, form_id, user_id) DO UPDATE SET expires_at = excluded.expires_at
	`, guildID, formID, userID, expiresAt)
	return err
}

func (s *sqliteStore) SweepCooldowns(ctx context.Context, now int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cooldowns WHERE expires_at <= ?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Premium & gift codes ---

func (s *sqliteStore) IsPremium(ctx context.Context, guildID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM premium_guilds WHERE guild_id = ?", guildID).Scan(&n)
	return n > 0, err
}

func (s *sqliteStore) CountPremium(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM premium_guilds").Scan(&n)
	return n, err
}

func (s *sqliteStore) CreateGiftCode(ctx context.Context, code, createdBy string) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO gift_codes (code, created_by) VALUES (?, ?)", code, createdBy)
	return err
}

func (s *sqliteStore) GetGiftCode(ctx context.Context, code string) (*GiftCode, error) {
	g := &GiftCode{}
	var guildID, usedBy sql.NullString
	var usedAt sql.NullTime
	var used int
	err := s.db.QueryRowContext(ctx, `
		SELECT code, guild_id, created_by, created_at, used, used_by, used_at
		FROM gift_codes WHERE code = ?
	`, code).Scan(&g.Code, &guildID, &g.CreatedBy, &g.CreatedAt, &used, &usedBy, &usedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.GuildID = guildID.String
	g.Used = used == 1
	g.UsedBy = usedBy.String
	g.UsedAt = usedAt.Time
	return g, nil
}

// RedeemGiftCode atomically marks the code used and grants premium. The
// conditional UPDATE makes the used transition first-wins; the surrounding
// transaction guarantees the premium set never gains a guild whose
// redemption failed to persist.
func (s *sqliteStore) RedeemGiftCode(ctx context.Context, code, guildID, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE gift_codes SET used = 1, used_by = ?, used_at = CURRENT_TIMESTAMP, guild_id = ?
		WHERE code = ? AND used = 0
	`, userID, guildID, code)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM gift_codes WHERE code = ?", code).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrGiftCodeNotFound
		}
		return ErrGiftCodeUsed
	}

	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO premium_guilds (guild_id, granted_by) VALUES (?, ?)", guildID, userID); err != nil {
		return err
	}

	return tx.Commit()
}

// --- Vote credits ---

func (s *sqliteStore) GetVoteCredits(ctx context.Context, userID string) (*VoteCredit, error) {
	v := &VoteCredit{UserID: userID}
	var lastVote int64
	err := s.db.QueryRowContext(ctx, "SELECT credits, last_vote FROM vote_credits WHERE user_id = ?", userID).Scan(&v.Credits, &lastVote)
	if err == sql.ErrNoRows {
		return v, nil
	}
	if err != nil {
		return nil, err
	}
	if lastVote > 0 {
		v.LastVote = time.UnixMilli(lastVote)
	}
	return v, nil
}

func (s *sqliteStore) AddVoteCredits(ctx context.Context, userID string, amount int, votedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vote_credits (user_id, credits, last_vote) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET credits = credits + excluded.credits, last_vote = excluded.last_vote
	`, userID, amount, votedAt.UnixMilli())
	return err
}

func (s *sqliteStore) SpendVoteCredit(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE vote_credits SET credits = credits - 1 WHERE user_id = ? AND credits > 0", userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoCredits
	}
	return nil
}

func (s *sqliteStore) ListVoteEligible(ctx context.Context, votedBefore time.Time) ([]*VoteCredit, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT user_id, credits, last_vote FROM vote_credits WHERE last_vote > 0 AND last_vote <= ? ORDER BY last_vote ASC", votedBefore.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*VoteCredit
	for rows.Next() {
		v := &VoteCredit{}
		var lastVote int64
		if err := rows.Scan(&v.UserID, &v.Credits, &lastVote); err != nil {
			return nil, err
		}
		v.LastVote = time.UnixMilli(lastVote)
		entries = append(entries, v)
	}
	return entries, rows.Err()
}

func (s *sqliteStore) GetVoteStats(ctx context.Context) (*VoteStats, error) {
	stats := &VoteStats{}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(credits), 0) FROM vote_credits").Scan(&stats.Voters, &stats.TotalCredits); err != nil {
		return nil, err
	}
	dayStart := time.Now().UTC().Truncate(24 * time.Hour).UnixMilli()
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vote_credits WHERE last_vote >= ?", dayStart).Scan(&stats.VotesToday); err != nil {
		return nil, err
	}
	return stats, nil
}

// --- AI quota ---

func (s *sqliteStore) GetAIUsage(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT used FROM ai_usage WHERE user_id = ?", userID).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}

func (s *sqliteStore) IncrementAIUsage(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_usage (user_id, used) VALUES (?, 1)
		ON CONFLICT(user_id) DO UPDATE SET used = used + 1
	`, userID)
	return err
}

// --- Responses ---

func (s *sqliteStore) CreateResponse(ctx context.Context, r *Response) error {
	status := r.Status
	if status == "" {
		status = ResponseStatusPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO responses (message_id, guild_id, form_id, user_id, channel_id, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.MessageID, r.GuildID, r.FormID, r.UserID, r.ChannelID, status)
	return err
}

func (s *sqliteStore) GetResponse(ctx context.Context, messageID string) (*Response, error) {
	r := &Response{}
	var decidedBy sql.NullString
	var decidedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT message_id, guild_id, form_id, user_id, channel_id, status, decided_by, decided_at, created_at
		FROM responses WHERE message_id = ?
	`, messageID).Scan(&r.MessageID, &r.GuildID, &r.FormID, &r.UserID, &r.ChannelID, &r.Status, &decidedBy, &decidedAt, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.DecidedBy = decidedBy.String
	r.DecidedAt = decidedAt.Time
	return r, nil
}

// DecideResponse commits an accept/reject decision. The conditional UPDATE
// makes the transition first-wins: false is returned when the response was
// already decided.
func (s *sqliteStore) DecideResponse(ctx context.Context, messageID, status, actorID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE responses SET status = ?, decided_by = ?, decided_at = CURRENT_TIMESTAMP
		WHERE message_id = ? AND status = ?
	`, status, actorID, messageID, ResponseStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *sqliteStore) DeleteResponse(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM responses WHERE message_id = ?", messageID)
	return err
}

// --- Support preferences ---

func (s *sqliteStore) GetSupportPreference(ctx context.Context, userID string) (*SupportPreference, error) {
	p := &SupportPreference{UserID: userID, PreferDM: true, Reminders: true}
	var preferDM, reminders int
	err := s.db.QueryRowContext(ctx, "SELECT prefer_dm, reminders, updated_at FROM support_preferences WHERE user_id = ?", userID).Scan(&preferDM, &reminders, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, nil
	}
	if err != nil {
		return nil, err
	}
	p.PreferDM = preferDM == 1
	p.Reminders = reminders == 1
	return p, nil
}

func (s *sqliteStore) SetSupportPreference(ctx context.Context, p *SupportPreference) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO support_preferences (user_id, prefer_dm, reminders, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET prefer_dm = excluded.prefer_dm, reminders = excluded.reminders, updated_at = CURRENT_TIMESTAMP
	`, p.UserID, boolToInt(p.PreferDM), boolToInt(p.Reminders))
	return err
}

func (s *sqliteStore) CountSupportPreferences(ctx context.Context) (int, int, error) {
	var total, preferDM int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(prefer_dm), 0) FROM support_preferences").Scan(&total, &preferDM)
	return total, preferDM, err
}

// --- Bot config ---

func (s *sqliteStore) GetConfigValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM bot_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *sqliteStore) SetConfigValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// GetBotConfig and SetBotConfig are kept as package helpers for the loader.
func GetBotConfig(ctx context.Context, key string) (string, error) {
	if DataStore == nil {
		return "", nil
	}
	return DataStore.GetConfigValue(ctx, key)
}

func SetBotConfig(ctx context.Context, key, value string) error {
	if DataStore == nil {
		return nil
	}
	return DataStore.SetConfigValue(ctx, key, value)
}

// --- Maintenance ---

// BackupTo writes a consistent snapshot of the database to path.
func (s *sqliteStore) BackupTo(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO %q", path))
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
