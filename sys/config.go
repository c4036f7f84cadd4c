package sys

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	MsgConfigMissingToken      = "DISCORD_TOKEN is not set"
	MsgConfigMissingOAuth      = "CLIENT_ID/CLIENT_SECRET are required for the web panel"
	MsgConfigMissingJWTSecret  = "JWT_SECRET is not set"
	MsgConfigInvalidGuildID    = "invalid GUILD_ID: must be a valid Snowflake"
	MsgConfigInvalidFormLimit  = "FREE_FORM_LIMIT must be a positive integer"
	MsgConfigMissingBaseURL    = "BASE_URL is required for the web panel"
)

// Environment keys.
const (
	EnvDiscordToken     = "DISCORD_TOKEN"
	EnvGuildID          = "GUILD_ID"
	EnvDatabasePath     = "DATABASE_PATH"
	EnvClientID         = "CLIENT_ID"
	EnvClientSecret     = "CLIENT_SECRET"
	EnvBaseURL          = "BASE_URL"
	EnvPanelAddr        = "PANEL_ADDR"
	EnvJWTSecret        = "JWT_SECRET"
	EnvOpenAIKey        = "OPENAI_API_KEY"
	EnvClartyAPIURL     = "CLARTY_API_URL"
	EnvClartyAPIKey     = "CLARTY_API_KEY"
	EnvTopGGAuth        = "TOPGG_AUTH"
	EnvPayPalBusiness   = "PAYPAL_BUSINESS"
	EnvAuditWebhookURL  = "AUDIT_WEBHOOK_URL"
	EnvBackupWebhookURL = "BACKUP_WEBHOOK_URL"
	EnvStaffIDs         = "STAFF_IDS"
	EnvStaffGuildID     = "STAFF_GUILD_ID"
	EnvFreeFormLimit    = "FREE_FORM_LIMIT"
	EnvFreeAIQuota      = "FREE_AI_QUOTA"
	EnvSilent           = "SILENT"
)

type Config struct {
	Token        string
	GuildID      string
	DatabasePath string
	Silent       bool

	// Web panel
	ClientID     string
	ClientSecret string
	BaseURL      string
	PanelAddr    string
	JWTSecret    string

	// External services
	OpenAIKey        string
	ClartyAPIURL     string
	ClartyAPIKey     string
	TopGGAuth        string
	PayPalBusiness   string
	AuditWebhookURL  string
	BackupWebhookURL string

	// Staff & limits
	StaffIDs      []string
	StaffGuildID  string
	FreeFormLimit int
	FreeAIQuota   int
}

var GlobalConfig *Config

// HttpClient is the shared client for all external API calls.
var HttpClient = &http.Client{
	Timeout: 10 * time.Second,
}

// LoadConfig initializes the configuration from environment variables.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	dbPath := os.Getenv(EnvDatabasePath)
	if dbPath == "" {
		dbPath = filepath.Join(".", GetProjectName()+".db")
	}

	silent, _ := strconv.ParseBool(os.Getenv(EnvSilent))

	var staffIDs []string
	if raw := os.Getenv(EnvStaffIDs); raw != "" {
		staffIDs = strings.Split(raw, ",")
		for i := range staffIDs {
			staffIDs[i] = strings.TrimSpace(staffIDs[i])
		}
	}

	panelAddr := os.Getenv(EnvPanelAddr)
	if panelAddr == "" {
		panelAddr = ":8080"
	}

	clartyURL := os.Getenv(EnvClartyAPIURL)
	if clartyURL == "" {
		clartyURL = "https://api.clarty.org/v1/blacklist"
	}

	cfg := &Config{
		Token:            os.Getenv(EnvDiscordToken),
		GuildID:          os.Getenv(EnvGuildID),
		DatabasePath:     dbPath,
		Silent:           silent,
		ClientID:         os.Getenv(EnvClientID),
		ClientSecret:     os.Getenv(EnvClientSecret),
		BaseURL:          strings.TrimSuffix(os.Getenv(EnvBaseURL), "/"),
		PanelAddr:        panelAddr,
		JWTSecret:        os.Getenv(EnvJWTSecret),
		OpenAIKey:        os.Getenv(EnvOpenAIKey),
		ClartyAPIURL:     clartyURL,
		ClartyAPIKey:     os.Getenv(EnvClartyAPIKey),
		TopGGAuth:        os.Getenv(EnvTopGGAuth),
		PayPalBusiness:   os.Getenv(EnvPayPalBusiness),
		AuditWebhookURL:  os.Getenv(EnvAuditWebhookURL),
		BackupWebhookURL: os.Getenv(EnvBackupWebhookURL),
		StaffIDs:         staffIDs,
		StaffGuildID:     os.Getenv(EnvStaffGuildID),
	}

	cfg.FreeFormLimit, _ = strconv.Atoi(os.Getenv(EnvFreeFormLimit))
	if cfg.FreeFormLimit == 0 {
		cfg.FreeFormLimit = 3
	}
	cfg.FreeAIQuota, _ = strconv.Atoi(os.Getenv(EnvFreeAIQuota))
	if cfg.FreeAIQuota == 0 {
		cfg.FreeAIQuota = 5
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Silent {
		SetSilentMode(true)
	}

	GlobalConfig = cfg
	return cfg, nil
}

// Validate ensures the configuration meets startup requirements. Missing
// credentials for optional integrations (OpenAI, Clarty, top.gg, PayPal)
// degrade the related features instead of failing here.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf(MsgConfigMissingToken)
	}
	if c.GuildID != "" && (len(c.GuildID) < 17 || len(c.GuildID) > 20) {
		return fmt.Errorf(MsgConfigInvalidGuildID)
	}
	if c.FreeFormLimit < 0 {
		return fmt.Errorf(MsgConfigInvalidFormLimit)
	}
	if c.ClientID != "" || c.ClientSecret != "" {
		if c.ClientID == "" || c.ClientSecret == "" {
			return fmt.Errorf(MsgConfigMissingOAuth)
		}
		if c.BaseURL == "" {
			return fmt.Errorf(MsgConfigMissingBaseURL)
		}
		if c.JWTSecret == "" {
			return fmt.Errorf(MsgConfigMissingJWTSecret)
		}
	}
	return nil
}

// PanelEnabled reports whether the web panel has enough configuration to run.
func (c *Config) PanelEnabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// VoteURL is the bot's top.gg voting page.
func VoteURL() string {
	if GlobalConfig == nil {
		return "https://top.gg"
	}
	return "https://top.gg/bot/" + GlobalConfig.ClientID + "/vote"
}

// IsStaff reports whether the given user ID is in the staff list.
func (c *Config) IsStaff(userID string) bool {
	for _, id := range c.StaffIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// GetProjectName derives the project name from the executable or go.mod.
func GetProjectName() string {
	exePath, err := os.Executable()
	projectName := "myform"
	if err == nil {
		projectName = filepath.Base(exePath)
		projectName = strings.TrimSuffix(projectName, ".exe")

		if projectName == "main" || strings.HasPrefix(projectName, "go_build_") {
			if modData, err := os.ReadFile("go.mod"); err == nil {
				lines := strings.Split(string(modData), "\n")
				if len(lines) > 0 && strings.HasPrefix(lines[0], "module ") {
					parts := strings.Split(lines[0], "/")
					projectName = strings.TrimSpace(parts[len(parts)-1])
				}
			}
		}
	}
	return projectName
}
