package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/myformhq/myform/sys"
)

// ===========================================================================
// Web panel server
// ===========================================================================

func init() {
	sys.RegisterDaemon(sys.LogPanel, startPanelServer)
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.SetHTMLTemplate(loadTemplates())

	// OAuth2 and public pages.
	router.GET("/auth/discord", handleAuthDiscord)
	router.GET("/auth/discord/callback", handleAuthCallback)
	router.GET("/logout", handleLogout)
	router.GET("/blacklisted", handleBlacklistedPage)
	router.GET("/terms", handleTermsPage)
	router.GET("/privacy", handlePrivacyPage)

	// Authenticated pages.
	pages := router.Group("/", requireSession(false))
	pages.GET("/", handleDashboard)
	pages.GET("/create/:guildId", handleCreatePage)
	pages.GET("/edit/:guildId/:formId", handleEditPage)
	pages.GET("/success", handleSuccessPage)
	pages.GET("/premium", handlePremiumPage)

	// JSON API.
	api := router.Group("/api", requireSession(true))
	api.GET("/form/:guildId", handleListForms)
	api.GET("/form/:guildId/:formId", handleGetForm)
	api.POST("/form/:guildId", handleUpsertForm)
	api.POST("/form/:guildId/:formId", handleUpsertForm)
	api.DELETE("/forms/:guildId/:formId", handleDeleteFormAPI)
	api.POST("/forms/:guildId/:formId/toggle", handleToggleForm)
	api.POST("/gift-code/redeem", rateLimit(rate.Every(10*time.Second), 5), handleRedeemGiftCode)

	// Webhooks authenticate themselves, no session involved.
	router.POST("/webhooks/topgg", rateLimit(rate.Every(time.Second), 10), handleTopGGWebhook)
	router.POST("/api/paypal/ipn", rateLimit(rate.Every(time.Second), 10), handlePayPalIPN)

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		sys.LogPanel("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

func startPanelServer(ctx context.Context) (bool, func(), func()) {
	cfg := sys.GlobalConfig
	if !cfg.PanelEnabled() {
		sys.LogPanel("panel disabled, missing OAuth2 or JWT configuration")
		return false, nil, nil
	}

	server := &http.Server{
		Addr:              cfg.PanelAddr,
		Handler:           newRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	janitorCtx, cancelJanitor := context.WithCancel(ctx)

	run := func() {
		sys.SafeGo(func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-janitorCtx.Done():
					return
				case <-ticker.C:
					if expired := sweepSessions(); expired > 0 {
						sys.LogPanel("expired %d panel session(s)", expired)
					}
					sweepLimiters()
				}
			}
		})

		sys.LogPanel("panel listening on %s", cfg.PanelAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sys.LogPanel("panel server error: %v", err)
		}
	}

	shutdown := func() {
		cancelJanitor()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			sys.LogPanel("panel shutdown: %v", err)
		}
	}

	return true, run, shutdown
}
