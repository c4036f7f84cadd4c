package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/myformhq/myform/home"
	_ "github.com/myformhq/myform/proc"
	"github.com/myformhq/myform/sys"
	_ "github.com/myformhq/myform/web"
)

func main() {
	silent := flag.Bool("silent", false, "Disable all log output")
	flag.Parse()

	sys.InitLogger(*silent, true)

	// 1. Check for and kill an old instance
	if pidData, err := os.ReadFile(".bot.pid"); err == nil {
		if oldPid, err := strconv.Atoi(string(pidData)); err == nil && oldPid != os.Getpid() {
			if process, err := os.FindProcess(oldPid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					sys.LogInfo("Killing running instance... (PID: %d)", oldPid)
					if err := process.Signal(syscall.SIGTERM); err == nil {
						for i := 0; i < 50; i++ {
							if err := process.Signal(syscall.Signal(0)); err != nil {
								break
							}
							time.Sleep(100 * time.Millisecond)
						}
						sys.LogInfo("Old instance terminated.")
					} else {
						sys.LogWarn("Failed to kill old instance: %v", err)
					}
				}
			}
		}
	}

	// 2. Write PID file
	if err := os.WriteFile(".bot.pid", []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		sys.LogWarn("Failed to write PID file: %v", err)
	}
	defer os.Remove(".bot.pid")

	// 3. Run until a shutdown signal arrives
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	if err := run(ctx, *silent); err != nil {
		sys.LogFatal("%v", err)
	}
}

func run(ctx context.Context, silent bool) error {
	sys.SetAppContext(ctx)

	cfg, err := sys.LoadConfig()
	if err != nil {
		return fmt.Errorf("Failed to load config: %w", err)
	}

	if err := sys.InitDatabase(ctx, cfg.DatabasePath); err != nil {
		return fmt.Errorf("Failed to initialize database: %w", err)
	}
	defer sys.CloseDatabase()

	client, err := sys.CreateClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("Failed to create Discord client: %w", err)
	}
	defer client.Close(context.Background())

	// Command registration runs in the background; the gateway does not
	// need to wait for it.
	sys.SafeGo(func() {
		if err := sys.RegisterCommands(client, cfg.GuildID); err != nil {
			sys.LogError("Background command registration failed: %v", err)
		}
	})

	if err := client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("Failed to open gateway: %w", err)
	}

	sys.LogInfo("%s is online! (PID: %d)", sys.GetProjectName(), os.Getpid())
	<-ctx.Done()
	if !silent {
		fmt.Println()
	}
	sys.LogInfo("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sys.ShutdownDaemons(shutdownCtx)

	return nil
}
