// Command pomodorod runs a cycle timer server: it loads a TimerConfig,
// builds a server.Server bound to one or more transports, and runs it until
// interrupted. It replaces the teacher's apps/cli/main.go flag-based entry
// point with spf13/cobra, per SPEC_FULL.md §11.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/stumpy"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kubaliski/cycletimer/config"
	"github.com/kubaliski/cycletimer/notify"
	"github.com/kubaliski/cycletimer/notify/discord"
	"github.com/kubaliski/cycletimer/server"
	"github.com/kubaliski/cycletimer/timer"
	"github.com/kubaliski/cycletimer/transport"
	"github.com/kubaliski/cycletimer/transport/tcp"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath  string
		addr        string
		discordChan string
	)

	cmd := &cobra.Command{
		Use:   "pomodorod",
		Short: "Run a cycle timer server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, addr, discordChan)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a TimerConfig JSON file (defaults to the classic Pomodoro config)")
	cmd.Flags().StringVar(&addr, "addr", "", "override the first configured TCP binding address")
	cmd.Flags().StringVar(&discordChan, "discord-channel", "", "Discord channel ID to post lifecycle notifications to (requires DISCORD_BOT_TOKEN)")

	return cmd
}

func run(ctx context.Context, configPath, addrOverride, discordChannelID string) error {
	_ = godotenv.Load()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if addrOverride != "" && len(cfg.Bindings) > 0 {
		cfg.Bindings[0].Address = addrOverride
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := stumpy.L.New(stumpy.L.WithStumpy())

	builder := server.NewBuilder()
	for _, cy := range cfg.Cycles {
		builder.AddCycle(cy.Name, cy.DurationSeconds)
	}
	builder.SetLoop(cfg.ToTimerLoop())
	builder.SetTickInterval(cfg.TickInterval())
	builder.SetLogger(logger)
	builder.OnEvent(timer.EventBeginCycle, notify.NewLogHook(logger))
	builder.OnEvent(timer.EventEndCycle, notify.NewLogHook(logger))
	builder.OnEvent(timer.EventStarted, notify.NewLogHook(logger))
	builder.OnEvent(timer.EventStopped, notify.NewLogHook(logger))

	if discordChannelID != "" {
		token := os.Getenv("DISCORD_BOT_TOKEN")
		if token == "" {
			return fmt.Errorf("--discord-channel given but DISCORD_BOT_TOKEN is not set")
		}
		hook, err := discord.New(token, discordChannelID)
		if err != nil {
			return fmt.Errorf("discord hook: %w", err)
		}
		defer hook.Session.Close()
		builder.OnEvent(timer.EventBeginCycle, hook)
		builder.OnEvent(timer.EventEndCycle, hook)
	}

	for _, b := range cfg.Bindings {
		bind, err := bindFor(b)
		if err != nil {
			return err
		}
		builder.AddBinding(bind)
		logger.Info().Str("transport", b.Transport).Str("addr", bind.Addr()).Log("listening")
	}

	srv, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return srv.Run(ctx)
}

func loadConfig(path string) (*config.TimerConfig, error) {
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadFromFile(path)
}

func bindFor(b config.Binding) (transport.ServerBind, error) {
	switch b.Transport {
	case "tcp":
		return tcp.Listen(b.Address)
	default:
		return nil, fmt.Errorf("unknown transport %q", b.Transport)
	}
}
