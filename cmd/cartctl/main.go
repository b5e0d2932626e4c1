package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/packfinderz-storefront/internal/agent"
	"github.com/angelmondragon/packfinderz-storefront/internal/cli"
	"github.com/angelmondragon/packfinderz-storefront/internal/notifications"
	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	"github.com/angelmondragon/packfinderz-storefront/pkg/env"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(loadAgent)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}

// loadAgent builds the agent from the environment. Logs go to stderr at warn
// unless STOREFRONT_LOG_LEVEL says otherwise, keeping stdout for results.
func loadAgent(ctx context.Context, notifier notifications.Notifier) (*agent.Agent, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logg := logger.New(logger.Options{
		ServiceName: "cartctl",
		Level:       logger.ParseLevel(env.Get(config.EnvLogLevel, "warn")),
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
	})
	return agent.New(ctx, agent.Params{Config: cfg, Logger: logg, Notifier: notifier})
}
