package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/packfinderz-storefront/internal/agent"
	"github.com/angelmondragon/packfinderz-storefront/internal/notifications"
)

// Factory builds an agent that reports cart notices to notifier. cmd/cartctl
// loads it from the environment; tests point it at a fake backend.
type Factory func(ctx context.Context, notifier notifications.Notifier) (*agent.Agent, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the cartctl root command.
func NewRootCommand(factory Factory) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cartctl",
		Short: "cartctl - storefront cart agent",
		Long:  "Drive the storefront session and cart from a terminal. Every change is reconciled against the backend cart.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return WrapExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewLoginCommand(opts, factory))
	cmd.AddCommand(NewLogoutCommand(opts, factory))
	cmd.AddCommand(NewWhoamiCommand(opts, factory))
	cmd.AddCommand(NewShowCommand(opts, factory))
	cmd.AddCommand(NewRefreshCommand(opts, factory))
	cmd.AddCommand(NewAddCommand(opts, factory))
	cmd.AddCommand(NewRemoveCommand(opts, factory))
	cmd.AddCommand(NewQuantityCommand(opts, factory))
	cmd.AddCommand(NewSizeCommand(opts, factory))
	cmd.AddCommand(NewClearCommand(opts, factory))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func formatterFor(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

type agentFunc func(ctx context.Context, a *agent.Agent, recorder *notifications.Recorder, out *OutputFormatter) error

// withAgent builds an agent, restores the persisted session and runs fn.
// The agent is closed before returning.
func withAgent(cmd *cobra.Command, opts *RootOptions, factory Factory, fn agentFunc) error {
	return runAgent(cmd, opts, factory, true, fn)
}

// withFreshAgent runs fn without restoring the persisted session, so no cart
// load is made. login and logout replace or clear the stored session anyway.
func withFreshAgent(cmd *cobra.Command, opts *RootOptions, factory Factory, fn agentFunc) error {
	return runAgent(cmd, opts, factory, false, fn)
}

func runAgent(cmd *cobra.Command, opts *RootOptions, factory Factory, restore bool, fn agentFunc) (err error) {
	out := formatterFor(opts, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	recorder := &notifications.Recorder{}
	a, err := factory(ctx, recorder)
	if err != nil {
		wrapped := WrapExitError(ExitCommandError, "failed to start agent", err)
		_ = out.Error(wrapped)
		return wrapped
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = WrapExitError(ExitFailure, "failed to close agent", closeErr)
		}
	}()

	if restore && a.Start(ctx) {
		out.VerboseLog("restored session for %s", a.Sessions.Current().User.ID)
	}
	return fn(ctx, a, recorder, out)
}
