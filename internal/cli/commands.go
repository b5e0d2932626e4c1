package cli

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/packfinderz-storefront/internal/agent"
	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	"github.com/angelmondragon/packfinderz-storefront/internal/notifications"
	"github.com/angelmondragon/packfinderz-storefront/internal/session"
	"github.com/angelmondragon/packfinderz-storefront/pkg/auth"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

type loginOptions struct {
	UserID string
	Name   string
	Email  string
	Role   string
}

// NewLoginCommand installs a session from an OAuth token. Without --user-id
// the profile is decoded from the token claims.
func NewLoginCommand(rootOpts *RootOptions, factory Factory) *cobra.Command {
	opts := &loginOptions{}
	cmd := &cobra.Command{
		Use:   "login <token>",
		Short: "Start a session and load the remote cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFreshAgent(cmd, rootOpts, factory, func(ctx context.Context, a *agent.Agent, recorder *notifications.Recorder, out *OutputFormatter) error {
				sess, err := opts.session(a, args[0])
				if err != nil {
					wrapped := WrapExitError(ExitCommandError, "invalid token", err)
					_ = out.Error(pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return wrapped
				}

				persisted, err := a.Sessions.Login(ctx, sess)
				if err != nil {
					_ = out.Error(err)
					return exitFor("login failed", err)
				}
				if !persisted {
					out.VerboseLog("session could not be persisted; it lasts for this invocation only")
				}
				a.Cart.Wait()
				return out.Success(Result{View: a.Cart.Snapshot(), Notices: recorder.Notices()})
			})
		},
	}
	cmd.Flags().StringVar(&opts.UserID, "user-id", "", "user id (skips token decoding)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")
	cmd.Flags().StringVar(&opts.Role, "role", string(session.RoleCustomer), "customer or admin")
	return cmd
}

func (o *loginOptions) session(a *agent.Agent, token string) (session.Session, error) {
	token = strings.TrimSpace(token)
	if o.UserID == "" {
		claims, err := auth.ParseSessionToken(a.Config().JWT, token, time.Now())
		if err != nil {
			return session.Session{}, err
		}
		return session.FromClaims(token, claims), nil
	}
	role := session.Role(strings.ToLower(strings.TrimSpace(o.Role)))
	if role == "" {
		role = session.RoleCustomer
	}
	return session.Session{
		Token: token,
		User:  session.User{ID: o.UserID, Name: o.Name, Email: o.Email, Role: role},
	}, nil
}

func NewLogoutCommand(rootOpts *RootOptions, factory Factory) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session; the local cart is cleared without calling the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withFreshAgent(cmd, rootOpts, factory, func(ctx context.Context, a *agent.Agent, _ *notifications.Recorder, out *OutputFormatter) error {
				a.Sessions.Logout(ctx)
				return out.Success("logged out")
			})
		},
	}
}

func NewWhoamiCommand(rootOpts *RootOptions, factory Factory) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the active session user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, rootOpts, factory, func(ctx context.Context, a *agent.Agent, _ *notifications.Recorder, out *OutputFormatter) error {
				current := a.Sessions.Current()
				if !current.Valid() {
					err := pkgerrors.New(pkgerrors.CodeUnauthorized, "no active session")
					_ = out.Error(err)
					return exitFor("whoami", err)
				}
				if out.Format == "json" {
					return out.Success(current.User)
				}
				return out.Success(current.User.ID + " (" + string(current.User.Role) + ") " + current.User.Email)
			})
		},
	}
}

// NewShowCommand prints the cart as loaded at startup.
func NewShowCommand(rootOpts *RootOptions, factory Factory) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the reconciled cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, rootOpts, factory, func(ctx context.Context, a *agent.Agent, recorder *notifications.Recorder, out *OutputFormatter) error {
				return out.Success(Result{View: a.Cart.Snapshot(), Notices: recorder.Notices()})
			})
		},
	}
}

func NewRefreshCommand(rootOpts *RootOptions, factory Factory) *cobra.Command {
	return cartCommand(rootOpts, factory, &cobra.Command{
		Use:   "refresh",
		Short: "Re-fetch the remote cart",
		Args:  cobra.NoArgs,
	}, func(ctx context.Context, engine *cart.Engine, args []string) (cart.ViewState, error) {
		return engine.Refresh(ctx)
	})
}

func NewAddCommand(rootOpts *RootOptions, factory Factory) *cobra.Command {
	var quantity int
	cmd := cartCommand(rootOpts, factory, &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, engine *cart.Engine, args []string) (cart.ViewState, error) {
		if quantity < 1 {
			return engine.Snapshot(), pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
		return engine.AddToCart(ctx, args[0], quantity)
	})
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "quantity to add")
	return cmd
}

func NewRemoveCommand(rootOpts *RootOptions, factory Factory) *cobra.Command {
	return cartCommand(rootOpts, factory, &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, engine *cart.Engine, args []string) (cart.ViewState, error) {
		return engine.RemoveFromCart(ctx, args[0])
	})
}

func NewQuantityCommand(rootOpts *RootOptions, factory Factory) *cobra.Command {
	return cartCommand(rootOpts, factory, &cobra.Command{
		Use:     "qty <product-id> <quantity>",
		Aliases: []string{"quantity"},
		Short:   "Set the quantity of a cart line",
		Args:    cobra.ExactArgs(2),
	}, func(ctx context.Context, engine *cart.Engine, args []string) (cart.ViewState, error) {
		quantity, err := strconv.Atoi(args[1])
		if err != nil || quantity < 1 {
			return engine.Snapshot(), pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a positive integer")
		}
		return engine.UpdateQuantity(ctx, args[0], quantity)
	})
}

func NewSizeCommand(rootOpts *RootOptions, factory Factory) *cobra.Command {
	return cartCommand(rootOpts, factory, &cobra.Command{
		Use:   "size <product-id> <size>",
		Short: "Change the size of a cart line",
		Args:  cobra.ExactArgs(2),
	}, func(ctx context.Context, engine *cart.Engine, args []string) (cart.ViewState, error) {
		size := strings.TrimSpace(args[1])
		if size == "" {
			return engine.Snapshot(), pkgerrors.New(pkgerrors.CodeValidation, "size is required")
		}
		return engine.UpdateSize(ctx, args[0], size)
	})
}

func NewClearCommand(rootOpts *RootOptions, factory Factory) *cobra.Command {
	return cartCommand(rootOpts, factory, &cobra.Command{
		Use:   "clear",
		Short: "Empty the remote cart",
		Args:  cobra.NoArgs,
	}, func(ctx context.Context, engine *cart.Engine, args []string) (cart.ViewState, error) {
		return engine.ClearCart(ctx)
	})
}

// cartCommand attaches a RunE that runs op against the engine and prints the
// reconciled view with the notices it produced.
func cartCommand(rootOpts *RootOptions, factory Factory, cmd *cobra.Command, op func(ctx context.Context, engine *cart.Engine, args []string) (cart.ViewState, error)) *cobra.Command {
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withAgent(cmd, rootOpts, factory, func(ctx context.Context, a *agent.Agent, recorder *notifications.Recorder, out *OutputFormatter) error {
			view, err := op(ctx, a.Cart, args)
			if err != nil {
				_ = out.Error(err)
				return exitFor(cmd.Name()+" failed", err)
			}
			return out.Success(Result{View: view, Notices: recorder.Notices()})
		})
	}
	return cmd
}
