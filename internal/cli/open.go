package cli

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jrsteele09/sadsa-portal/navigation"
	"github.com/jrsteele09/sadsa-portal/session"
	"github.com/spf13/cobra"
)

// NewOpenCmd creates the open command
func NewOpenCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Show where the portal would send you for a path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			return env.withStore(cmd.Context(), func(ctx context.Context, store *session.Store) error {
				guard := navigation.NewGuard(env.Routes, store)
				decision := guard.Evaluate(ctx, to, navigation.Target{})
				meta := guard.Presentation(to)

				if !decision.Allowed {
					fmt.Fprintf(env.Out, "redirection %s (%s)\n", decision.Location(), decision.Reason)
					return nil
				}
				if !meta.Found {
					fmt.Fprintf(env.Out, "%s: %s\n", to.FullPath(), meta.Title)
					return nil
				}
				fmt.Fprintf(env.Out, "ok %s (%s)\n", to.FullPath(), meta.Title)
				return nil
			})
		},
	}
}

func parseTarget(raw string) (navigation.Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return navigation.Target{}, fmt.Errorf("invalid path %q: %w", raw, err)
	}
	if u.IsAbs() || u.Host != "" {
		return navigation.Target{}, fmt.Errorf("%q is not a portal path", raw)
	}
	if u.Path == "" || u.Path[0] != '/' {
		u.Path = "/" + u.Path
	}
	return navigation.TargetFromURL(u), nil
}
