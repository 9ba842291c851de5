package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jrsteele09/sadsa-portal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewLoginCmd creates the login command
func NewLoginCmd(env *Env) *cobra.Command {
	var email, password string
	var remember bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session in the keyring (--remember) or for this process only",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.runLogin(cmd.Context(), email, password, remember)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set SADSA_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set SADSA_PASSWORD, read from stdin if not provided)")
	cmd.Flags().BoolVar(&remember, "remember", false, "Keep the session after this process exits")

	return cmd
}

func (env *Env) runLogin(ctx context.Context, email, password string, remember bool) error {
	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("SADSA_EMAIL")
	}
	if password == "" {
		password = os.Getenv("SADSA_PASSWORD")
	}
	if email == "" {
		return fmt.Errorf("email is required (use --email flag or SADSA_EMAIL env var)")
	}
	if password == "" {
		line, err := env.readPassword("Mot de passe: ")
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = line
	}

	return env.withStore(ctx, func(ctx context.Context, store *session.Store) error {
		sess, err := store.Login(ctx, email, password, remember)
		if err != nil {
			return userError(err)
		}
		fmt.Fprintf(env.Out, "Connecté en tant que %s (%s)\n", sess.Claims.DisplayName(), sess.Claims.Role)
		fmt.Fprintf(env.Out, "Session %s, accueil %s\n", sess.Scope, sess.Claims.HomePath())
		return nil
	})
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session in both scopes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withStore(cmd.Context(), func(ctx context.Context, store *session.Store) error {
				if err := store.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(env.Out, "Déconnecté")
				return nil
			})
		},
	}
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withStore(cmd.Context(), func(ctx context.Context, store *session.Store) error {
				sess, ok := store.Current(ctx)
				if !ok {
					return userError(session.ErrNotAuthenticated)
				}
				c := sess.Claims
				fmt.Fprintf(env.Out, "Nom:     %s\n", c.DisplayName())
				fmt.Fprintf(env.Out, "Email:   %s\n", c.Email)
				fmt.Fprintf(env.Out, "Rôle:    %s\n", c.Role)
				if c.UserID != "" {
					fmt.Fprintf(env.Out, "Id:      %s\n", c.UserID)
				}
				fmt.Fprintf(env.Out, "Accueil: %s\n", c.HomePath())
				fmt.Fprintf(env.Out, "Session: %s\n", sess.Scope)
				return nil
			})
		},
	}
}

// NewStatusCmd creates the status command
func NewStatusCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Re-check the stored session, dropping it when it has expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withStore(cmd.Context(), func(ctx context.Context, store *session.Store) error {
				if !store.Refresh(ctx) {
					fmt.Fprintln(env.Out, "Non connecté")
					return nil
				}
				sess, ok := store.Current(ctx)
				if !ok {
					fmt.Fprintln(env.Out, "Non connecté")
					return nil
				}
				remaining := sess.Claims.Expiry().Sub(env.NowTime()).Truncate(time.Second)
				fmt.Fprintf(env.Out, "Connecté: %s (%s), expire dans %s\n", sess.Claims.Email, sess.Scope, remaining)
				return nil
			})
		},
	}
}

// NewPasswdCmd creates the passwd command
func NewPasswdCmd(env *Env) *cobra.Command {
	var oldPassword, newPassword string

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the password of the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if oldPassword == "" {
				if oldPassword, err = env.readPassword("Mot de passe actuel: "); err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
			}
			if newPassword == "" {
				if newPassword, err = env.readPassword("Nouveau mot de passe: "); err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
			}
			return env.withStore(cmd.Context(), func(ctx context.Context, store *session.Store) error {
				if err := store.ChangePassword(ctx, oldPassword, newPassword); err != nil {
					return userError(err)
				}
				fmt.Fprintln(env.Out, "Mot de passe modifié")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&oldPassword, "old", "", "Current password (prompted if not provided)")
	cmd.Flags().StringVar(&newPassword, "new", "", "New password (prompted if not provided)")

	return cmd
}

// userError keeps the cause for errors.Is while showing the user-facing message
func userError(err error) error {
	return &displayError{msg: session.UserMessage(err), err: err}
}

type displayError struct {
	msg string
	err error
}

func (e *displayError) Error() string { return e.msg }
func (e *displayError) Unwrap() error { return e.err }

// readPassword prompts for a secret. A terminal stdin is read with echo off;
// piped input falls back to readLine.
func (env *Env) readPassword(prompt string) (string, error) {
	fmt.Fprint(env.Out, prompt)
	if f, ok := env.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(env.Out)
		if err != nil {
			return "", err
		}
		return string(secret), nil
	}
	return env.readLine()
}

// readLine reads one line of input. All reads share one buffer so the shell and
// password prompts never steal each other's input.
func (env *Env) readLine() (string, error) {
	if env.reader == nil {
		env.reader = bufio.NewReader(env.In)
	}
	line, err := env.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
