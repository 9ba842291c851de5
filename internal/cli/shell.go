package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jrsteele09/sadsa-portal/session"
	"github.com/spf13/cobra"
)

const shellPrompt = "sadsa> "

// NewShellCmd creates the shell command. The shell process plays the part of one browser
// tab: a login without --remember lasts until the shell exits.
func NewShellCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session; non remembered logins end with it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.runShell(cmd)
		},
	}
}

func (env *Env) runShell(cmd *cobra.Command) error {
	prevNotify := env.Notify
	env.Notify = func(e session.Event) {
		scope := e.Scope.String()
		if scope == "" {
			scope = "-"
		}
		fmt.Fprintf(env.Err, "· %s [%s]\n", e.Kind, scope)
	}
	defer func() { env.Notify = prevNotify }()

	// Global flags given to the shell apply to every line
	globals := []string{"--api=" + env.apiURL, "--log-level=" + env.logLevel}
	if env.journalPath != "" {
		globals = append(globals, "--journal="+env.journalPath)
	}

	fmt.Fprintf(env.Out, "sadsa %s, %s. Tapez help ou exit.\n", version, env.apiURL)
	for {
		fmt.Fprint(env.Out, shellPrompt)
		line, err := env.readLine()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(env.Out)
			break
		}
		if err != nil {
			return err
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "exit", "quit":
			return env.closeTab(cmd)
		case "shell":
			fmt.Fprintln(env.Err, "déjà dans le shell")
			continue
		}

		sub := NewRootCmd(env)
		sub.SetArgs(append(globals, args...))
		if err := sub.ExecuteContext(cmd.Context()); err != nil {
			fmt.Fprintf(env.Err, "Erreur: %v\n", err)
		}
	}
	return env.closeTab(cmd)
}

// closeTab drops the process scope the way a closed tab drops its sessionStorage
func (env *Env) closeTab(cmd *cobra.Command) error {
	if err := env.Ephemeral.Clear(cmd.Context(), processHolder); err != nil {
		return fmt.Errorf("failed to clear process session: %w", err)
	}
	return nil
}
