package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jrsteele09/sadsa-portal/audit"
	"github.com/jrsteele09/sadsa-portal/authapi"
	"github.com/jrsteele09/sadsa-portal/internal/config"
	"github.com/jrsteele09/sadsa-portal/internal/logger"
	"github.com/jrsteele09/sadsa-portal/navigation"
	"github.com/jrsteele09/sadsa-portal/session"
	"github.com/jrsteele09/sadsa-portal/storage"
	"github.com/spf13/cobra"
)

var version = "dev" // Will be set during build

const (
	apiURLVar      = "SADSA_API_URL"
	defaultAPIURL  = "http://localhost:8081/api"
	processHolder  = "process"
	cliClientLabel = "cli"
)

// Env is everything the commands share. One Env is one "tab": its ephemeral backend
// lives as long as the process.
type Env struct {
	Out io.Writer
	Err io.Writer
	In  io.Reader

	Persistent storage.Backend // defaults to the OS keyring
	Ephemeral  storage.Backend // defaults to process memory
	Routes     *navigation.RouteTable
	NowTime    func() time.Time

	// Notify, when set, sees every session event
	Notify func(session.Event)

	reader      *bufio.Reader
	apiURL      string
	journalPath string
	logLevel    string
}

// NewEnv returns an Env on the real terminal and keyring
func NewEnv() *Env {
	return &Env{
		Out:        os.Stdout,
		Err:        os.Stderr,
		In:         os.Stdin,
		Persistent: storage.NewKeyringBackend(storage.DefaultKeyringService),
		Ephemeral:  storage.NewMemoryBackend(),
	}
}

// NewRootCmd builds the sadsa command tree over env
func NewRootCmd(env *Env) *cobra.Command {
	if env.Routes == nil {
		env.Routes = navigation.DefaultRoutes()
	}
	if env.NowTime == nil {
		env.NowTime = time.Now
	}

	rootCmd := &cobra.Command{
		Use:   "sadsa",
		Short: "SADSA portal sessions from the terminal",
		Long: `sadsa logs in against the SADSA authentication API and keeps the session
the way the portal does: "remembered" sessions go to the OS keyring, the others
live only as long as this process (or the sadsa shell).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.InitTo(env.Err, env.logLevel, "console")
		},
	}
	rootCmd.SetOut(env.Out)
	rootCmd.SetErr(env.Err)
	rootCmd.SetIn(env.In)

	rootCmd.PersistentFlags().StringVar(&env.apiURL, "api", config.GetEnv(apiURLVar, defaultAPIURL), "Authentication API base URL (or set "+apiURLVar+")")
	rootCmd.PersistentFlags().StringVar(&env.journalPath, "journal", config.GetEnv("SADSA_JOURNAL", ""), "Record session events in this sqlite file")
	rootCmd.PersistentFlags().StringVar(&env.logLevel, "log-level", "warn", "Log level")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sadsa version %s\n", version)
		},
	})
	rootCmd.AddCommand(NewLoginCmd(env))
	rootCmd.AddCommand(NewLogoutCmd(env))
	rootCmd.AddCommand(NewWhoamiCmd(env))
	rootCmd.AddCommand(NewStatusCmd(env))
	rootCmd.AddCommand(NewPasswdCmd(env))
	rootCmd.AddCommand(NewOpenCmd(env))
	rootCmd.AddCommand(NewShellCmd(env))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	env := NewEnv()
	if err := NewRootCmd(env).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// openStore binds a session store to the keyring entry for the API URL and this process.
// The returned func releases the journal, if any.
func (env *Env) openStore() (*session.Store, func(), error) {
	auth, err := authapi.New(env.apiURL)
	if err != nil {
		return nil, nil, err
	}

	repo, err := storage.Bind(
		storage.Scopes{Persistent: env.Persistent, Ephemeral: env.Ephemeral},
		storage.Holders{Persistent: auth.BaseURL(), Ephemeral: processHolder},
	)
	if err != nil {
		return nil, nil, err
	}

	store, err := session.NewStore(repo, auth,
		session.WithNowTime(env.NowTime),
		session.WithLogger(logger.Logger),
	)
	if err != nil {
		return nil, nil, err
	}

	var releases []func()
	if env.Notify != nil {
		releases = append(releases, store.Subscribe(env.Notify))
	}
	if env.journalPath != "" {
		journal, err := audit.Open(env.journalPath, logger.Logger)
		if err != nil {
			return nil, nil, err
		}
		host, _ := os.Hostname()
		releases = append(releases,
			journal.Attach(store, audit.Origin{Client: cliClientLabel, RemoteIP: host, UserAgent: "sadsa/" + version}),
			func() { _ = journal.Close() },
		)
	}

	release := func() {
		for _, fn := range releases {
			fn()
		}
	}
	return store, release, nil
}

// withStore runs fn against a freshly bound store
func (env *Env) withStore(ctx context.Context, fn func(ctx context.Context, store *session.Store) error) error {
	store, release, err := env.openStore()
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, store)
}
