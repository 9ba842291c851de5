package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/sadsa-portal/audit"
	"github.com/jrsteele09/sadsa-portal/authapi"
	"github.com/jrsteele09/sadsa-portal/authapi/authstub"
	"github.com/jrsteele09/sadsa-portal/internal/config"
	"github.com/jrsteele09/sadsa-portal/internal/logger"
	"github.com/jrsteele09/sadsa-portal/server"
	"github.com/jrsteele09/sadsa-portal/storage"
	"github.com/jrsteele09/sadsa-portal/token"
	"github.com/jrsteele09/sadsa-portal/users"
	fakeuserrepo "github.com/jrsteele09/sadsa-portal/users/repofake"
)

// stubMount is where the in-process authentication stub is served in DEV
const stubMount = "/stub/api"

const demoPassword = "Sadsa2025"

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logger.Init(c.GetLogLevel(), c.GetLogFormat())
	displayAppname(c.GetAppName())

	ctx := context.Background()

	persistent, closePersistent, err := persistentBackend(ctx, c)
	if err != nil {
		return err
	}
	defer closePersistent()

	ephemeral := storage.NewMemoryBackend()
	sweeper, err := storage.NewSweeper(ephemeral, c.GetSweepSchedule(), c.GetTabIdleTimeout(), logger.Logger)
	if err != nil {
		return fmt.Errorf("sweeper: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	journal, err := audit.Open(c.GetAuditDBPath(), logger.Logger)
	if err != nil {
		return err
	}
	defer journal.Close()

	// Without a backend URL in DEV the portal talks to its own stub
	apiURL := c.GetAuthAPIURL()
	var stub *authstub.Handler
	if apiURL == "" {
		stub, err = demoStub(c)
		if err != nil {
			return err
		}
		apiURL = "http://localhost" + c.GetPort() + stubMount
		logger.Logger.Warn().Str("url", apiURL).Msg("using the in-process authentication stub")
	}

	auth, err := authapi.New(apiURL, authapi.WithTimeout(c.GetAuthTimeout()))
	if err != nil {
		return fmt.Errorf("auth client: %w", err)
	}

	portal, err := server.New(c, server.Dependencies{
		Auth:    auth,
		Scopes:  storage.Scopes{Persistent: persistent, Ephemeral: ephemeral},
		Journal: journal,
		Logger:  &logger.Logger,
	})
	if err != nil {
		return err
	}
	if stub != nil {
		portal.Mount(stubMount+"/", http.StripPrefix(stubMount, stub))
	}

	srv := &http.Server{Addr: c.GetPort(), Handler: portal, ReadHeaderTimeout: 10 * time.Second}
	go listenAndServe(srv)
	waitForStopSignal()
	returnError = shutdown(srv)
	return returnError
}

// persistentBackend is Redis when REDIS_URL is set, otherwise process memory
func persistentBackend(ctx context.Context, c config.Config) (storage.Backend, func(), error) {
	redisURL := c.GetRedisURL()
	if redisURL == "" {
		logger.Logger.Warn().Msg("REDIS_URL not set, remembered sessions will not survive a restart")
		return storage.NewMemoryBackend(), func() {}, nil
	}

	client, err := storage.NewRedisClient(ctx, redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	logger.Logger.Info().Str("addr", client.Options().Addr).Msg("persistent sessions in redis")
	return storage.NewRedisBackend(client), func() { _ = client.Close() }, nil
}

// demoStub builds the authentication stub with one active account per role
func demoStub(c config.Config) (*authstub.Handler, error) {
	stub := authstub.New(fakeuserrepo.NewFakeUserRepo(),
		token.NewCreator(token.NewHMACSigner(c.GetStubSecret()), 0),
		authstub.WithLogger(logger.Logger),
	)

	for _, role := range users.Roles() {
		email := strings.ReplaceAll(strings.ToLower(string(role)), "_", ".") + "@sadsa.local"
		if _, err := stub.Seed(users.User{
			Email:     email,
			FirstName: "Demo",
			LastName:  string(role),
			Role:      role,
			Active:    true,
		}, demoPassword); err != nil {
			return nil, err
		}
		logger.Logger.Info().Str("email", email).Str("home", users.HomePath(role)).Msg("demo account")
	}
	logger.Logger.Info().Str("password", demoPassword).Dur("token_expiry", token.DefaultExpiry).Msg("demo accounts share one password")
	return stub, nil
}

func listenAndServe(server *http.Server) error {
	logger.Logger.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Logger.Err(err).Msg("server.ListenAndServe")
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
