package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	ierrors "github.com/jrsteele09/sadsa-portal/internal/errors"
	"github.com/jrsteele09/sadsa-portal/token"
	"github.com/jrsteele09/sadsa-portal/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultExpiryBuffer treats a token as expired this long before its exp claim
const DefaultExpiryBuffer = 30 * time.Second

// RegisterRequest is the account creation payload sent to the authentication collaborator
type RegisterRequest struct {
	FamilyName  string         `json:"nom" validate:"required,max=100"`
	GivenName   string         `json:"prenom" validate:"required,max=100"`
	Email       string         `json:"email" validate:"required,email"`
	CNI         string         `json:"cni" validate:"required,alphanum,max=20"`
	CNE         string         `json:"cne,omitempty" validate:"omitempty,alphanum,max=20"`
	DateOfBirth string         `json:"dateNaissance" validate:"required,datetime=2006-01-02"`
	Password    string         `json:"motDePasse" validate:"required,min=8"`
	Role        users.RoleType `json:"role,omitempty"`
}

// Authenticator is the remote authentication collaborator.
// Implementations return *AuthenticationError or *NetworkError.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	// Register may return an empty token when the account awaits activation
	Register(ctx context.Context, req RegisterRequest) (string, error)
	ChangePassword(ctx context.Context, bearer, oldPassword, newPassword string) error
}

// Store owns the session token for one holder: it validates it on every read,
// writes it to exactly one scope and tells subscribers about every change.
type Store struct {
	repo         Repo
	auth         Authenticator
	nowTime      func() time.Time
	expiryBuffer time.Duration
	logger       zerolog.Logger

	subsLock    sync.RWMutex
	subscribers []subscriber
	nextSubID   int
}

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// WithExpiryBuffer overrides the 30s safety margin applied to exp
func WithExpiryBuffer(buffer time.Duration) StoreOption {
	return func(s *Store) {
		if buffer >= 0 {
			s.expiryBuffer = buffer
		}
	}
}

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store over repo, authenticating through auth
func NewStore(repo Repo, auth Authenticator, options ...StoreOption) (*Store, error) {
	if repo == nil {
		return nil, errors.New("[NewStore] repo is required")
	}
	if auth == nil {
		return nil, errors.New("[NewStore] authenticator is required")
	}

	s := &Store{
		repo:         repo,
		auth:         auth,
		nowTime:      time.Now,
		expiryBuffer: DefaultExpiryBuffer,
		logger:       log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login authenticates against the collaborator and stores the token in the scope chosen by remember
func (s *Store) Login(ctx context.Context, email, password string, remember bool) (*Session, error) {
	if err := s.clearAll(ctx); err != nil {
		return nil, err
	}

	raw, err := s.auth.Login(ctx, email, password)
	if err != nil {
		s.purge(ctx)
		return nil, err
	}

	sess, err := s.store(ctx, raw, ScopeFor(remember))
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("email", sess.Claims.Email).Str("scope", sess.Scope.String()).Msg("session opened")
	s.emit(EventLogin, sess.Scope, sess.Claims)
	return sess, nil
}

// Register creates the account. When the collaborator answers with a token the new user is
// logged in for this tab only; otherwise a nil Session is returned and storage stays empty.
func (s *Store) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	if err := s.clearAll(ctx); err != nil {
		return nil, err
	}

	raw, err := s.auth.Register(ctx, req)
	if err != nil {
		s.purge(ctx)
		return nil, err
	}

	if raw == "" {
		s.logger.Info().Str("email", req.Email).Msg("account registered without session")
		s.emit(EventRegister, ScopeNone, nil)
		return nil, nil
	}

	sess, err := s.store(ctx, raw, ScopeEphemeral)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("email", sess.Claims.Email).Msg("account registered")
	s.emit(EventRegister, sess.Scope, sess.Claims)
	return sess, nil
}

// Logout clears both scopes. Logging out without a session is not an error.
func (s *Store) Logout(ctx context.Context) error {
	var claims *token.Claims
	if rec, scope := s.read(ctx); rec != nil {
		claims, _ = token.Decode(rec.Token)
		s.logger.Debug().Str("scope", scope.String()).Msg("closing session")
	}

	// Subscribers hear the logout even when a scope fails to clear
	err := s.clearAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to clear session on logout")
	}
	s.emit(EventLogout, ScopeNone, claims)
	return err
}

// Current returns the active session. An expired or undecodable token is purged.
func (s *Store) Current(ctx context.Context) (*Session, bool) {
	rec, scope := s.read(ctx)
	if rec == nil {
		return nil, false
	}

	claims, err := token.Decode(rec.Token)
	if err != nil {
		s.logger.Warn().Err(err).Str("scope", scope.String()).Msg("purging undecodable token")
		s.purge(ctx)
		return nil, false
	}
	if claims.Expired(s.nowTime(), s.expiryBuffer) {
		s.logger.Debug().Time("exp", claims.Expiry()).Msg("purging expired session")
		s.purge(ctx)
		return nil, false
	}
	return &Session{Token: rec.Token, Claims: claims, Scope: scope}, true
}

// IsAuthenticated is true iff a token is stored and not expired
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	_, ok := s.Current(ctx)
	return ok
}

// CurrentUser returns the identity claims of the active session
func (s *Store) CurrentUser(ctx context.Context) (*token.Claims, bool) {
	sess, ok := s.Current(ctx)
	if !ok {
		return nil, false
	}
	return sess.Claims, true
}

// Token returns the raw token of the active session, for bearer calls
func (s *Store) Token(ctx context.Context) (string, bool) {
	sess, ok := s.Current(ctx)
	if !ok {
		return "", false
	}
	return sess.Token, true
}

// IsExpired reports whether the stored token is expired at now+buffer.
// No token, an undecodable token and a token without exp all count as expired.
// Storage is left untouched.
func (s *Store) IsExpired(ctx context.Context) bool {
	rec, _ := s.read(ctx)
	if rec == nil {
		return true
	}
	claims, err := token.Decode(rec.Token)
	if err != nil {
		return true
	}
	return claims.Expired(s.nowTime(), s.expiryBuffer)
}

// Refresh re-evaluates the stored session, purging it when it is no longer valid
func (s *Store) Refresh(ctx context.Context) bool {
	sess, ok := s.Current(ctx)
	if !ok {
		s.purge(ctx)
		s.emit(EventRefresh, ScopeNone, nil)
		return false
	}
	s.emit(EventRefresh, sess.Scope, sess.Claims)
	return true
}

// ChangePassword asks the collaborator to change the password of the logged in user.
// The session itself is left as is.
func (s *Store) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	bearer, ok := s.Token(ctx)
	if !ok {
		return ErrNotAuthenticated
	}
	if err := users.ValidatePasswordStrength(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}
	if err := s.auth.ChangePassword(ctx, bearer, oldPassword, newPassword); err != nil {
		return err
	}
	s.logger.Info().Msg("password changed")
	return nil
}

func (s *Store) store(ctx context.Context, raw string, scope Scope) (*Session, error) {
	if raw == "" {
		s.purge(ctx)
		return nil, &AuthenticationError{Kind: ServerError, Message: MsgNoToken}
	}

	claims, err := token.Decode(raw)
	if err != nil {
		s.purge(ctx)
		return nil, &AuthenticationError{Kind: ServerError, Message: MsgInvalidToken, Err: err}
	}

	if err := s.repo.Save(ctx, scope, NewRecord(raw, claims)); err != nil {
		s.purge(ctx)
		return nil, ierrors.Wrapf(err, "saving session to %s scope", scope)
	}
	return &Session{Token: raw, Claims: claims, Scope: scope}, nil
}

// read returns the first non-empty record, persistent scope first
func (s *Store) read(ctx context.Context) (*Record, Scope) {
	for _, scope := range readOrder {
		rec, err := s.repo.Load(ctx, scope)
		if err != nil {
			if !errors.Is(err, ierrors.ErrScopeEmpty) {
				s.logger.Error().Err(err).Str("scope", scope.String()).Msg("failed to read session")
			}
			continue
		}
		if rec != nil && rec.Token != "" {
			return rec, scope
		}
	}
	return nil, ScopeNone
}

func (s *Store) clearAll(ctx context.Context) error {
	var errs []error
	for _, scope := range readOrder {
		if err := s.repo.Clear(ctx, scope); err != nil {
			errs = append(errs, ierrors.Wrapf(err, "clearing %s scope", scope))
		}
	}
	return errors.Join(errs...)
}

// purge is clearAll on paths that have no way to report a failure
func (s *Store) purge(ctx context.Context) {
	if err := s.clearAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to purge session")
	}
}
