package server

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/sadsa-portal/audit"
	"github.com/jrsteele09/sadsa-portal/navigation"
	"github.com/jrsteele09/sadsa-portal/session"
	"github.com/jrsteele09/sadsa-portal/storage"
	"github.com/jrsteele09/sadsa-portal/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyStore stores the request's bound session store
	ContextKeyStore ContextKey = "session_store"
	// ContextKeyDecision stores the guard decision for the page
	ContextKeyDecision ContextKey = "guard_decision"
)

const portalClient = "portal"

// SessionMiddleware binds a session.Store to the visitor's holder cookies and puts it on the
// request context. The device cookie outlives the browser and backs the persistent scope;
// the tab cookie is a browser-session cookie and backs the ephemeral scope.
func (s *Server) SessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		holders := storage.Holders{
			Persistent: s.holderCookie(w, r, DeviceCookieName, int(s.config.GetRememberMaxAge().Seconds())),
			Ephemeral:  s.holderCookie(w, r, TabCookieName, 0),
		}

		repo, err := storage.Bind(s.scopes, holders)
		if err != nil {
			s.logError(r.Method, r.URL.Path, err.Error())
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}

		store, err := session.NewStore(repo, s.auth,
			session.WithNowTime(s.nowTime),
			session.WithExpiryBuffer(s.config.GetExpiryBuffer()),
			session.WithLogger(s.logger),
		)
		if err != nil {
			s.logError(r.Method, r.URL.Path, err.Error())
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}

		if s.journal != nil {
			unsubscribe := s.journal.Attach(store, audit.Origin{
				Client:    portalClient,
				RemoteIP:  remoteIP(r),
				UserAgent: r.UserAgent(),
			})
			defer unsubscribe()
		}

		ctx := context.WithValue(r.Context(), ContextKeyStore, store)
		next(w, r.WithContext(ctx))
	}
}

// holderCookie returns the holder id carried by the named cookie, issuing a new one when absent
func (s *Server) holderCookie(w http.ResponseWriter, r *http.Request, name string, maxAge int) string {
	if c, err := r.Cookie(name); err == nil && c.Value != "" {
		return c.Value
	}
	holder := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    holder,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
	// Later reads in the same request see the new holder
	r.AddCookie(&http.Cookie{Name: name, Value: holder})
	return holder
}

// GuardMiddleware evaluates the navigation guard for GET pages and redirects when it says so
func (s *Server) GuardMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision := s.guard.Evaluate(r.Context(), navigation.TargetFromURL(r.URL), refererTarget(r))
		if !decision.Allowed {
			redirectSuccess(w, r, decision.Location())
			return
		}
		ctx := context.WithValue(r.Context(), ContextKeyDecision, decision)
		next(w, r.WithContext(ctx))
	}
}

// StoreFromContext returns the session store bound by SessionMiddleware
func StoreFromContext(ctx context.Context) (*session.Store, bool) {
	store, ok := ctx.Value(ContextKeyStore).(*session.Store)
	return store, ok && store != nil
}

// requestSessions lets the shared guard read whichever store is bound to the request
type requestSessions struct{}

var _ navigation.SessionReader = requestSessions{}

func (requestSessions) IsAuthenticated(ctx context.Context) bool {
	store, ok := StoreFromContext(ctx)
	return ok && store.IsAuthenticated(ctx)
}

func (requestSessions) CurrentUser(ctx context.Context) (*token.Claims, bool) {
	store, ok := StoreFromContext(ctx)
	if !ok {
		return nil, false
	}
	return store.CurrentUser(ctx)
}

func refererTarget(r *http.Request) navigation.Target {
	ref := r.Referer()
	if ref == "" {
		return navigation.Target{}
	}
	u, err := r.URL.Parse(ref)
	if err != nil || u.Host != r.Host {
		return navigation.Target{}
	}
	return navigation.TargetFromURL(u)
}

func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
