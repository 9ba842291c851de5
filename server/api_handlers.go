package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/sadsa-portal/session"
)

// SessionState is the body of GET /api/session
type SessionState struct {
	Authenticated bool                `json:"authenticated"`
	User          *session.StoredUser `json:"user"`
	Scope         session.Scope       `json:"scope"`
}

func sessionState(sess *session.Session) SessionState {
	if sess == nil {
		return SessionState{}
	}
	rec := session.NewRecord(sess.Token, sess.Claims)
	return SessionState{Authenticated: true, User: &rec.User, Scope: sess.Scope}
}

// SessionStateHandler reports the caller's session (GET /api/session)
func (s *Server) SessionStateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := StoreFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msgSessionUnavailable})
			return
		}
		sess, _ := store.Current(r.Context())
		writeJSON(w, http.StatusOK, sessionState(sess))
	}
}

// SessionRefreshHandler re-validates the caller's session, purging it when stale (POST /api/session/refresh)
func (s *Server) SessionRefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := StoreFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msgSessionUnavailable})
			return
		}
		if !store.Refresh(r.Context()) {
			writeJSON(w, http.StatusUnauthorized, sessionState(nil))
			return
		}
		sess, _ := store.Current(r.Context())
		writeJSON(w, http.StatusOK, sessionState(sess))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	setNoStore(w)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
