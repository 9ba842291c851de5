package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/sadsa-portal/navigation"
)

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects. keep carries query values
// that must survive the round trip (the pending redirect, the typed email).
func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg string, keep url.Values) {
	query := url.Values{}
	for k, v := range keep {
		if len(v) > 0 && v[0] != "" {
			query.Set(k, v[0])
		}
	}
	query.Set("error", errorMsg)
	fullPath := path + "?" + query.Encode()

	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", fullPath)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, fullPath, http.StatusSeeOther)
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// safeRedirect returns target when it is a local path the user may be sent back to after
// logging in, otherwise "". Absolute, protocol-relative and login URLs are refused.
func safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return ""
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	if u.Path == RouteLogin || u.Path == RouteRegister || strings.HasPrefix(u.Path, "/auth/") {
		return ""
	}
	return u.RequestURI()
}

// redirectQuery keeps the pending redirect across form round trips
func redirectQuery(redirect string) url.Values {
	if redirect = safeRedirect(redirect); redirect == "" {
		return nil
	}
	return url.Values{navigation.RedirectParam: {redirect}}
}

func setNoStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
