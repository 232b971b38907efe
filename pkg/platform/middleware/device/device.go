// Package device classifies the requesting client from its User-Agent so
// audit entries record what kind of agent performed an action.
package device

import (
	"net/http"

	"github.com/mssola/useragent"

	"fides/pkg/requestcontext"
)

// Classify parses the User-Agent header and stores a coarse platform label
// in the context. Unknown or missing agents are labelled "unknown".
func Classify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientPlatform(r.Context(), Platform(r.Header.Get("User-Agent")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Platform maps a User-Agent string to a coarse platform label.
func Platform(rawAgent string) string {
	if rawAgent == "" {
		return "unknown"
	}
	ua := useragent.New(rawAgent)
	if ua.Bot() {
		return "bot"
	}
	if ua.Mobile() {
		return "mobile"
	}
	if name, _ := ua.Browser(); name != "" {
		return "browser"
	}
	return "service"
}
