package testutil

import (
	"net/http"
	"time"

	"fides/pkg/requestcontext"
)

// WithActor adds an actor ID to the request context, simulating what the
// auth middleware does for authenticated requests.
func WithActor(req *http.Request, actorID string) *http.Request {
	return req.WithContext(requestcontext.WithActorID(req.Context(), actorID))
}

// WithRequestTime pins the request time, so handlers under test observe a
// deterministic clock.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
