// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets values; services read them without importing net/http.
// Tests inject values (most importantly a fixed clock via WithTime) so
// time-sensitive credential logic stays deterministic.
package requestcontext

import (
	"context"
	"time"

	id "fides/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	actorIDKey     struct{}
	nodeIDKey      struct{}
	requestIDKey   struct{}
	clientIPKey    struct{}
	platformKey    struct{}
	requestTimeKey struct{}
)

// ActorID retrieves the authenticated actor (caller) identifier from the
// context. Empty when the request is unauthenticated.
func ActorID(ctx context.Context) string {
	if actor, ok := ctx.Value(actorIDKey{}).(string); ok {
		return actor
	}
	return ""
}

// WithActorID injects the authenticated actor identifier.
func WithActorID(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorIDKey{}, actor)
}

// NodeID retrieves the federation node a request arrived from, if any.
func NodeID(ctx context.Context) id.NodeID {
	if node, ok := ctx.Value(nodeIDKey{}).(id.NodeID); ok {
		return node
	}
	return id.NodeID{}
}

// WithNodeID injects the originating federation node.
func WithNodeID(ctx context.Context, node id.NodeID) context.Context {
	return context.WithValue(ctx, nodeIDKey{}, node)
}

// RequestID retrieves the correlation identifier set by middleware.
func RequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok {
		return rid
	}
	return ""
}

// WithRequestID injects a correlation identifier.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, rid)
}

// ClientIP retrieves the remote address recorded by middleware.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// WithClientIP injects the remote address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientPlatform retrieves the parsed client platform (browser/OS or SDK)
// recorded by the device middleware. Used only for audit enrichment.
func ClientPlatform(ctx context.Context) string {
	if p, ok := ctx.Value(platformKey{}).(string); ok {
		return p
	}
	return ""
}

// WithClientPlatform injects the parsed client platform.
func WithClientPlatform(ctx context.Context, platform string) context.Context {
	return context.WithValue(ctx, platformKey{}, platform)
}

// Now returns the request time if one was injected, falling back to the wall
// clock. Services must use this instead of time.Now so tests can pin time.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the clock for the remainder of the request.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
