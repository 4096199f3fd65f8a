// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values set by middleware or by the command listener and read
// by services when they log or audit.
//
//	requestID := requestcontext.RequestID(ctx)
//	ctx = requestcontext.WithCommandID(ctx, cmd.ID)
package requestcontext

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type (
	clientIPKey     struct{}
	userAgentKey    struct{}
	clientDeviceKey struct{}
	requestIDKey    struct{}
	requestTimeKey  struct{}
	commandIDKey    struct{}
	actorKey        struct{}
)

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the raw User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	return context.WithValue(ctx, userAgentKey{}, userAgent)
}

// ClientDevice retrieves the parsed client description ("Firefox 128 on Linux").
func ClientDevice(ctx context.Context) string {
	if d, ok := ctx.Value(clientDeviceKey{}).(string); ok {
		return d
	}
	return ""
}

func WithClientDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, clientDeviceKey{}, device)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// CommandID retrieves the ID of the command being handled, or uuid.Nil.
func CommandID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(commandIDKey{}).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func WithCommandID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, commandIDKey{}, id)
}

// Actor names who triggered the operation: "admin", "command", "startup".
func Actor(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok {
		return a
	}
	return ""
}

func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (startup, command listener, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
