package folioAuth

import "context"

// requestMeta is the caller information the engine records for rate
// limiting and audit events. It is stored by value so each With* call
// leaves the parent context untouched.
type requestMeta struct {
	clientIP  string
	userAgent string
	actorID   string
}

type requestMetaKey struct{}

func metaFrom(ctx context.Context) requestMeta {
	if ctx == nil {
		return requestMeta{}
	}
	m, _ := ctx.Value(requestMetaKey{}).(requestMeta)
	return m
}

func withMeta(ctx context.Context, update func(*requestMeta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m := metaFrom(ctx)
	update(&m)
	return context.WithValue(ctx, requestMetaKey{}, m)
}

// WithClientIP attaches the caller's IP address to ctx. The Engine keys
// per-IP rate limits on it and copies it into audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return withMeta(ctx, func(m *requestMeta) { m.clientIP = ip })
}

// WithUserAgent attaches the HTTP User-Agent string for audit events.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return withMeta(ctx, func(m *requestMeta) { m.userAgent = userAgent })
}

// WithActorID records the account performing an operation, for example the
// admin applying a ban.
func WithActorID(ctx context.Context, accountID string) context.Context {
	return withMeta(ctx, func(m *requestMeta) { m.actorID = accountID })
}

func clientIPFromContext(ctx context.Context) string  { return metaFrom(ctx).clientIP }
func userAgentFromContext(ctx context.Context) string { return metaFrom(ctx).userAgent }
func actorIDFromContext(ctx context.Context) string   { return metaFrom(ctx).actorID }
