package appctx

import "context"

// ContextKey is the shared type for request context keys. The ledger reads
// the correlation id through utils while middlewares write the caller, so the
// keys live in a package neither of them owns.
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyCallerId      = ContextKey("ledger.caller_id")
	ContextKeyCallerRole    = ContextKey("ledger.caller_role")
	ContextKeyCorrelationId = ContextKey("ledger.correlation_id")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

// WithCaller records the verified ledger caller of a request.
func WithCaller(ctx context.Context, identity, role string) context.Context {
	ctx = Set(ctx, ContextKeyCallerId, identity)
	return Set(ctx, ContextKeyCallerRole, role)
}

// Caller returns the identity and role stored by WithCaller. Both are empty
// for an anonymous request.
func Caller(ctx context.Context) (identity, role string) {
	identity, _ = GetString(ctx, ContextKeyCallerId)
	role, _ = GetString(ctx, ContextKeyCallerRole)
	return identity, role
}
