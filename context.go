package tanlink

import "context"

type contextKey int

const clientIPKey contextKey = iota

// WithClientIP attaches the caller's address to ctx so login throttling
// and IP-restricted links can see it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func clientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
