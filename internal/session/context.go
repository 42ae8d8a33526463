package session

import "context"

type ctxKey string

const sessionKey ctxKey = "docbook.session"

// WithSession stores the session handle in context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext extracts the session handle if present.
func FromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil
}
