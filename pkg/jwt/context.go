package jwt

import "context"

type subjectKey struct{}

// WithSubject stores the authenticated user id in ctx.
func WithSubject(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, subjectKey{}, userID)
}

// SubjectFromContext returns the user id stored by the middleware.
func SubjectFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(subjectKey{}).(string)
	return userID, ok && userID != ""
}
