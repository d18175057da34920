package core

import "context"

type contextKey string

const ctxKeyViewer contextKey = "viewer_id"

// ContextWithViewer tags ctx with the id of the user making the request.
func ContextWithViewer(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeyViewer, userID)
}

// ViewerFromContext returns the requesting user's id, or "" for anonymous
// requests.
func ViewerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyViewer).(string); ok {
		return v
	}
	return ""
}
