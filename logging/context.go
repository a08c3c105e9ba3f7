package logging

import (
	"context"

	"go.viam.com/utils"
)

type traceKeyType struct{}

// WithTrace marks ctx so that CDebug calls made with it log at info level, tagged with key.
// An empty key is replaced by a random one.
func WithTrace(ctx context.Context, key string) context.Context {
	if key == "" {
		key = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, traceKeyType{}, key)
}

// Trace returns the key set by WithTrace.
func Trace(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(traceKeyType{}).(string)
	return key, ok && key != ""
}
