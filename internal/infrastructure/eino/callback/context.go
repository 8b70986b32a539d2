package callback

import "context"

type providerKey struct{}

// WithProvider 在 ctx 中标记本次调用使用的 provider（ingest / analyze）
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerKey{}, provider)
}

// ProviderFromContext 读取 provider，未设置时返回 "unknown"
func ProviderFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(providerKey{}).(string); ok && v != "" {
		return v
	}
	return "unknown"
}
