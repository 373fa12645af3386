package logging

import (
	"context"
)

type contextKey string

const (
	RequestIDKey   = "request_id"
	KeywordKey     = "keyword"
	CompetitorKey  = "competitor"
	ServiceNameKey = "service_name"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey(RequestIDKey), requestID)
}

func WithKeyword(ctx context.Context, keyword string) context.Context {
	return context.WithValue(ctx, contextKey(KeywordKey), keyword)
}

func WithCompetitor(ctx context.Context, competitor string) context.Context {
	return context.WithValue(ctx, contextKey(CompetitorKey), competitor)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, contextKey(ServiceNameKey), serviceName)
}

func GetRequestID(ctx context.Context) string {
	return getString(ctx, RequestIDKey)
}

func GetKeyword(ctx context.Context) string {
	return getString(ctx, KeywordKey)
}

func GetCompetitor(ctx context.Context) string {
	return getString(ctx, CompetitorKey)
}

func GetServiceName(ctx context.Context) string {
	return getString(ctx, ServiceNameKey)
}

func getString(ctx context.Context, key string) string {
	if v, ok := ctx.Value(contextKey(key)).(string); ok {
		return v
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	for _, key := range []string{RequestIDKey, KeywordKey, CompetitorKey, ServiceNameKey} {
		if v := getString(ctx, key); v != "" {
			fields = append(fields, key, v)
		}
	}

	return fields
}
