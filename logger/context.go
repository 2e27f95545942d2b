package logger

import (
	"context"
	"sync/atomic"
)

type contextKey string

const (
	dbCounterKey       contextKey = "db_operation_counter"
	dbElapsedKey       contextKey = "db_elapsed_nanos"
	rendererCounterKey contextKey = "renderer_request_counter"
	rendererElapsedKey contextKey = "renderer_elapsed_nanos"
)

// WithDBCounter attaches a database operation counter and elapsed time tracker to ctx.
func WithDBCounter(ctx context.Context) context.Context {
	return withCounter(ctx, dbCounterKey, dbElapsedKey)
}

// IncrementDBCounter counts one database operation.
func IncrementDBCounter(ctx context.Context) {
	add(ctx, dbCounterKey, 1)
}

// AddDBElapsed adds nanos to the database elapsed time.
func AddDBElapsed(ctx context.Context, nanos int64) {
	add(ctx, dbElapsedKey, nanos)
}

// GetDBCounter returns the number of database operations recorded in ctx.
func GetDBCounter(ctx context.Context) int64 {
	return load(ctx, dbCounterKey)
}

// GetDBElapsed returns the database elapsed time in nanoseconds.
func GetDBElapsed(ctx context.Context) int64 {
	return load(ctx, dbElapsedKey)
}

// WithRendererCounter attaches a renderer request counter and elapsed time tracker to ctx.
func WithRendererCounter(ctx context.Context) context.Context {
	return withCounter(ctx, rendererCounterKey, rendererElapsedKey)
}

// IncrementRendererCounter counts one renderer request.
func IncrementRendererCounter(ctx context.Context) {
	add(ctx, rendererCounterKey, 1)
}

// AddRendererElapsed adds nanos to the renderer elapsed time.
func AddRendererElapsed(ctx context.Context, nanos int64) {
	add(ctx, rendererElapsedKey, nanos)
}

// GetRendererCounter returns the number of renderer requests recorded in ctx.
func GetRendererCounter(ctx context.Context) int64 {
	return load(ctx, rendererCounterKey)
}

// GetRendererElapsed returns the renderer elapsed time in nanoseconds.
func GetRendererElapsed(ctx context.Context) int64 {
	return load(ctx, rendererElapsedKey)
}

func withCounter(ctx context.Context, counterKey, elapsedKey contextKey) context.Context {
	counter := int64(0)
	elapsed := int64(0)
	ctx = context.WithValue(ctx, counterKey, &counter)
	return context.WithValue(ctx, elapsedKey, &elapsed)
}

func add(ctx context.Context, key contextKey, delta int64) {
	if v, ok := ctx.Value(key).(*int64); ok && v != nil {
		atomic.AddInt64(v, delta)
	}
}

func load(ctx context.Context, key contextKey) int64 {
	if v, ok := ctx.Value(key).(*int64); ok && v != nil {
		return atomic.LoadInt64(v)
	}
	return 0
}
