package domain

import "context"

const (
	// FileField is the multipart field carrying the file, inbound and outbound.
	FileField = "file"
	// RequestIDHeader correlates a relayed request across services.
	RequestIDHeader = "X-Request-Id"
)

// File is an uploaded file in flight: the raw content and the original filename.
type File struct {
	Name    string
	Content []byte
}

// Result is what the downstream processing service answered.
type Result struct {
	Body        []byte
	ContentType string
	StatusCode  int
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
