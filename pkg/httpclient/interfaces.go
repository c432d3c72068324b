package httpclient

import (
	"context"
	"io"
)

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
	Header(name string) string
}

// StreamResponse exposes a response whose body has not been buffered, so the
// caller bounds how much of it is read. The caller owns closing the reader.
type StreamResponse interface {
	Reader() io.ReadCloser
	StatusCode() int
	Header(name string) string
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
	// GetStream is the unbuffered variant of Get, for transfers where the
	// body may be too large to hold whole.
	GetStream(ctx context.Context, url string, headers map[string]string) (StreamResponse, error)
}
