package subscription

import "context"

// Transport downloads list content.
// Implementations return a typed error for non-200 responses and undecodable bodies.
type Transport interface {
	Fetch(ctx context.Context, url string) (content string, statusCode int, err error)
}
