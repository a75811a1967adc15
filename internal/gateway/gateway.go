package gateway

import "context"

// Sender delivers an outbound text message to a contact address and returns
// the provider's message id.
type Sender interface {
	Send(ctx context.Context, toAddress, body string) (string, error)
}

// MediaFetcher retrieves attachment bytes from an authenticated URL and
// reports the payload's content type.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}
