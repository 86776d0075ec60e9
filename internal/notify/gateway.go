package notify

import "context"

// Gateway is the outbound email transport. It performs no retries; batch
// failure policy belongs to the Dispatcher.
type Gateway interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}
