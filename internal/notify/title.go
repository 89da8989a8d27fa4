package notify

import "context"

// Title classifies a notification.
type Title string

const (
	Success   Title = "SUCCESS"
	Exception Title = "EXCEPTION"
	Ban       Title = "BAN"
	Rest      Title = "REST"
)

// Channel delivers one message over a single medium.
type Channel interface {
	Name() string
	Send(ctx context.Context, title Title, msg string) error
}
