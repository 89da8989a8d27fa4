// Package notify delivers status alerts over every configured channel.
// Delivery is fire-and-forget: failures are logged and never returned.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const sendTimeout = 10 * time.Second

type Notifier struct {
	channels []Channel
	limiter  *rate.Limiter
	log      zerolog.Logger
}

// New fans out to channels. ratePerMinute caps Notify calls;
// zero or less disables the cap.
func New(log zerolog.Logger, ratePerMinute float64, channels ...Channel) *Notifier {
	n := &Notifier{channels: channels, log: log.With().Str("comp", "notify").Logger()}
	if ratePerMinute > 0 {
		burst := int(ratePerMinute)
		if burst < 1 {
			burst = 1
		}
		n.limiter = rate.NewLimiter(rate.Limit(ratePerMinute/60), burst)
	}
	return n
}

func (n *Notifier) Channels() []string {
	out := make([]string, 0, len(n.channels))
	for _, c := range n.channels {
		out = append(out, c.Name())
	}
	return out
}

// Notify sends to each channel in turn. Shutdown does not cancel delivery:
// the final alert of a run usually coincides with it. The rate cap counts
// Notify calls, not channel sends; SUCCESS and EXCEPTION always go out.
func (n *Notifier) Notify(ctx context.Context, title Title, msg string) {
	n.log.Info().Str("title", string(title)).Msg(msg)
	base := context.WithoutCancel(ctx)
	if !n.allow(base, title) {
		n.log.Warn().Str("title", string(title)).Msg("notification dropped by rate limit")
		return
	}
	for _, c := range n.channels {
		sctx, cancel := context.WithTimeout(base, sendTimeout)
		err := c.Send(sctx, title, msg)
		cancel()
		if err != nil {
			n.log.Warn().Err(err).Str("channel", c.Name()).Str("title", string(title)).Msg("notification failed")
		}
	}
}

func (n *Notifier) allow(ctx context.Context, title Title) bool {
	if n.limiter == nil || len(n.channels) == 0 {
		return true
	}
	if title == Success || title == Exception {
		n.limiter.Allow()
		return true
	}
	wctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return n.limiter.Wait(wctx) == nil
}
