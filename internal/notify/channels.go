package notify

import (
	"fmt"

	"github.com/example/visa-rescheduler/internal/config"
)

// Channels builds every channel with credentials in cfg. account is the
// default e-mail sender and recipient.
func Channels(cfg config.NotifyConfig, account string) ([]Channel, error) {
	var out []Channel

	if cfg.Telegram.Token != "" {
		tg, err := NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, "")
		if err != nil {
			return nil, fmt.Errorf("notify.telegram: %w", err)
		}
		out = append(out, tg)
	}
	if sg := cfg.SendGrid; sg.APIKey != "" {
		from, to := sg.From, sg.To
		if from == "" {
			from = account
		}
		if to == "" {
			to = account
		}
		ch, err := NewSendGrid(sg.APIKey, from, to)
		if err != nil {
			return nil, fmt.Errorf("notify.sendgrid: %w", err)
		}
		out = append(out, ch)
	}
	if po := cfg.Pushover; po.Token != "" {
		ch, err := NewPushover(po.Token, po.User, "")
		if err != nil {
			return nil, fmt.Errorf("notify.pushover: %w", err)
		}
		out = append(out, ch)
	}
	if p := cfg.Pusher; p.User != "" {
		ch, err := NewPusher(p.URL, p.User, p.Pass, p.Email)
		if err != nil {
			return nil, fmt.Errorf("notify.pusher: %w", err)
		}
		out = append(out, ch)
	}
	return out, nil
}
