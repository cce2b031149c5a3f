// Package telegram delivers notification entries to a Telegram chat.
//
// The channel is send-only: the engine pushes, nothing polls. Delivery is
// best-effort by contract (notify.Alerter), so every failure here is the
// caller's to log and drop.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "leadpulse/pkg/logx"
)

// Telegram caps messages at 4096 chars; stay under it with headroom for
// the title line.
const textLimit = 4000

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
}

// Alerter sends notification entries to one configured chat. The zero value
// is an unconfigured channel: Authorized reports false and Send fails.
type Alerter struct {
	cfg Config
	log logx.Logger

	mu  sync.Mutex
	bot *tele.Bot
}

// New validates the configuration and verifies the token against the API.
// A bad token fails here, not on the first Send.
func New(cfg Config, log logx.Logger) (*Alerter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	// No poller: the update loop never starts, NewBot still verifies the
	// token via getMe.
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	log.Info("alert channel ready", logx.Int64("chat_id", cfg.ChatID))
	return &Alerter{cfg: cfg, log: log, bot: b}, nil
}

// Authorized reports whether the channel can deliver.
func (a *Alerter) Authorized() bool {
	if a == nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bot != nil
}

// Send delivers one alert. Long bodies are truncated rather than split:
// alerts summarize, the in-app log holds the full record.
func (a *Alerter) Send(ctx context.Context, title, body string) error {
	a.mu.Lock()
	bot := a.bot
	a.mu.Unlock()
	if bot == nil {
		return errors.New("alert channel not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text := title
	if body != "" {
		text = title + "\n" + body
	}
	if rs := []rune(text); len(rs) > textLimit {
		text = string(rs[:textLimit-1]) + "…"
	}

	start := time.Now()
	_, err := bot.Send(
		&tele.Chat{ID: a.cfg.ChatID},
		text,
		&tele.SendOptions{ThreadID: a.cfg.ThreadID, DisableWebPagePreview: true},
	)
	if err != nil {
		return err
	}
	a.log.Debug("alert delivered", logx.Duration("dur", time.Since(start)))
	return nil
}

// Close shuts the channel down; subsequent Sends fail and Authorized
// reports false.
func (a *Alerter) Close() {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.bot = nil
	a.mu.Unlock()
}
