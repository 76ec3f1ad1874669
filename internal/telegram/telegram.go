// Package telegram is the outbound message channel and the inbound chat
// surface: recipients self-register by messaging the bot, and mark tasks done
// with a short free-text command.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"shiftbot/internal/domain"
	"shiftbot/internal/store"
)

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

type Config struct {
	Token       string
	Mode        string // polling (default) or webhook
	PollTimeout time.Duration
	RatePerSec  int // outbound sends per second toward the Telegram API
}

type Channel struct {
	bot      *tele.Bot
	repo     store.Repository
	registry store.RecipientRegistry
	limiter  *rate.Limiter
	webhook  bool
}

func New(cfg Config, repo store.Repository, registry store.RecipientRegistry) (*Channel, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	settings := tele.Settings{Token: cfg.Token}
	webhook := cfg.Mode == ModeWebhook
	if !webhook {
		settings.Poller = &tele.LongPoller{Timeout: timeout}
	}
	b, err := tele.NewBot(settings)
	if err != nil {
		return nil, err
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 25 // under Telegram's ~30 msg/s ceiling
	}
	c := &Channel{
		bot:      b,
		repo:     repo,
		registry: registry,
		limiter:  rate.NewLimiter(rate.Limit(rps), rps),
		webhook:  webhook,
	}
	b.Handle(tele.OnText, c.onText)
	return c, nil
}

// Start begins consuming updates. In webhook mode nothing runs here; updates
// arrive through WebhookHandler instead of the long poller.
func (c *Channel) Start(ctx context.Context) {
	if c.webhook {
		log.Info().Msg("telegram channel ready (webhook mode)")
		return
	}
	go func() {
		<-ctx.Done()
		c.bot.Stop()
	}()
	go func() {
		log.Info().Msg("telegram polling started")
		c.bot.Start() // blocks until Stop
	}()
}

// Send delivers text to one chat, rate limited and bounded by the context
// deadline. telebot's Send has no context support, so the call is fenced with
// a select on ctx.
func (c *Channel) Send(ctx context.Context, chatID int64, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := c.bot.Send(&tele.Chat{ID: chatID}, text, tele.ModeMarkdown)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WebhookHandler feeds externally delivered updates into the bot's handlers.
func (c *Channel) WebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u tele.Update
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.bot.ProcessUpdate(u)
		w.WriteHeader(http.StatusOK)
	}
}

func (c *Channel) onText(tc tele.Context) error {
	m := tc.Message()
	if m == nil {
		return nil
	}
	ctx := context.Background()
	chatID := m.Chat.ID
	text := strings.TrimSpace(m.Text)
	log.Debug().Int64("chat_id", chatID).Str("text", text).Msg("inbound message")

	isNew, err := c.registry.Register(ctx, chatID)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("register recipient")
		return nil
	}
	if isNew {
		// Greet and stop; the first message only opts the chat in.
		log.Info().Int64("chat_id", chatID).Msg("new recipient registered")
		return tc.Send("Registered. You will now receive task notifications.")
	}

	cmd, n := ParseCommand(text)
	if cmd != CmdMarkDone {
		return tc.Send("Unrecognized message. Send \"done <task number>\" or just the task number to finish a task.")
	}
	// Chat completions act on the management board, as the admin UI owns
	// per-role completion.
	changed, err := c.repo.MarkDone(ctx, domain.RoleManagement, n)
	if err != nil {
		log.Error().Err(err).Int("task_number", n).Msg("mark task done")
		return tc.Send("Something went wrong, please try again.")
	}
	if !changed {
		return tc.Send(fmt.Sprintf("Task #%d was not found", n))
	}
	log.Info().Int("task_number", n).Int64("chat_id", chatID).Msg("task marked done via chat")
	return tc.Send(fmt.Sprintf("Task #%d completed ✅", n))
}
