package bot

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/smartgenbot/smartgen/internal/logger"
	"github.com/smartgenbot/smartgen/internal/media"
	"github.com/smartgenbot/smartgen/internal/wizard"
)

const helpText = "<b>Hi! Here is what I can do:</b>\n\n" +
	"/gotd – generate a session string with the gotd library\n" +
	"/proto – generate a session string with the gotgproto library\n" +
	"/yt, /video, /mp4 – download a YouTube video\n" +
	"/song, /mp3 – download a YouTube audio track\n\n" +
	"Session generation only works in private chats."

// Bot runs the long-poll loop and fans updates out to the feature
// handlers on a bounded worker pool.
type Bot struct {
	api    *tgbotapi.BotAPI
	sender *Sender
	wizard *wizard.Wizard
	media  *media.Handler
	log    *logger.Logger

	sem chan struct{}
	wg  sync.WaitGroup
}

// New authorizes against the Bot API. workers bounds the number of
// updates handled concurrently.
func New(token string, workers int, log *logger.Logger) (*Bot, *Sender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("username", api.Self.UserName).Msg("bot authorized")

	if workers <= 0 {
		workers = 32
	}
	sender := NewSender(api, DefaultRateLimiter(), log)
	return &Bot{
		api:    api,
		sender: sender,
		log:    log,
		sem:    make(chan struct{}, workers),
	}, sender, nil
}

// Attach wires the feature handlers. Must be called before Run.
func (b *Bot) Attach(w *wizard.Wizard, m *media.Handler) {
	b.wizard = w
	b.media = m
}

// MediaChat returns the media handler's view of the sender.
func (b *Bot) MediaChat() media.Chat {
	return mediaChat{s: b.sender}
}

// Run blocks consuming updates until ctx is cancelled, then waits for
// in-flight handlers to drain.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.log.Info().Msg("bot started, waiting for updates")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			b.log.Info().Msg("bot stopped")
			return
		case upd, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return
			}
			b.dispatch(upd)
		}
	}
}

// dispatch hands one update to a worker, blocking when the pool is full
// so update processing applies backpressure to the poll loop.
func (b *Bot) dispatch(upd tgbotapi.Update) {
	b.sem <- struct{}{}
	b.wg.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.log.Error().Interface("panic", r).Msg("panic in update handler")
			}
			<-b.sem
			b.wg.Done()
		}()
		b.handleUpdate(upd)
	}()
}

func (b *Bot) handleUpdate(upd tgbotapi.Update) {
	switch {
	case upd.CallbackQuery != nil:
		b.handleCallback(upd.CallbackQuery)
	case upd.Message != nil:
		b.handleMessage(upd.Message)
	}
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	if b.wizard.HandleCallback(chatID, cb.From.ID, cb.Message.MessageID, cb.ID, cb.Data) {
		return
	}
	// unknown payload, likely from a stale keyboard
	if err := b.sender.Ack(cb.ID); err != nil {
		b.log.Debug().Err(err).Msg("failed to ack unknown callback")
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.IsBot {
		return
	}
	chatID := msg.Chat.ID
	userID := msg.From.ID

	if msg.IsCommand() {
		b.handleCommand(chatID, userID, msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	b.wizard.HandleText(chatID, userID, text)
}

func (b *Bot) handleCommand(chatID, userID int64, msg *tgbotapi.Message) {
	command := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	if b.wizard.HandleCommand(chatID, userID, command, msg.Chat.IsPrivate()) {
		return
	}

	replyText := ""
	if msg.ReplyToMessage != nil {
		replyText = strings.TrimSpace(msg.ReplyToMessage.Text)
	}
	if b.media.HandleCommand(chatID, userID, displayName(msg.From), command, args, replyText) {
		return
	}

	switch command {
	case "start", "help":
		if _, err := b.sender.Send(chatID, helpText, nil); err != nil {
			b.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send help")
		}
	}
}

func displayName(u *tgbotapi.User) string {
	if u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.FirstName
}
