package bot

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/smartgenbot/smartgen/internal/logger"
	"github.com/smartgenbot/smartgen/internal/media"
)

// Sender wraps outgoing Bot API calls with HTML formatting and rate
// limiting. It satisfies the wizard's Messenger interface.
type Sender struct {
	api     *tgbotapi.BotAPI
	limiter *RateLimiter
	log     *logger.Logger
}

func NewSender(api *tgbotapi.BotAPI, limiter *RateLimiter, log *logger.Logger) *Sender {
	return &Sender{api: api, limiter: limiter, log: log}
}

// Send delivers an HTML message and returns its identifier.
func (s *Sender) Send(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (int, error) {
	s.wait()
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	sent, err := s.api.Send(msg)
	if err != nil {
		s.noteFloodWait(err)
		return 0, err
	}
	return sent.MessageID, nil
}

// Edit replaces a message's text and keyboard in place.
func (s *Sender) Edit(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	s.wait()
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.ReplyMarkup = keyboard
	_, err := s.api.Send(edit)
	if err != nil {
		s.noteFloodWait(err)
	}
	return err
}

// Delete removes a message.
func (s *Sender) Delete(chatID int64, messageID int) error {
	s.wait()
	_, err := s.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

// Ack answers a callback query without user-visible feedback.
func (s *Sender) Ack(callbackID string) error {
	_, err := s.api.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

// Alert answers a callback query with a popup alert.
func (s *Sender) Alert(callbackID, text string) error {
	_, err := s.api.Request(tgbotapi.NewCallbackWithAlert(callbackID, text))
	return err
}

// SendMedia uploads a finished audio or video file.
func (s *Sender) SendMedia(up media.Upload) error {
	s.wait()

	var msg tgbotapi.Chattable
	if up.Audio {
		audio := tgbotapi.NewAudio(up.ChatID, tgbotapi.FilePath(up.FilePath))
		audio.Caption = up.Caption
		audio.ParseMode = tgbotapi.ModeHTML
		audio.Title = up.Title
		audio.Performer = up.Performer
		audio.Duration = up.Duration
		if up.ThumbnailPath != "" {
			audio.Thumb = tgbotapi.FilePath(up.ThumbnailPath)
		}
		msg = audio
	} else {
		video := tgbotapi.NewVideo(up.ChatID, tgbotapi.FilePath(up.FilePath))
		video.Caption = up.Caption
		video.ParseMode = tgbotapi.ModeHTML
		video.Duration = up.Duration
		video.SupportsStreaming = true
		if up.ThumbnailPath != "" {
			video.Thumb = tgbotapi.FilePath(up.ThumbnailPath)
		}
		msg = video
	}

	_, err := s.api.Send(msg)
	if err != nil {
		s.noteFloodWait(err)
	}
	return err
}

func (s *Sender) wait() {
	if err := s.limiter.Wait(context.Background()); err != nil {
		s.log.Warn().Err(err).Msg("rate limiter wait interrupted")
	}
}

// noteFloodWait feeds Telegram's retry-after hints back into the
// limiter so subsequent calls back off instead of piling up 429s.
func (s *Sender) noteFloodWait(err error) {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		s.log.Warn().Int("retry_after", apiErr.RetryAfter).Msg("flood wait from telegram")
		s.limiter.SetFloodWait(apiErr.RetryAfter)
	}
}

// mediaChat narrows Sender to the media handler's plain-text surface.
type mediaChat struct {
	s *Sender
}

func (c mediaChat) Send(chatID int64, text string) (int, error) {
	return c.s.Send(chatID, text, nil)
}

func (c mediaChat) Edit(chatID int64, messageID int, text string) error {
	return c.s.Edit(chatID, messageID, text, nil)
}

func (c mediaChat) Delete(chatID int64, messageID int) error {
	return c.s.Delete(chatID, messageID)
}

func (c mediaChat) SendMedia(up media.Upload) error {
	return c.s.SendMedia(up)
}
