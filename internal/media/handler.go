package media

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/smartgenbot/smartgen/internal/logger"
)

// Commands answered by the media handler.
var (
	videoCommands = map[string]bool{"yt": true, "video": true, "mp4": true}
	audioCommands = map[string]bool{"song": true, "mp3": true}
)

const (
	textNeedVideoQuery = "<b>Please provide a video name or link ❌</b>"
	textNeedAudioQuery = "<b>Please provide a music name or link ❌</b>"
	textFoundMedia     = "<b>Found ☑️ Downloading...</b>"
	textUploading      = "<b>Uploading…</b>"
)

// Chat is the slice of the bot surface the handler needs.
type Chat interface {
	Send(chatID int64, text string) (int, error)
	Edit(chatID int64, messageID int, text string) error
	Delete(chatID int64, messageID int) error
	SendMedia(up Upload) error
}

// Upload describes a finished media file handed to the bot for delivery.
type Upload struct {
	ChatID        int64
	Audio         bool
	FilePath      string
	ThumbnailPath string
	Caption       string
	FileName      string
	Title         string
	Performer     string
	Duration      int
}

// Reporter receives terminal download events. Nil disables reporting.
type Reporter interface {
	DownloadEvent(chatID int64, mediaType, outcome string, sizeBytes int64)
}

// Download outcomes as reported to the Reporter.
const (
	DownloadCompleted = "completed"
	DownloadNotFound  = "not_found"
	DownloadTooLong   = "too_long"
	DownloadTooLarge  = "too_large"
	DownloadFailed    = "failed"
)

type pipe interface {
	Resolve(ctx context.Context, query string) (*Info, error)
	Fetch(ctx context.Context, info *Info, audio bool) (*Result, error)
	Cleanup(tempDir string)
}

// Handler routes media commands through the download pipeline and
// delivers the result back into the chat.
type Handler struct {
	pipeline pipe
	chat     Chat
	log      *logger.Logger
	reporter Reporter

	// sem bounds the number of downloads running at once; yt-dlp and
	// ffmpeg are too heavy to run one per update worker
	sem          chan struct{}
	fetchTimeout time.Duration
}

func NewHandler(pipeline *Pipeline, chat Chat, workers int, log *logger.Logger) *Handler {
	if workers <= 0 {
		workers = 8
	}
	return &Handler{
		pipeline:     pipeline,
		chat:         chat,
		log:          log,
		sem:          make(chan struct{}, workers),
		fetchTimeout: 30 * time.Minute,
	}
}

// SetReporter wires terminal download events to r.
func (h *Handler) SetReporter(r Reporter) {
	h.reporter = r
}

// HandleCommand reacts to the media commands. replyText, when the
// command message replies to another message, takes priority over args
// as the query. Returns false for commands that are not media commands.
func (h *Handler) HandleCommand(chatID, userID int64, userName, command, args, replyText string) bool {
	audio := audioCommands[command]
	if !audio && !videoCommands[command] {
		return false
	}

	query := replyText
	if query == "" {
		query = args
	}
	if query == "" {
		if audio {
			h.send(chatID, textNeedAudioQuery)
		} else {
			h.send(chatID, textNeedVideoQuery)
		}
		return true
	}

	h.process(chatID, userID, userName, query, audio)
	return true
}

func (h *Handler) process(chatID, userID int64, userName, query string, audio bool) {
	kind := "Video"
	mediaType := "video"
	if audio {
		kind = "Audio"
		mediaType = "audio"
	}
	h.log.Info().Int64("user_id", userID).Str("query", query).Str("type", mediaType).Msg("media request")

	statusID, err := h.chat.Send(chatID, fmt.Sprintf("<b>Searching The %s</b>", kind))
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send status message")
		return
	}

	h.sem <- struct{}{}
	defer func() { <-h.sem }()

	ctx, cancel := context.WithTimeout(context.Background(), h.fetchTimeout)
	defer cancel()

	info, err := h.pipeline.Resolve(ctx, query)
	if err != nil {
		h.edit(chatID, statusID, fmt.Sprintf("<b>Sorry, %s Not Found</b>", kind))
		h.report(chatID, mediaType, DownloadNotFound, 0)
		return
	}

	h.edit(chatID, statusID, textFoundMedia)

	res, err := h.pipeline.Fetch(ctx, info, audio)
	if err != nil {
		switch {
		case errors.Is(err, ErrTooLong):
			h.edit(chatID, statusID, fmt.Sprintf("<b>Sorry, %s Is Over 2 Hours</b>", kind))
			h.report(chatID, mediaType, DownloadTooLong, 0)
		case errors.Is(err, ErrTooLarge):
			h.edit(chatID, statusID, fmt.Sprintf("<b>Sorry, %s Is Over 2GB</b>", kind))
			h.report(chatID, mediaType, DownloadTooLarge, 0)
		default:
			h.edit(chatID, statusID, fmt.Sprintf("<b>Sorry, %s Not Found</b>", kind))
			h.report(chatID, mediaType, DownloadNotFound, 0)
		}
		return
	}
	defer h.pipeline.Cleanup(res.TempDir)

	h.edit(chatID, statusID, textUploading)

	ext := "mp4"
	if audio {
		ext = "mp3"
	}
	up := Upload{
		ChatID:        chatID,
		Audio:         audio,
		FilePath:      res.FilePath,
		ThumbnailPath: res.ThumbnailPath,
		Caption:       buildCaption(res, userID, userName),
		FileName:      fmt.Sprintf("%s.%s", res.SafeTitle, ext),
		Title:         res.Title,
		Performer:     res.Performer,
		Duration:      res.DurationSeconds,
	}
	if err := h.chat.SendMedia(up); err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Str("file", res.FilePath).Msg("media upload failed")
		h.edit(chatID, statusID, fmt.Sprintf("<b>Sorry, %s Upload Failed</b>", kind))
		h.report(chatID, mediaType, DownloadFailed, res.SizeBytes)
		return
	}

	h.delete(chatID, statusID)
	h.report(chatID, mediaType, DownloadCompleted, res.SizeBytes)
	h.log.Info().Int64("chat_id", chatID).Str("title", res.Title).Str("size", res.Size).Msg("media delivered")
}

func buildCaption(res *Result, userID int64, userName string) string {
	mention := fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, html.EscapeString(userName))
	return fmt.Sprintf(
		"🎵 <b>Title:</b> <code>%s</code>\n"+
			"<b>━━━━━━━━━━━━━━━━━━━━━</b>\n"+
			"👁️‍🗨️ <b>Views:</b> <b>%s</b>\n"+
			"<b>🔗 Url:</b> <a href=\"%s\">Watch On YouTube</a>\n"+
			"⏱️ <b>Duration:</b> <b>%s</b>\n"+
			"<b>━━━━━━━━━━━━━━━━━━━━━</b>\n"+
			"<b>Downloaded By</b> %s",
		html.EscapeString(res.Title), res.Views, res.URL, res.Duration, mention,
	)
}

func (h *Handler) send(chatID int64, text string) {
	if _, err := h.chat.Send(chatID, text); err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}

func (h *Handler) edit(chatID int64, messageID int, text string) {
	if err := h.chat.Edit(chatID, messageID, text); err != nil {
		h.log.Debug().Err(err).Int64("chat_id", chatID).Msg("failed to edit status message")
	}
}

func (h *Handler) delete(chatID int64, messageID int) {
	if err := h.chat.Delete(chatID, messageID); err != nil {
		h.log.Debug().Err(err).Int64("chat_id", chatID).Msg("failed to delete status message")
	}
}

func (h *Handler) report(chatID int64, mediaType, outcome string, size int64) {
	if h.reporter != nil {
		h.reporter.DownloadEvent(chatID, mediaType, outcome, size)
	}
}
