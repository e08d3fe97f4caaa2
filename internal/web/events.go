package web

import (
	"encoding/json"
	"time"

	"github.com/smartgenbot/smartgen/internal/logger"
	"github.com/smartgenbot/smartgen/internal/provider"
	"github.com/smartgenbot/smartgen/internal/stats"
)

// Websocket event types.
const (
	EventWizardRun    = "wizard.run"
	EventDownloadDone = "download.done"
)

// WSEvent is a structured websocket message.
type WSEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WizardRunPayload describes a wizard flow reaching a terminal state.
// Intentionally carries no credentials, only the provider and outcome.
type WizardRunPayload struct {
	Provider string    `json:"provider"`
	Outcome  string    `json:"outcome"`
	At       time.Time `json:"at"`
}

// DownloadPayload describes a finished media fetch.
type DownloadPayload struct {
	MediaType string    `json:"media_type"`
	Outcome   string    `json:"outcome"`
	SizeBytes int64     `json:"size_bytes"`
	At        time.Time `json:"at"`
}

func WizardRunEvent(kind provider.Kind, outcome string) []byte {
	b, _ := json.Marshal(WSEvent{
		Type:    EventWizardRun,
		Payload: WizardRunPayload{Provider: string(kind), Outcome: outcome, At: time.Now().UTC()},
	})
	return b
}

func DownloadEvent(mediaType, outcome string, sizeBytes int64) []byte {
	b, _ := json.Marshal(WSEvent{
		Type:    EventDownloadDone,
		Payload: DownloadPayload{MediaType: mediaType, Outcome: outcome, SizeBytes: sizeBytes, At: time.Now().UTC()},
	})
	return b
}

// EventReporter fans terminal flow events into the stats store and the
// websocket hub. It backs both the wizard's and the media handler's
// reporter hooks.
type EventReporter struct {
	hub   *Hub
	stats *stats.Repository
	log   *logger.Logger
}

func NewEventReporter(hub *Hub, repo *stats.Repository, log *logger.Logger) *EventReporter {
	return &EventReporter{hub: hub, stats: repo, log: log}
}

func (r *EventReporter) WizardEvent(chatID int64, kind provider.Kind, outcome string) {
	if r.stats != nil {
		if err := r.stats.RecordWizardRun(chatID, string(kind), outcome); err != nil {
			r.log.Warn().Err(err).Msg("failed to record wizard run")
		}
	}
	if r.hub != nil {
		r.hub.Broadcast(WizardRunEvent(kind, outcome))
	}
}

func (r *EventReporter) DownloadEvent(chatID int64, mediaType, outcome string, sizeBytes int64) {
	if r.stats != nil {
		if err := r.stats.RecordDownload(chatID, mediaType, outcome, sizeBytes); err != nil {
			r.log.Warn().Err(err).Msg("failed to record download")
		}
	}
	if r.hub != nil {
		r.hub.Broadcast(DownloadEvent(mediaType, outcome, sizeBytes))
	}
}
