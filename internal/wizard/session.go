package wizard

import (
	"sync"

	"github.com/smartgenbot/smartgen/internal/provider"
)

// Stage identifies which input the wizard is waiting for.
type Stage string

const (
	// StageNone means the menu was shown but the flow has not started.
	StageNone     Stage = ""
	StageAPIID    Stage = "api_id"
	StageAPIHash  Stage = "api_hash"
	StagePhone    Stage = "phone"
	StageCode     Stage = "otp"
	StagePassword Stage = "twofa"
)

// Session is the per-chat wizard state. At most one session exists per
// chat. All fields except Stage are written only by the goroutine that
// currently holds handleMu; Stage is additionally read by watchdog
// timers and is guarded by its own mutex.
type Session struct {
	ChatID   int64
	OwnerID  int64
	Provider provider.Kind

	APIID     int
	APIHash   string
	Phone     string
	CodeToken string

	MenuMessageID int

	Client provider.Client

	// handleMu serializes update handling for this session so two
	// messages arriving back to back cannot interleave stage logic.
	handleMu sync.Mutex

	stageMu sync.Mutex
	stage   Stage
}

// CurrentStage returns the stage the session is waiting on.
func (s *Session) CurrentStage() Stage {
	s.stageMu.Lock()
	defer s.stageMu.Unlock()
	return s.stage
}

func (s *Session) setStage(stage Stage) {
	s.stageMu.Lock()
	s.stage = stage
	s.stageMu.Unlock()
}

// Registry tracks the live session per chat.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int64]*Session)}
}

// Get returns the chat's session, nil when absent.
func (r *Registry) Get(chatID int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[chatID]
}

// Put registers the session for its chat, replacing any previous one.
func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	r.sessions[s.ChatID] = s
	r.mu.Unlock()
}

// Take removes and returns the chat's session, nil when absent.
func (r *Registry) Take(chatID int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[chatID]
	delete(r.sessions, chatID)
	return s
}

// TakeIf removes the session only when the registry still holds exactly
// this one and, if stages are given, its current stage is among them.
// Watchdog timers use this so a timer firing after the session was
// replaced or advanced is a no-op.
func (r *Registry) TakeIf(s *Session, stages ...Stage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[s.ChatID] != s {
		return false
	}
	if len(stages) > 0 {
		current := s.CurrentStage()
		match := false
		for _, st := range stages {
			if current == st {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	delete(r.sessions, s.ChatID)
	return true
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
