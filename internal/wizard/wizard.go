package wizard

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/smartgenbot/smartgen/internal/logger"
	"github.com/smartgenbot/smartgen/internal/provider"
)

// Default watchdog windows. A login code left unanswered is abandoned
// after otpTimeout; a two-factor password after passwordTimeout.
const (
	defaultOTPTimeout      = 600 * time.Second
	defaultPasswordTimeout = 300 * time.Second
	defaultOpTimeout       = 2 * time.Minute
)

// Session flow outcomes as reported to the Reporter.
const (
	OutcomeCompleted          = "completed"
	OutcomeClosed             = "closed"
	OutcomeRestarted          = "restarted"
	OutcomeTimeout            = "timeout"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeInvalidPhone       = "invalid_phone"
	OutcomeCodeInvalid        = "code_invalid"
	OutcomeCodeExpired        = "code_expired"
	OutcomePasswordInvalid    = "password_invalid"
	OutcomeError              = "error"
)

// Messenger is the slice of the bot surface the wizard needs. Message
// sends return the sent message's identifier so status messages can be
// deleted afterwards.
type Messenger interface {
	Send(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (int, error)
	Edit(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error
	Delete(chatID int64, messageID int) error
	Ack(callbackID string) error
	Alert(callbackID, text string) error
}

// ClientFactory builds an auth client for a session. Swappable in tests.
type ClientFactory func(kind provider.Kind, apiID int, apiHash string, chatID int64) provider.Client

// Reporter receives terminal flow events. Implementations must not
// block; nil reporter disables reporting.
type Reporter interface {
	WizardEvent(chatID int64, kind provider.Kind, outcome string)
}

// Wizard drives the per-chat session string generation flow.
type Wizard struct {
	registry *Registry
	msg      Messenger
	log      *logger.Logger
	factory  ClientFactory
	reporter Reporter

	otpTimeout      time.Duration
	passwordTimeout time.Duration
	opTimeout       time.Duration
}

// New creates a wizard whose default client factory keeps file-backed
// session databases under sessionDir.
func New(msg Messenger, sessionDir string, log *logger.Logger) *Wizard {
	return &Wizard{
		registry: NewRegistry(),
		msg:      msg,
		log:      log,
		factory: func(kind provider.Kind, apiID int, apiHash string, chatID int64) provider.Client {
			return provider.New(kind, apiID, apiHash, sessionDir, chatID, log)
		},
		otpTimeout:      defaultOTPTimeout,
		passwordTimeout: defaultPasswordTimeout,
		opTimeout:       defaultOpTimeout,
	}
}

// SetClientFactory replaces the auth client factory. Used by tests.
func (w *Wizard) SetClientFactory(f ClientFactory) {
	w.factory = f
}

// SetTimeouts overrides the watchdog windows. Used by tests.
func (w *Wizard) SetTimeouts(otp, password time.Duration) {
	w.otpTimeout = otp
	w.passwordTimeout = password
}

// SetReporter wires terminal flow events to r.
func (w *Wizard) SetReporter(r Reporter) {
	w.reporter = r
}

// Registry exposes the session registry for status reporting.
func (w *Wizard) Registry() *Registry {
	return w.registry
}

// HandleCommand reacts to /gotd and /proto. Returns false when the
// command is not a wizard command.
func (w *Wizard) HandleCommand(chatID, userID int64, command string, private bool) bool {
	kind, ok := provider.KindFromString(command)
	if !ok {
		return false
	}
	if !private {
		w.send(chatID, textPrivateOnly, nil)
		return true
	}

	// a fresh command always supersedes whatever was in flight
	if prev := w.registry.Get(chatID); prev != nil {
		w.cleanup(prev, OutcomeRestarted)
	}
	w.openMenu(chatID, userID, kind)
	return true
}

func (w *Wizard) openMenu(chatID, userID int64, kind provider.Kind) {
	sess := &Session{ChatID: chatID, OwnerID: userID, Provider: kind}
	w.registry.Put(sess)
	id, err := w.msg.Send(chatID, menuText(kind), menuKeyboard(kind))
	if err != nil {
		w.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send wizard menu")
		w.registry.TakeIf(sess)
		return
	}
	sess.MenuMessageID = id
	w.log.Info().Int64("chat_id", chatID).Str("provider", string(kind)).Msg("wizard menu opened")
}

// HandleCallback reacts to the wizard's inline buttons. Returns false
// when the payload belongs to another feature.
func (w *Wizard) HandleCallback(chatID, userID int64, messageID int, callbackID, data string) bool {
	if data != cbClose && !strings.HasPrefix(data, cbStartPrefix) && !strings.HasPrefix(data, cbRestartPrefix) {
		return false
	}

	sess := w.registry.Get(chatID)
	if sess == nil {
		w.alert(callbackID, textNoActive)
		return true
	}
	if userID != sess.OwnerID {
		w.alert(callbackID, textNotYours)
		return true
	}

	switch {
	case data == cbClose:
		w.ack(callbackID)
		w.edit(chatID, messageID, closedText(sess.Provider), nil)
		w.cleanup(sess, OutcomeClosed)

	case strings.HasPrefix(data, cbStartPrefix):
		if sess.CurrentStage() != StageNone {
			w.alert(callbackID, textAlreadyActive)
			return true
		}
		w.ack(callbackID)
		sess.setStage(StageAPIID)
		w.edit(chatID, messageID, textAskAPIID, flowKeyboard(sess.Provider))

	case strings.HasPrefix(data, cbRestartPrefix):
		w.ack(callbackID)
		kind, ok := provider.KindFromString(strings.TrimPrefix(data, cbRestartPrefix))
		if !ok {
			kind = sess.Provider
		}
		w.cleanup(sess, OutcomeRestarted)
		w.openMenu(chatID, userID, kind)
	}
	return true
}

// HandleText routes free-form text to the session's current stage.
// Returns false when the text is not wizard input: no session, flow not
// started, wrong sender, or text failing the stage's input filter. All
// of those are ignored without a reply.
func (w *Wizard) HandleText(chatID, userID int64, text string) bool {
	sess := w.registry.Get(chatID)
	if sess == nil {
		return false
	}
	stage := sess.CurrentStage()
	if stage == StageNone || userID != sess.OwnerID || !MatchesStage(stage, text) {
		return false
	}

	sess.handleMu.Lock()
	defer sess.handleMu.Unlock()
	if w.registry.Get(chatID) != sess {
		// cleaned up while this update waited its turn
		return false
	}
	if sess.CurrentStage() != stage {
		// another message advanced the flow while this one waited; its
		// text was only validated against the old stage's shape
		return false
	}
	text = strings.TrimSpace(text)

	switch stage {
	case StageAPIID:
		id, ok := ParseAPIID(text)
		if !ok {
			w.send(chatID, textInvalidAPIID, nil)
			return true
		}
		sess.APIID = id
		sess.setStage(StageAPIHash)
		w.send(chatID, textAskAPIHash, flowKeyboard(sess.Provider))

	case StageAPIHash:
		sess.APIHash = text
		sess.setStage(StagePhone)
		w.send(chatID, textAskPhone, flowKeyboard(sess.Provider))

	case StagePhone:
		sess.Phone = text
		w.sendCode(sess)

	case StageCode:
		code := ExtractDigits(text)
		if code == "" {
			w.send(chatID, textInvalidOTP, flowKeyboard(sess.Provider))
			return true
		}
		w.checkCode(sess, code)

	case StagePassword:
		w.checkPassword(sess, text)
	}
	return true
}

// sendCode connects the auth client and requests a login code for the
// session's phone number.
func (w *Wizard) sendCode(sess *Session) {
	statusID, _ := w.msg.Send(sess.ChatID, textSendingCode, nil)
	defer w.deleteStatus(sess.ChatID, statusID)

	client := w.factory(sess.Provider, sess.APIID, sess.APIHash, sess.ChatID)
	sess.Client = client

	ctx, cancel := context.WithTimeout(context.Background(), w.opTimeout)
	defer cancel()

	err := client.Connect(ctx)
	var token string
	if err == nil {
		token, err = client.RequestCode(ctx, sess.Phone)
	}
	if err != nil {
		err = provider.Normalize(err)
		switch {
		case errors.Is(err, provider.ErrInvalidCredentials):
			w.fail(sess, textBadCreds, OutcomeInvalidCredentials, err)
		case errors.Is(err, provider.ErrInvalidPhone):
			w.fail(sess, textBadPhone, OutcomeInvalidPhone, err)
		default:
			w.fail(sess, textGenericError, OutcomeError, err)
		}
		return
	}

	sess.CodeToken = token
	sess.setStage(StageCode)
	w.arm(sess, w.otpTimeout, StageCode, textCodeTimeout)
	w.send(sess.ChatID, askCodeText(), flowKeyboard(sess.Provider))
	w.log.Info().Int64("chat_id", sess.ChatID).Str("provider", string(sess.Provider)).Msg("login code requested")
}

// checkCode completes sign-in with the extracted login code.
func (w *Wizard) checkCode(sess *Session, code string) {
	statusID, _ := w.msg.Send(sess.ChatID, textCheckingCode, nil)
	defer w.deleteStatus(sess.ChatID, statusID)

	ctx, cancel := context.WithTimeout(context.Background(), w.opTimeout)
	defer cancel()

	err := provider.Normalize(sess.Client.SignIn(ctx, sess.Phone, sess.CodeToken, code))
	switch {
	case err == nil:
		w.finish(sess)
	case errors.Is(err, provider.ErrSecondFactorRequired):
		sess.setStage(StagePassword)
		w.arm(sess, w.passwordTimeout, StagePassword, textPassTimeout)
		w.send(sess.ChatID, textAskPassword, flowKeyboard(sess.Provider))
		w.log.Info().Int64("chat_id", sess.ChatID).Msg("two-factor password required")
	case errors.Is(err, provider.ErrCodeInvalid):
		w.fail(sess, textBadCode, OutcomeCodeInvalid, err)
	case errors.Is(err, provider.ErrCodeExpired):
		w.fail(sess, textExpiredCode, OutcomeCodeExpired, err)
	default:
		w.fail(sess, textGenericError, OutcomeError, err)
	}
}

// checkPassword completes sign-in with the two-factor password.
func (w *Wizard) checkPassword(sess *Session, password string) {
	statusID, _ := w.msg.Send(sess.ChatID, textCheckingPass, nil)
	defer w.deleteStatus(sess.ChatID, statusID)

	ctx, cancel := context.WithTimeout(context.Background(), w.opTimeout)
	defer cancel()

	err := provider.Normalize(sess.Client.SignInPassword(ctx, password))
	switch {
	case err == nil:
		w.finish(sess)
	case errors.Is(err, provider.ErrPasswordInvalid):
		w.fail(sess, textBadPassword, OutcomePasswordInvalid, err)
	default:
		w.fail(sess, textGenericError, OutcomeError, err)
	}
}

// finish exports the session string, delivers it to Saved Messages and
// tears the session down. When delivery fails the string is handed over
// in the chat instead so the work is never lost.
func (w *Wizard) finish(sess *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), w.opTimeout)
	defer cancel()

	str, err := sess.Client.ExportSessionString(ctx)
	if err != nil {
		w.fail(sess, textGenericError, OutcomeError, err)
		return
	}

	selfErr := sess.Client.SendSelfMessage(ctx, savedMessageText(sess.Provider, str))
	if selfErr != nil {
		w.log.Warn().Err(selfErr).Int64("chat_id", sess.ChatID).Msg("saved messages delivery failed")
	}

	w.cleanup(sess, OutcomeCompleted)
	if selfErr == nil {
		w.send(sess.ChatID, textSavedToSelf, nil)
	} else {
		w.send(sess.ChatID, fallbackResultText(sess.Provider, str), nil)
	}
	w.log.Info().Int64("chat_id", sess.ChatID).Str("provider", string(sess.Provider)).Msg("session string generated")
}

// fail reports a terminal flow error to the user and tears down. The
// notice is tied to the removal so a watchdog that already expired the
// session does not leave the user with two terminal messages.
func (w *Wizard) fail(sess *Session, text, outcome string, err error) {
	w.log.Error().Err(err).Int64("chat_id", sess.ChatID).Str("outcome", outcome).Msg("wizard flow failed")
	if w.cleanup(sess, outcome) {
		w.send(sess.ChatID, text, flowKeyboard(sess.Provider))
	}
}

// arm starts a watchdog that abandons the session if it is still stuck
// on stage when the window elapses. Timers are never cancelled; a timer
// that fires after the session advanced or was replaced is a no-op.
func (w *Wizard) arm(sess *Session, d time.Duration, stage Stage, text string) {
	time.AfterFunc(d, func() {
		if !w.registry.TakeIf(sess, stage) {
			return
		}
		w.destroy(sess)
		w.send(sess.ChatID, text, nil)
		w.report(sess, OutcomeTimeout)
		w.log.Info().Int64("chat_id", sess.ChatID).Str("stage", string(stage)).Msg("wizard session timed out")
	})
}

// cleanup removes the session from the registry and releases its
// client. Safe to call more than once; the outcome is reported only by
// the call that actually removed the session, and only that call gets
// true back.
func (w *Wizard) cleanup(sess *Session, outcome string) bool {
	removed := w.registry.TakeIf(sess)
	w.destroy(sess)
	if removed {
		w.report(sess, outcome)
		w.log.Info().Int64("chat_id", sess.ChatID).Str("outcome", outcome).Msg("wizard session cleaned up")
	}
	return removed
}

// destroy disconnects the auth client and deletes its on-disk session
// files. Idempotent.
func (w *Wizard) destroy(sess *Session) {
	if sess.Client == nil {
		return
	}
	sess.Client.Disconnect()
	for _, f := range sess.Client.SessionFiles() {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			w.log.Warn().Err(err).Str("file", f).Msg("failed to delete session file")
		}
	}
}

func (w *Wizard) report(sess *Session, outcome string) {
	if w.reporter != nil {
		w.reporter.WizardEvent(sess.ChatID, sess.Provider, outcome)
	}
}

func (w *Wizard) send(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	if _, err := w.msg.Send(chatID, text, keyboard); err != nil {
		w.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}

func (w *Wizard) edit(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	if err := w.msg.Edit(chatID, messageID, text, keyboard); err != nil {
		w.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to edit message")
	}
}

func (w *Wizard) deleteStatus(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	if err := w.msg.Delete(chatID, messageID); err != nil {
		w.log.Debug().Err(err).Int64("chat_id", chatID).Msg("failed to delete status message")
	}
}

func (w *Wizard) ack(callbackID string) {
	if err := w.msg.Ack(callbackID); err != nil {
		w.log.Debug().Err(err).Msg("failed to ack callback")
	}
}

func (w *Wizard) alert(callbackID, text string) {
	if err := w.msg.Alert(callbackID, text); err != nil {
		w.log.Debug().Err(err).Msg("failed to send callback alert")
	}
}
