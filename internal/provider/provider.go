// Package provider normalizes two MTProto client libraries behind one
// authentication contract. The wizard drives either implementation through
// the same set of operations and sees one error vocabulary.
package provider

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/smartgenbot/smartgen/internal/logger"
)

// Kind selects one of the two supported client libraries.
type Kind string

const (
	// KindGotd is the call-driven raw gotd/td client.
	KindGotd Kind = "gotd"
	// KindGotgproto is the callback-driven gotgproto client.
	KindGotgproto Kind = "proto"
)

// KindFromString parses a kind from command or callback payload text.
func KindFromString(s string) (Kind, bool) {
	switch strings.ToLower(s) {
	case "gotd":
		return KindGotd, true
	case "proto", "gotgproto":
		return KindGotgproto, true
	}
	return "", false
}

// Title returns the user-facing library name.
func (k Kind) Title() string {
	if k == KindGotgproto {
		return "gotgproto"
	}
	return "gotd"
}

// Shared error taxonomy. Both libraries' failures collapse onto these.
var (
	ErrInvalidCredentials   = errors.New("api id / api hash combination is invalid")
	ErrInvalidPhone         = errors.New("phone number is invalid")
	ErrCodeInvalid          = errors.New("confirmation code is invalid")
	ErrCodeExpired          = errors.New("confirmation code has expired")
	ErrSecondFactorRequired = errors.New("two-factor password required")
	ErrPasswordInvalid      = errors.New("two-factor password is invalid")
)

// Client is a live, authentication-in-progress connection to Telegram.
// A Client is owned by exactly one wizard session and must be disconnected
// exactly once on every exit path.
type Client interface {
	// Connect opens the transport-level connection. Credential problems
	// are not reported here; they surface from RequestCode.
	Connect(ctx context.Context) error

	// RequestCode asks Telegram to send a login code to the phone and
	// returns the opaque token needed to complete sign-in.
	RequestCode(ctx context.Context, phone string) (string, error)

	// SignIn completes login with the received code. Returns
	// ErrSecondFactorRequired when the account has a cloud password.
	SignIn(ctx context.Context, phone, token, code string) error

	// SignInPassword completes login with the two-factor password.
	SignInPassword(ctx context.Context, password string) error

	// ExportSessionString returns an opaque credential that reconstructs
	// an equivalent authorized connection.
	ExportSessionString(ctx context.Context) (string, error)

	// SendSelfMessage delivers text to the account's Saved Messages.
	SendSelfMessage(ctx context.Context, text string) error

	// SessionFiles lists on-disk artifacts owned by this client, to be
	// deleted during cleanup. Empty for in-memory implementations.
	SessionFiles() []string

	// Disconnect tears down the connection. Idempotent and safe to call
	// on a handle that never connected; never fails.
	Disconnect()
}

// New creates a client of the given kind. sessionDir is where file-backed
// implementations keep their per-chat session database.
func New(kind Kind, apiID int, apiHash string, sessionDir string, chatID int64, log *logger.Logger) Client {
	if kind == KindGotgproto {
		path := filepath.Join(sessionDir, fmt.Sprintf("wizard_%d.db", chatID))
		return newGotgprotoClient(apiID, apiHash, path, log)
	}
	return newGotdClient(apiID, apiHash, log)
}

// rpcConditions maps Telegram RPC error codes onto the shared taxonomy.
// Matching is by substring: both libraries embed the code in the error
// text, and this avoids coupling to either library's error types.
var rpcConditions = []struct {
	code string
	err  error
}{
	{"API_ID_INVALID", ErrInvalidCredentials},
	{"API_ID_PUBLISHED_FLOOD", ErrInvalidCredentials},
	{"API_HASH_INVALID", ErrInvalidCredentials},
	{"PHONE_NUMBER_INVALID", ErrInvalidPhone},
	{"PHONE_NUMBER_BANNED", ErrInvalidPhone},
	{"PHONE_CODE_INVALID", ErrCodeInvalid},
	{"PHONE_CODE_EXPIRED", ErrCodeExpired},
	{"SESSION_PASSWORD_NEEDED", ErrSecondFactorRequired},
	{"PASSWORD_HASH_INVALID", ErrPasswordInvalid},
}

// Normalize collapses a library error onto the shared taxonomy. Errors
// that match no known condition are returned wrapped as-is and are
// treated as terminal by callers.
func Normalize(err error) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range []error{
		ErrInvalidCredentials, ErrInvalidPhone, ErrCodeInvalid,
		ErrCodeExpired, ErrSecondFactorRequired, ErrPasswordInvalid,
		errCodeRejected, errPasswordRejected,
	} {
		if errors.Is(err, sentinel) {
			return mapRejection(sentinel)
		}
	}

	msg := err.Error()
	for _, c := range rpcConditions {
		if strings.Contains(msg, c.code) {
			return c.err
		}
	}
	// conversator rejections may arrive flattened into the message text
	if strings.Contains(msg, errCodeRejected.Error()) {
		return ErrCodeInvalid
	}
	if strings.Contains(msg, errPasswordRejected.Error()) {
		return ErrPasswordInvalid
	}

	return fmt.Errorf("provider: %w", err)
}

func mapRejection(sentinel error) error {
	switch sentinel {
	case errCodeRejected:
		return ErrCodeInvalid
	case errPasswordRejected:
		return ErrPasswordInvalid
	}
	return sentinel
}
