package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gotd/contrib/bg"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/html"
	"github.com/gotd/td/tg"

	"github.com/smartgenbot/smartgen/internal/logger"
)

// gotdClient implements Client over a raw gotd/td connection. The library
// is call-driven: each wizard step maps directly onto one Auth() call.
// Session state lives in memory only; nothing touches disk.
type gotdClient struct {
	apiID   int
	apiHash string
	log     *logger.Logger

	storage *session.StorageMemory
	client  *telegram.Client
	stop    bg.StopFunc

	closeOnce sync.Once
}

func newGotdClient(apiID int, apiHash string, log *logger.Logger) *gotdClient {
	return &gotdClient{
		apiID:   apiID,
		apiHash: apiHash,
		log:     log.Component("provider.gotd"),
	}
}

func (c *gotdClient) Connect(ctx context.Context) error {
	c.storage = &session.StorageMemory{}
	c.client = telegram.NewClient(c.apiID, c.apiHash, telegram.Options{
		SessionStorage: c.storage,
	})

	stop, err := bg.Connect(c.client)
	if err != nil {
		return Normalize(err)
	}
	c.stop = stop
	return nil
}

func (c *gotdClient) RequestCode(ctx context.Context, phone string) (string, error) {
	sentCode, err := c.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", Normalize(err)
	}

	code, ok := sentCode.(*tg.AuthSentCode)
	if !ok {
		return "", fmt.Errorf("unexpected sent code type %T", sentCode)
	}
	return code.PhoneCodeHash, nil
}

func (c *gotdClient) SignIn(ctx context.Context, phone, token, code string) error {
	_, err := c.client.Auth().SignIn(ctx, phone, code, token)
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return ErrSecondFactorRequired
	}
	return Normalize(err)
}

func (c *gotdClient) SignInPassword(ctx context.Context, password string) error {
	_, err := c.client.Auth().Password(ctx, password)
	return Normalize(err)
}

// ExportSessionString serializes the in-memory session data to a compact
// opaque string: JSON of the gotd session payload, base64url-encoded.
// Feeding the decoded payload back into a session storage reconstructs
// the authorized connection.
func (c *gotdClient) ExportSessionString(ctx context.Context) (string, error) {
	loader := session.Loader{Storage: c.storage}
	data, err := loader.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func (c *gotdClient) SendSelfMessage(ctx context.Context, text string) error {
	sender := message.NewSender(c.client.API())
	_, err := sender.Self().StyledText(ctx, html.String(nil, text))
	return err
}

func (c *gotdClient) SessionFiles() []string {
	return nil
}

func (c *gotdClient) Disconnect() {
	c.closeOnce.Do(func() {
		if c.stop == nil {
			return
		}
		if err := c.stop(); err != nil {
			c.log.Warn().Err(err).Msg("disconnect failed")
		}
	})
}
