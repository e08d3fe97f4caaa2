package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/glebarez/sqlite"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/html"

	"github.com/smartgenbot/smartgen/internal/logger"
)

// conversator rejection sentinels. Returned from the Ask* callbacks to
// abort the gotgproto flow once the library re-asks for an input the
// wizard already supplied (a re-ask means the provider rejected it).
var (
	errCodeRejected     = errors.New("login code rejected by provider")
	errPasswordRejected = errors.New("two-factor password rejected by provider")
)

// gotgprotoClient implements Client over gotgproto. The library is
// callback-driven: NewClient blocks until authorization completes,
// requesting inputs through an AuthConversator. The stepwise adapter
// contract is bridged by running NewClient in a goroutine and feeding it
// through channels. The session lives in a per-chat sqlite file that
// cleanup deletes.
type gotgprotoClient struct {
	apiID       int
	apiHash     string
	sessionPath string
	log         *logger.Logger

	conv     *chanConversator
	authDone chan authResult
	client   *gotgproto.Client

	closeOnce sync.Once
}

type authResult struct {
	client *gotgproto.Client
	err    error
}

func newGotgprotoClient(apiID int, apiHash string, sessionPath string, log *logger.Logger) *gotgprotoClient {
	return &gotgprotoClient{
		apiID:       apiID,
		apiHash:     apiHash,
		sessionPath: sessionPath,
		log:         log.Component("provider.gotgproto"),
	}
}

func (c *gotgprotoClient) Connect(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(c.sessionPath), 0755); err != nil {
		return err
	}
	// a stale session file from a crashed run would skip the code flow
	for _, f := range c.SessionFiles() {
		_ = os.Remove(f)
	}
	return nil
}

// RequestCode starts the blocking gotgproto auth flow and returns once the
// library asks for the code, meaning Telegram accepted the credentials and
// dispatched one. The token is synthetic: gotgproto tracks the real
// phone-code hash internally.
func (c *gotgprotoClient) RequestCode(ctx context.Context, phone string) (string, error) {
	c.conv = newChanConversator(phone, c.log)
	c.authDone = make(chan authResult, 1)

	go func() {
		client, err := gotgproto.NewClient(
			c.apiID,
			c.apiHash,
			gotgproto.ClientTypePhone(phone),
			&gotgproto.ClientOpts{
				Session:          sessionMaker.SqlSession(sqlite.Open(c.sessionPath)),
				AuthConversator:  c.conv,
				DisableCopyright: true,
			},
		)
		c.authDone <- authResult{client: client, err: err}
	}()

	select {
	case <-c.conv.codeAsked:
		return "gotgproto", nil
	case res := <-c.authDone:
		if res.err != nil {
			return "", Normalize(res.err)
		}
		// authorized without a code; keep the client and let SignIn no-op
		c.client = res.client
		return "gotgproto", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *gotgprotoClient) SignIn(ctx context.Context, phone, token, code string) error {
	if c.client != nil {
		return nil
	}

	if err := c.conv.feed(ctx, code); err != nil {
		return err
	}

	select {
	case <-c.conv.passwordAsked:
		return ErrSecondFactorRequired
	case res := <-c.authDone:
		if res.err != nil {
			return Normalize(res.err)
		}
		c.client = res.client
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *gotgprotoClient) SignInPassword(ctx context.Context, password string) error {
	if c.client != nil {
		return nil
	}

	if err := c.conv.feed(ctx, password); err != nil {
		return err
	}

	select {
	case res := <-c.authDone:
		if res.err != nil {
			return Normalize(res.err)
		}
		c.client = res.client
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *gotgprotoClient) ExportSessionString(ctx context.Context) (string, error) {
	if c.client == nil {
		return "", errors.New("client is not authorized")
	}
	return c.client.ExportStringSession()
}

func (c *gotgprotoClient) SendSelfMessage(ctx context.Context, text string) error {
	if c.client == nil {
		return errors.New("client is not authorized")
	}
	sender := message.NewSender(c.client.API())
	_, err := sender.Self().StyledText(ctx, html.String(nil, text))
	return err
}

func (c *gotgprotoClient) SessionFiles() []string {
	return []string{
		c.sessionPath,
		c.sessionPath + "-wal",
		c.sessionPath + "-shm",
	}
}

func (c *gotgprotoClient) Disconnect() {
	c.closeOnce.Do(func() {
		if c.conv != nil {
			c.conv.close()
		}
		if c.client != nil {
			c.client.Stop()
		}
	})
}

// chanConversator bridges gotgproto's callback-driven AuthConversator to
// the wizard's stepwise inputs. Ask* signal readiness and block until the
// wizard feeds a value; a repeated ask for the same input aborts the flow
// with a rejection sentinel.
type chanConversator struct {
	phone string
	log   *logger.Logger

	inputs        chan string
	codeAsked     chan struct{}
	passwordAsked chan struct{}
	quit          chan struct{}

	mu           sync.Mutex
	codeAsks     int
	passwordAsks int
}

var _ gotgproto.AuthConversator = (*chanConversator)(nil)

func newChanConversator(phone string, log *logger.Logger) *chanConversator {
	return &chanConversator{
		phone:         phone,
		log:           log,
		inputs:        make(chan string),
		codeAsked:     make(chan struct{}),
		passwordAsked: make(chan struct{}),
		quit:          make(chan struct{}),
	}
}

// feed hands one input value to a blocked Ask* callback.
func (c *chanConversator) feed(ctx context.Context, value string) error {
	select {
	case c.inputs <- value:
		return nil
	case <-c.quit:
		return errors.New("auth flow already closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *chanConversator) close() {
	select {
	case <-c.quit:
	default:
		close(c.quit)
	}
}

func (c *chanConversator) AskPhoneNumber() (string, error) {
	return c.phone, nil
}

func (c *chanConversator) AskCode() (string, error) {
	c.mu.Lock()
	c.codeAsks++
	asks := c.codeAsks
	c.mu.Unlock()

	if asks > 1 {
		return "", errCodeRejected
	}

	close(c.codeAsked)
	select {
	case code := <-c.inputs:
		return code, nil
	case <-c.quit:
		return "", errors.New("auth flow cancelled")
	}
}

func (c *chanConversator) AskPassword() (string, error) {
	c.mu.Lock()
	c.passwordAsks++
	asks := c.passwordAsks
	c.mu.Unlock()

	if asks > 1 {
		return "", errPasswordRejected
	}

	close(c.passwordAsked)
	select {
	case password := <-c.inputs:
		return password, nil
	case <-c.quit:
		return "", errors.New("auth flow cancelled")
	}
}

func (c *chanConversator) RetryPassword(attemptsLeft int) (string, error) {
	return "", errPasswordRejected
}

func (c *chanConversator) AuthStatus(status gotgproto.AuthStatus) {
	c.log.Debug().
		Str("event", string(status.Event)).
		Int("attempts_left", status.AttemptsLeft).
		Msg("auth status")
}
