package media

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgenbot/smartgen/internal/logger"
)

type fakeChat struct {
	mu      sync.Mutex
	sent    []string
	edits   []string
	deleted []int
	uploads []Upload
	sendErr error
	nextID  int
}

func (c *fakeChat) Send(chatID int64, text string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.sent = append(c.sent, text)
	return c.nextID, nil
}

func (c *fakeChat) Edit(chatID int64, messageID int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits = append(c.edits, text)
	return nil
}

func (c *fakeChat) Delete(chatID int64, messageID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, messageID)
	return nil
}

func (c *fakeChat) SendMedia(up Upload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploads = append(c.uploads, up)
	return c.sendErr
}

func (c *fakeChat) lastEdit() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.edits) == 0 {
		return ""
	}
	return c.edits[len(c.edits)-1]
}

type fakePipe struct {
	info     *Info
	result   *Result
	resolves error
	fetches  error
	cleaned  []string
}

func (p *fakePipe) Resolve(ctx context.Context, query string) (*Info, error) {
	return p.info, p.resolves
}

func (p *fakePipe) Fetch(ctx context.Context, info *Info, audio bool) (*Result, error) {
	return p.result, p.fetches
}

func (p *fakePipe) Cleanup(tempDir string) {
	p.cleaned = append(p.cleaned, tempDir)
}

type fakeDLReporter struct {
	outcomes []string
}

func (r *fakeDLReporter) DownloadEvent(chatID int64, mediaType, outcome string, size int64) {
	r.outcomes = append(r.outcomes, mediaType+":"+outcome)
}

func newTestHandler(p *fakePipe) (*Handler, *fakeChat, *fakeDLReporter) {
	chat := &fakeChat{}
	rep := &fakeDLReporter{}
	h := &Handler{
		pipeline:     p,
		chat:         chat,
		log:          logger.Get(),
		sem:          make(chan struct{}, 2),
		fetchTimeout: time.Minute,
	}
	h.SetReporter(rep)
	return h, chat, rep
}

func sampleResult() *Result {
	return &Result{
		FilePath:        "/tmp/dl/media.mp4",
		TempDir:         "/tmp/dl",
		Title:           "Test Video",
		SafeTitle:       "Test_Video",
		Performer:       "Test Channel",
		URL:             "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Views:           "1,234,567",
		Duration:        "3m 32s",
		DurationSeconds: 212,
		Size:            "2.00 KB",
		SizeBytes:       2048,
	}
}

func TestHandler_VideoDelivery(t *testing.T) {
	info := testInfo
	p := &fakePipe{info: &info, result: sampleResult()}
	h, chat, rep := newTestHandler(p)

	require.True(t, h.HandleCommand(1, 7, "Rick", "yt", "rick astley", ""))

	require.Len(t, chat.uploads, 1)
	up := chat.uploads[0]
	assert.False(t, up.Audio)
	assert.Equal(t, "Test_Video.mp4", up.FileName)
	assert.Equal(t, 212, up.Duration)
	assert.Contains(t, up.Caption, "Test Video")
	assert.Contains(t, up.Caption, "tg://user?id=7")
	assert.Contains(t, up.Caption, "1,234,567")

	assert.Equal(t, []string{"/tmp/dl"}, p.cleaned)
	assert.Equal(t, []string{"video:completed"}, rep.outcomes)
	assert.Len(t, chat.deleted, 1, "status message removed after delivery")
}

func TestHandler_AudioUsesReplyText(t *testing.T) {
	info := testInfo
	p := &fakePipe{info: &info, result: sampleResult()}
	h, chat, rep := newTestHandler(p)

	require.True(t, h.HandleCommand(1, 7, "Rick", "mp3", "", "some song name"))

	require.Len(t, chat.uploads, 1)
	assert.True(t, chat.uploads[0].Audio)
	assert.Equal(t, "Test_Video.mp3", chat.uploads[0].FileName)
	assert.Equal(t, "Test Channel", chat.uploads[0].Performer)
	assert.Equal(t, []string{"audio:completed"}, rep.outcomes)
}

func TestHandler_MissingQuery(t *testing.T) {
	h, chat, _ := newTestHandler(&fakePipe{})

	require.True(t, h.HandleCommand(1, 7, "Rick", "song", "", ""))
	require.Len(t, chat.sent, 1)
	assert.Contains(t, chat.sent[0], "music name or link")
	assert.Empty(t, chat.uploads)
}

func TestHandler_NotFound(t *testing.T) {
	p := &fakePipe{resolves: ErrNotFound}
	h, chat, rep := newTestHandler(p)

	require.True(t, h.HandleCommand(1, 7, "Rick", "video", "gibberish", ""))
	assert.Contains(t, chat.lastEdit(), "Not Found")
	assert.Equal(t, []string{"video:not_found"}, rep.outcomes)
}

func TestHandler_GateMessages(t *testing.T) {
	info := testInfo

	p := &fakePipe{info: &info, fetches: ErrTooLong}
	h, chat, rep := newTestHandler(p)
	h.HandleCommand(1, 7, "Rick", "yt", "x", "")
	assert.Contains(t, chat.lastEdit(), "Over 2 Hours")
	assert.Equal(t, []string{"video:too_long"}, rep.outcomes)

	p = &fakePipe{info: &info, fetches: ErrTooLarge}
	h, chat, rep = newTestHandler(p)
	h.HandleCommand(1, 7, "Rick", "yt", "x", "")
	assert.Contains(t, chat.lastEdit(), "Over 2GB")
	assert.Equal(t, []string{"video:too_large"}, rep.outcomes)
}

func TestHandler_UploadFailureStillCleansUp(t *testing.T) {
	info := testInfo
	p := &fakePipe{info: &info, result: sampleResult()}
	h, chat, rep := newTestHandler(p)
	chat.sendErr = context.DeadlineExceeded

	h.HandleCommand(1, 7, "Rick", "yt", "x", "")

	assert.Contains(t, chat.lastEdit(), "Upload Failed")
	assert.Equal(t, []string{"/tmp/dl"}, p.cleaned)
	assert.Equal(t, []string{"video:failed"}, rep.outcomes)
}

func TestHandler_IgnoresOtherCommands(t *testing.T) {
	h, chat, _ := newTestHandler(&fakePipe{})
	assert.False(t, h.HandleCommand(1, 7, "Rick", "gotd", "x", ""))
	assert.False(t, h.HandleCommand(1, 7, "Rick", "start", "", ""))
	assert.Empty(t, chat.sent)
}
