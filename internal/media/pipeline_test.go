package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgenbot/smartgen/internal/logger"
)

type fakeRunner struct {
	info        *Info
	probeErr    error
	searchErr   error
	downloadErr error

	// content written to outputPath + ext, simulating yt-dlp output
	writeExt  string
	writeSize int

	lastTarget string
	downloaded bool
}

func (f *fakeRunner) Probe(ctx context.Context, target string) (*Info, error) {
	f.lastTarget = target
	return f.info, f.probeErr
}

func (f *fakeRunner) Search(ctx context.Context, query string) (*Info, error) {
	f.lastTarget = "ytsearch1:" + query
	return f.info, f.searchErr
}

func (f *fakeRunner) Download(ctx context.Context, url, outputPath string, audio bool) error {
	f.downloaded = true
	if f.downloadErr != nil {
		return f.downloadErr
	}
	return os.WriteFile(outputPath+f.writeExt, make([]byte, f.writeSize), 0o644)
}

func newTestPipeline(t *testing.T, runner *fakeRunner, maxSize int64) *Pipeline {
	t.Helper()
	return &Pipeline{
		runner:      runner,
		tempRoot:    t.TempDir(),
		maxSize:     maxSize,
		maxDuration: 7200,
		log:         logger.Get(),
		httpClient:  &http.Client{Timeout: time.Second},
		thumbHost:   "http://127.0.0.1:0", // unreachable, thumbnail is best effort
	}
}

var testInfo = Info{
	ID:        "dQw4w9WgXcQ",
	Title:     "Test Video",
	Channel:   "Test Channel",
	Duration:  212,
	ViewCount: 1234567,
	URL:       "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
}

func TestPipeline_ResolveLink(t *testing.T) {
	info := testInfo
	runner := &fakeRunner{info: &info}
	p := newTestPipeline(t, runner, 1<<20)

	got, err := p.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ?t=5")
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", runner.lastTarget)
	assert.Equal(t, "Test Video", got.Title)
}

func TestPipeline_ResolveSearch(t *testing.T) {
	info := testInfo
	runner := &fakeRunner{info: &info}
	p := newTestPipeline(t, runner, 1<<20)

	got, err := p.Resolve(context.Background(), "never gonna give you up")
	require.NoError(t, err)
	assert.Equal(t, "ytsearch1:never gonna give you up", runner.lastTarget)
	assert.Equal(t, "dQw4w9WgXcQ", got.ID)
}

func TestPipeline_ResolveNothingFound(t *testing.T) {
	runner := &fakeRunner{searchErr: os.ErrNotExist}
	p := newTestPipeline(t, runner, 1<<20)

	_, err := p.Resolve(context.Background(), "gibberish")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPipeline_FetchVideo(t *testing.T) {
	info := testInfo
	runner := &fakeRunner{info: &info, writeExt: ".mp4", writeSize: 2048}
	p := newTestPipeline(t, runner, 1<<20)

	res, err := p.Fetch(context.Background(), &info, false)
	require.NoError(t, err)
	defer p.Cleanup(res.TempDir)

	assert.FileExists(t, res.FilePath)
	assert.Equal(t, "Test_Video", res.SafeTitle)
	assert.Equal(t, "Test Channel", res.Performer)
	assert.Equal(t, "1,234,567", res.Views)
	assert.Equal(t, "3m 32s", res.Duration)
	assert.Equal(t, int64(2048), res.SizeBytes)
	assert.Empty(t, res.ThumbnailPath)
}

func TestPipeline_FetchAcceptsAlternateContainer(t *testing.T) {
	info := testInfo
	runner := &fakeRunner{info: &info, writeExt: ".mkv", writeSize: 10}
	p := newTestPipeline(t, runner, 1<<20)

	res, err := p.Fetch(context.Background(), &info, false)
	require.NoError(t, err)
	defer p.Cleanup(res.TempDir)
	assert.Equal(t, ".mkv", filepath.Ext(res.FilePath))
}

func TestPipeline_FetchDurationGate(t *testing.T) {
	info := testInfo
	info.Duration = 7201
	runner := &fakeRunner{info: &info}
	p := newTestPipeline(t, runner, 1<<20)

	_, err := p.Fetch(context.Background(), &info, false)
	assert.ErrorIs(t, err, ErrTooLong)
	assert.False(t, runner.downloaded, "gated media must never be downloaded")
}

func TestPipeline_FetchSizeGateRemovesTempDir(t *testing.T) {
	info := testInfo
	runner := &fakeRunner{info: &info, writeExt: ".mp4", writeSize: 4096}
	p := newTestPipeline(t, runner, 1024)

	_, err := p.Fetch(context.Background(), &info, false)
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, readErr := os.ReadDir(p.tempRoot)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "oversized downloads must be deleted")
}

func TestPipeline_FetchDownloadFailureCleansUp(t *testing.T) {
	info := testInfo
	runner := &fakeRunner{info: &info, downloadErr: os.ErrPermission}
	p := newTestPipeline(t, runner, 1<<20)

	_, err := p.Fetch(context.Background(), &info, true)
	assert.ErrorIs(t, err, ErrNotFound)

	entries, readErr := os.ReadDir(p.tempRoot)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestPipeline_ThumbnailFallback(t *testing.T) {
	hits := []string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.Path)
		if filepath.Base(r.URL.Path) == "maxresdefault.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("jpegdata"))
	}))
	defer srv.Close()

	info := testInfo
	runner := &fakeRunner{info: &info, writeExt: ".mp3", writeSize: 64}
	p := newTestPipeline(t, runner, 1<<20)
	p.thumbHost = srv.URL

	res, err := p.Fetch(context.Background(), &info, true)
	require.NoError(t, err)
	defer p.Cleanup(res.TempDir)

	require.NotEmpty(t, res.ThumbnailPath)
	assert.FileExists(t, res.ThumbnailPath)
	assert.Equal(t, []string{
		"/vi/dQw4w9WgXcQ/maxresdefault.jpg",
		"/vi/dQw4w9WgXcQ/hqdefault.jpg",
	}, hits)
}

func TestPipeline_CleanupIsIdempotent(t *testing.T) {
	p := newTestPipeline(t, &fakeRunner{}, 1<<20)
	dir := filepath.Join(p.tempRoot, "gone")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	p.Cleanup(dir)
	p.Cleanup(dir)
	p.Cleanup("")
	assert.NoDirExists(t, dir)
}

func TestRunner_DownloadArgs(t *testing.T) {
	r := NewRunner("yt-dlp", "/etc/cookies.txt", 1080, logger.Get())

	audio := r.downloadArgs("URL", "/tmp/x/media", true)
	assert.Contains(t, audio, "--extract-audio")
	assert.Contains(t, audio, "mp3")
	assert.Contains(t, audio, "--cookies")
	assert.Equal(t, "URL", audio[len(audio)-1])
	assert.Contains(t, audio, "/tmp/x/media.%(ext)s")

	video := r.downloadArgs("URL", "/tmp/x/media", false)
	assert.Contains(t, video, "--merge-output-format")
	joined := ""
	for _, a := range video {
		joined += a + " "
	}
	assert.Contains(t, joined, "height<=1080")

	// no cookies flag when unconfigured
	bare := NewRunner("", "", 720, logger.Get())
	assert.NotContains(t, bare.downloadArgs("URL", "out", true), "--cookies")
	assert.Equal(t, "yt-dlp", bare.binary)
}
