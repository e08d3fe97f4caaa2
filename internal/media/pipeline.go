package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/smartgenbot/smartgen/internal/logger"
)

// Terminal pipeline failures the handler maps to user-facing messages.
var (
	ErrNotFound = errors.New("media not found")
	ErrTooLong  = errors.New("media duration exceeds the limit")
	ErrTooLarge = errors.New("media file exceeds the size limit")
)

// Result describes a fetched media file. TempDir must be released with
// Cleanup once the file has been delivered.
type Result struct {
	FilePath      string
	ThumbnailPath string
	TempDir       string

	Title     string
	SafeTitle string
	Performer string
	URL       string

	Views           string
	Duration        string
	DurationSeconds int
	Size            string
	SizeBytes       int64
}

// fetcher is the yt-dlp surface the pipeline uses, swappable in tests.
type fetcher interface {
	Probe(ctx context.Context, target string) (*Info, error)
	Search(ctx context.Context, query string) (*Info, error)
	Download(ctx context.Context, url, outputPath string, audio bool) error
}

// Pipeline turns a link or search query into a downloaded, size- and
// duration-gated media file with a thumbnail.
type Pipeline struct {
	runner      fetcher
	tempRoot    string
	maxSize     int64
	maxDuration int
	log         *logger.Logger

	httpClient *http.Client
	// thumbHost is swappable so tests do not hit the network
	thumbHost string
}

func NewPipeline(runner *Runner, tempRoot string, maxSize int64, maxDuration int, log *logger.Logger) *Pipeline {
	return &Pipeline{
		runner:      runner,
		tempRoot:    tempRoot,
		maxSize:     maxSize,
		maxDuration: maxDuration,
		log:         log,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		thumbHost:   "https://i.ytimg.com",
	}
}

// Resolve turns a link or free-text query into video metadata. Queries
// that match no video resolve to ErrNotFound.
func (p *Pipeline) Resolve(ctx context.Context, query string) (*Info, error) {
	if url := CanonicalURL(query); url != "" {
		info, err := p.runner.Probe(ctx, url)
		if err != nil || info == nil {
			return nil, ErrNotFound
		}
		info.URL = url
		return info, nil
	}

	info, err := p.runner.Search(ctx, query)
	if err != nil || info == nil || info.ID == "" {
		return nil, ErrNotFound
	}
	if info.URL == "" {
		info.URL = "https://www.youtube.com/watch?v=" + info.ID
	}
	return info, nil
}

// Fetch downloads the media for info. The thumbnail and the media file
// are fetched in parallel; a failed thumbnail never fails the fetch.
func (p *Pipeline) Fetch(ctx context.Context, info *Info, audio bool) (*Result, error) {
	if int(info.Duration) > p.maxDuration {
		return nil, ErrTooLong
	}

	tempDir := filepath.Join(p.tempRoot, uuid.NewString())
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	outputPath := filepath.Join(tempDir, "media")
	var thumbPath string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.runner.Download(gctx, info.URL, outputPath, audio)
	})
	g.Go(func() error {
		// best effort
		thumbPath = p.downloadThumbnail(gctx, info.ID, tempDir)
		return nil
	})
	if err := g.Wait(); err != nil {
		p.Cleanup(tempDir)
		return nil, ErrNotFound
	}

	filePath := locateOutput(outputPath, audio)
	if filePath == "" {
		p.Cleanup(tempDir)
		return nil, ErrNotFound
	}

	fi, err := os.Stat(filePath)
	if err != nil {
		p.Cleanup(tempDir)
		return nil, ErrNotFound
	}
	if fi.Size() > p.maxSize {
		p.Cleanup(tempDir)
		return nil, ErrTooLarge
	}

	duration := int(info.Duration)
	return &Result{
		FilePath:        filePath,
		ThumbnailPath:   thumbPath,
		TempDir:         tempDir,
		Title:           info.Title,
		SafeTitle:       SanitizeFilename(info.Title),
		Performer:       info.Performer(),
		URL:             info.URL,
		Views:           FormatViewCount(info.ViewCount),
		Duration:        FormatDuration(duration),
		DurationSeconds: duration,
		Size:            FormatSize(fi.Size()),
		SizeBytes:       fi.Size(),
	}, nil
}

// Cleanup removes a fetch's temporary directory. Safe on paths that are
// already gone.
func (p *Pipeline) Cleanup(tempDir string) {
	if tempDir == "" {
		return
	}
	if err := os.RemoveAll(tempDir); err != nil {
		p.log.Warn().Err(err).Str("dir", tempDir).Msg("failed to remove temp dir")
		return
	}
	p.log.Debug().Str("dir", tempDir).Msg("temp dir removed")
}

// locateOutput finds the downloaded file, preferring the expected
// container but accepting whatever yt-dlp actually produced.
func locateOutput(outputPath string, audio bool) string {
	exts := []string{".mp4", ".mkv", ".webm", ".m4a", ".mp3"}
	if audio {
		exts = []string{".mp3", ".m4a", ".webm", ".mkv", ".mp4"}
	}
	for _, ext := range exts {
		candidate := outputPath + ext
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// downloadThumbnail tries the high-res thumbnail first and falls back
// to the standard one. Returns "" when neither is available.
func (p *Pipeline) downloadThumbnail(ctx context.Context, videoID, tempDir string) string {
	if videoID == "" {
		return ""
	}
	for _, name := range []string{"maxresdefault.jpg", "hqdefault.jpg"} {
		url := fmt.Sprintf("%s/vi/%s/%s", p.thumbHost, videoID, name)
		path, err := p.fetchThumbnail(ctx, url, filepath.Join(tempDir, "thumb.jpg"))
		if err != nil {
			p.log.Debug().Err(err).Str("url", url).Msg("thumbnail fetch failed")
			continue
		}
		return path
	}
	return ""
}

func (p *Pipeline) fetchThumbnail(ctx context.Context, url, dest string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/91.0.4472.124")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("thumbnail status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(dest)
		return "", err
	}
	return dest, nil
}
