package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/smartgenbot/smartgen/internal/logger"
)

// Info is the slice of yt-dlp's --dump-json output the pipeline needs.
type Info struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Channel   string  `json:"channel"`
	Uploader  string  `json:"uploader"`
	Duration  float64 `json:"duration"`
	ViewCount int64   `json:"view_count"`
	URL       string  `json:"webpage_url"`
}

// Performer returns the best available artist name.
func (i *Info) Performer() string {
	if i.Channel != "" {
		return i.Channel
	}
	if i.Uploader != "" {
		return i.Uploader
	}
	return "Unknown Artist"
}

// Runner shells out to the yt-dlp binary.
type Runner struct {
	binary      string
	cookiesPath string
	maxHeight   int
	log         *logger.Logger
}

func NewRunner(binary, cookiesPath string, maxHeight int, log *logger.Logger) *Runner {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Runner{binary: binary, cookiesPath: cookiesPath, maxHeight: maxHeight, log: log}
}

// commonArgs are passed to every yt-dlp invocation.
func (r *Runner) commonArgs() []string {
	args := []string{
		"--quiet",
		"--no-warnings",
		"--no-progress",
		"--no-check-certificates",
		"--socket-timeout", "60",
		"--retries", "3",
		"--concurrent-fragments", "5",
		"--extractor-args", "youtube:player_client=web,android",
	}
	if r.cookiesPath != "" {
		args = append(args, "--cookies", r.cookiesPath)
	}
	return args
}

func (r *Runner) downloadArgs(url, outputPath string, audio bool) []string {
	args := r.commonArgs()
	if audio {
		args = append(args,
			"--format", "bestaudio[ext=m4a]/bestaudio[ext=webm]/bestaudio/best",
			"--extract-audio",
			"--audio-format", "mp3",
			"--audio-quality", "320K",
		)
	} else {
		h := strconv.Itoa(r.maxHeight)
		args = append(args,
			"--format", fmt.Sprintf(
				"bestvideo[height<=%[1]s][ext=mp4]+bestaudio[ext=m4a]/bestvideo[height<=%[1]s]+bestaudio/bestvideo[height<=%[1]s]/best[height<=%[1]s]/best", h),
			"--merge-output-format", "mp4",
		)
	}
	return append(args, "--output", outputPath+".%(ext)s", url)
}

// Probe fetches metadata for a URL or a "ytsearch1:" query without
// downloading anything.
func (r *Runner) Probe(ctx context.Context, target string) (*Info, error) {
	args := append(r.commonArgs(), "--dump-json", "--no-download", target)
	cmd := exec.CommandContext(ctx, r.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		r.log.Debug().Err(err).Str("target", target).Str("stderr", stderr.String()).Msg("yt-dlp probe failed")
		return nil, fmt.Errorf("yt-dlp probe: %w", err)
	}

	var info Info
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("yt-dlp probe output: %w", err)
	}
	return &info, nil
}

// Search resolves a free-text query to the first matching video.
func (r *Runner) Search(ctx context.Context, query string) (*Info, error) {
	return r.Probe(ctx, "ytsearch1:"+query)
}

// Download fetches the media into outputPath (extension appended by
// yt-dlp), transcoding audio to mp3 and merging video to mp4.
func (r *Runner) Download(ctx context.Context, url, outputPath string, audio bool) error {
	cmd := exec.CommandContext(ctx, r.binary, r.downloadArgs(url, outputPath, audio)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		r.log.Error().Err(err).Str("url", url).Str("stderr", stderr.String()).Msg("yt-dlp download failed")
		return fmt.Errorf("yt-dlp download: %w", err)
	}
	return nil
}
