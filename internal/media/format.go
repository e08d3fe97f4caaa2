package media

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/shorts/([^"&?/ ]{11})`),
	regexp.MustCompile(`(?:youtube\.com/(?:[^/]+/.+/|(?:v|e(?:mbed)?)/|.*[?&]v=)|youtu\.be/)([^"&?/ ]{11})`),
	regexp.MustCompile(`youtube\.com/watch\?v=([^"&?/ ]{11})`),
	regexp.MustCompile(`m\.youtube\.com/watch\?v=([^"&?/ ]{11})`),
	regexp.MustCompile(`youtube\.com/embed/([^"&?/ ]{11})`),
	regexp.MustCompile(`youtube\.com/v/([^"&?/ ]{11})`),
}

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`youtu\.be/([0-9A-Za-z_-]{11})`),
}

// CanonicalURL normalizes any recognized YouTube link to its canonical
// watch (or shorts) form. Empty result means the input is not a
// YouTube link.
func CanonicalURL(raw string) string {
	for _, p := range youtubePatterns {
		m := p.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		if strings.Contains(strings.ToLower(raw), "shorts") {
			return "https://www.youtube.com/shorts/" + m[1]
		}
		return "https://www.youtube.com/watch?v=" + m[1]
	}
	return ""
}

// ExtractVideoID pulls the 11-char video identifier out of a URL. A
// bare 11-char input is treated as an identifier itself.
func ExtractVideoID(url string) string {
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(url); m != nil {
			return m[1]
		}
	}
	if len(url) == 11 {
		return url
	}
	return ""
}

var (
	unsafeChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// SanitizeFilename turns a video title into a safe file name.
func SanitizeFilename(title string) string {
	if len(title) > 100 {
		title = title[:100]
	}
	title = unsafeChars.ReplaceAllString(title, "")
	return whitespace.ReplaceAllString(strings.TrimSpace(title), "_")
}

// FormatSize renders a byte count with binary units.
func FormatSize(n int64) string {
	if n <= 0 {
		return "0B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	i := 0
	v := float64(n)
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", v, units[i])
}

// FormatDuration renders seconds as "1h 2m 3s", dropping leading zero
// components.
func FormatDuration(seconds int) string {
	h := seconds / 3600
	m := seconds % 3600 / 60
	s := seconds % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// FormatViewCount groups a view count with thousands separators.
func FormatViewCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
