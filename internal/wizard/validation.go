package wizard

import (
	"regexp"
	"strconv"
	"strings"
)

// Stage input filters. Text that does not match the filter for the
// session's current stage is ignored so unrelated chatter in the chat
// cannot derail the flow.
var (
	apiIDPattern   = regexp.MustCompile(`^\d+$`)
	apiHashPattern = regexp.MustCompile(`^[a-fA-F0-9]{32}$`)
	phonePattern   = regexp.MustCompile(`^\+\d{10,15}$`)
	otpTextPattern = regexp.MustCompile(`^[a-zA-Z0-9\s-]{4,20}$`)
)

// maxPasswordLen bounds accepted two-factor password input.
const maxPasswordLen = 20

// MatchesStage reports whether text passes the input filter for stage.
func MatchesStage(stage Stage, text string) bool {
	text = strings.TrimSpace(text)
	switch stage {
	case StageAPIID:
		return apiIDPattern.MatchString(text)
	case StageAPIHash:
		return apiHashPattern.MatchString(text)
	case StagePhone:
		return phonePattern.MatchString(text)
	case StageCode:
		return otpTextPattern.MatchString(text)
	case StagePassword:
		return len(text) > 0 && len(text) <= maxPasswordLen
	}
	return false
}

// ParseAPIID parses an API identifier that already passed the stage
// filter. Values that overflow int or are zero are still rejected here.
func ParseAPIID(s string) (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ExtractDigits pulls the digits out of free-form code input, so users
// can space or letter-pad the code to dodge Telegram's login-code
// revocation ("Use AB4 BC1 GJ1 GH5 GJ4" yields "41154").
func ExtractDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
