package wizard

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/smartgenbot/smartgen/internal/provider"
)

// Callback payloads. The provider kind rides along in start and restart
// so the handlers do not need to consult session state to know it.
const (
	cbClose         = "close_session"
	cbStartPrefix   = "start_session_"
	cbRestartPrefix = "restart_session_"
)

func menuKeyboard(kind provider.Kind) *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Start", cbStartPrefix+string(kind)),
			tgbotapi.NewInlineKeyboardButtonData("Close", cbClose),
		),
	)
	return &kb
}

func flowKeyboard(kind provider.Kind) *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Restart", cbRestartPrefix+string(kind)),
			tgbotapi.NewInlineKeyboardButtonData("Close", cbClose),
		),
	)
	return &kb
}

func menuText(kind provider.Kind) string {
	return fmt.Sprintf(
		"<b>Welcome to the %s session string generator!</b>\n"+
			"<b>━━━━━━━━━━━━━━━━━━━━━━━━</b>\n"+
			"Nothing you enter here is stored. The login happens directly against Telegram and every credential is discarded when the flow ends.\n\n"+
			"<b>📵 Note:</b> never send the login code as-is. Pad it with extra text or spaces, otherwise Telegram revokes it.\n\n"+
			"<b>⚠️ Warning:</b> using a session string for activities that violate Telegram's terms can get the account limited or banned.",
		kind.Title(),
	)
}

const (
	textPrivateOnly = "<b>❌ The session generator only works in private chats.</b>"

	textAskAPIID   = "<b>Send your API ID</b>"
	textAskAPIHash = "<b>Send your API Hash</b>"
	textAskPhone   = "<b>Send your phone number</b>\n<b>[Example: +880xxxxxxxxxx]</b>"

	textSendingCode   = "<b>Requesting a login code…</b>"
	textCheckingCode  = "<b>Checking your login code…</b>"
	textCheckingPass  = "<b>Checking your password…</b>"
	textInvalidAPIID  = "<b>❌ Invalid API ID. Send a valid integer.</b>"
	textInvalidOTP    = "<b>❌ No digits found. Send the code embedded in text, e.g. 'AB4 BC1 GJ1 GH5 GJ4' for 41154.</b>"
	textAskPassword   = "<b>🔐 Two-factor authentication is enabled. Send your password.</b>"
	textBadCreds      = "<b>❌ The <code>API_ID</code> and <code>API_HASH</code> combination is invalid.</b>"
	textBadPhone      = "<b>❌ The phone number is invalid.</b>"
	textBadCode       = "<b>❌ The login code is wrong.</b>"
	textExpiredCode   = "<b>❌ The login code has expired.</b>"
	textBadPassword   = "<b>❌ The password is wrong.</b>"
	textCodeTimeout   = "<b>❌ No login code received in time. The session was closed.</b>"
	textPassTimeout   = "<b>❌ No password received in time. The session was closed.</b>"
	textGenericError  = "<b>❌ Something went wrong while talking to Telegram. The session was closed.</b>"
	textSavedToSelf   = "<b>✅ Done! The session string has been delivered to your Saved Messages.</b>"
	textNoActive      = "Session expired. Start again with /gotd or /proto"
	textNotYours      = "This session belongs to another user!"
	textAlreadyActive = "The flow is already running."
)

func askCodeText() string {
	return "<b>Send the login code as text, embedded like 'AB5 CD0 EF3 GH7 IJ6'.</b>\n\n" +
		"<b>⚠️ Important:</b> never send the code as-is, always pad it with extra characters.\n\n" +
		"<b>✅ Examples (your code: 123456):</b>\n" +
		"1. OTP is 12AB3456\n" +
		"2. My code: 1 2 3 4 5 6\n" +
		"3. Use AB1 BC2 GJ3 GH4 IJ5 KL6\n" +
		"4. Use 123-456 safely"
}

func closedText(kind provider.Kind) string {
	cmd := "/gotd"
	if kind == provider.KindGotgproto {
		cmd = "/proto"
	}
	return fmt.Sprintf("<b>❌ Cancelled. You can start again by sending %s</b>", cmd)
}

func savedMessageText(kind provider.Kind, sessionString string) string {
	return fmt.Sprintf(
		"<b>%s session string</b>\n"+
			"<b>━━━━━━━━━━━━━━━━━━━━━━━━</b>\n"+
			"<code>%s</code>\n"+
			"<b>━━━━━━━━━━━━━━━━━━━━━━━━</b>\n"+
			"<b>⚠️ Warning:</b> anyone holding this string controls the account. Keep it secret.\n"+
			"Terminating this login session from another device invalidates the string.",
		kind.Title(), sessionString,
	)
}

// fallbackResultText is used when delivery to Saved Messages fails; the
// string is handed over in the chat instead so the flow still completes.
func fallbackResultText(kind provider.Kind, sessionString string) string {
	return fmt.Sprintf(
		"<b>⚠️ Could not reach your Saved Messages, here is the string instead:</b>\n\n%s",
		savedMessageText(kind, sessionString),
	)
}
