package telegram

import (
	"strings"
	"unicode/utf8"

	"github.com/ashureev/diffbot/internal/domain"
	"github.com/ashureev/diffbot/internal/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// CallbackPrefix namespaces the callback data of every button the bot sends.
const CallbackPrefix = "tg"

// MaxMessageLength is the Telegram limit for a single text message.
const MaxMessageLength = 4096

// CallbackData encodes an action as button callback data, e.g. "tg:-1".
func CallbackData(a domain.Action) string {
	return CallbackPrefix + ":" + a.Code()
}

// ParseCallbackData decodes callback data produced by CallbackData.
func ParseCallbackData(data string) (domain.Action, bool) {
	prefix, code, ok := strings.Cut(data, ":")
	if !ok || prefix != CallbackPrefix {
		return 0, false
	}
	a, err := domain.ParseAction(code)
	if err != nil || a.Code() != code {
		return 0, false
	}
	return a, true
}

// inlineKeyboard builds the markup for kb, or nil when no buttons are attached.
func inlineKeyboard(r *render.Renderer, kb domain.Keyboard) *tgbotapi.InlineKeyboardMarkup {
	button := func(a domain.Action) tgbotapi.InlineKeyboardButton {
		return tgbotapi.NewInlineKeyboardButtonData(r.Button(a), CallbackData(a))
	}

	var markup tgbotapi.InlineKeyboardMarkup
	switch kb {
	case domain.KeyboardCancel:
		markup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(button(domain.ActionCancel)),
		)
	case domain.KeyboardMenu:
		markup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(button(domain.ActionStartAdd)),
			tgbotapi.NewInlineKeyboardRow(button(domain.ActionShowHistory)),
			tgbotapi.NewInlineKeyboardRow(button(domain.ActionClearHistory)),
		)
	default:
		return nil
	}
	return &markup
}

// splitText breaks text into chunks of at most limit runes, preferring to cut
// at blank lines, then at line breaks.
func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for utf8.RuneCountInString(text) > limit {
		head := string([]rune(text)[:limit])
		cut := strings.LastIndex(head, "\n\n")
		sep := 2
		if cut <= 0 {
			cut = strings.LastIndex(head, "\n")
			sep = 1
		}
		if cut <= 0 {
			cut = len(head)
			sep = 0
		}
		chunks = append(chunks, text[:cut])
		text = text[cut+sep:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
