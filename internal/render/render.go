// Package render turns dialogue outcomes and stored records into chat text.
package render

import (
	"strconv"
	"strings"

	"github.com/ashureev/diffbot/internal/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Renderer produces localized message text.
type Renderer struct {
	tag language.Tag
	p   *message.Printer
}

var matcher = language.NewMatcher(supported)

// New returns a renderer for the locale, such as "en" or "ru".
// Unknown locales fall back to English.
func New(locale string) *Renderer {
	tag := language.English
	if t, err := language.Parse(locale); err == nil {
		_, idx, conf := matcher.Match(t)
		if conf != language.No {
			tag = supported[idx]
		}
	}
	return &Renderer{tag: tag, p: message.NewPrinter(tag)}
}

// Language returns the tag the renderer was resolved to.
func (r *Renderer) Language() language.Tag {
	return r.tag
}

func (r *Renderer) Menu() string        { return r.p.Sprintf(msgMenu) }
func (r *Renderer) AskOperand1() string { return r.p.Sprintf(msgAskOperand1) }
func (r *Renderer) Saved() string       { return r.p.Sprintf(msgSaved) }
func (r *Renderer) SaveFailed() string  { return r.p.Sprintf(msgSaveFailed) }
func (r *Renderer) NoHistory() string   { return r.p.Sprintf(msgNoHistory) }
func (r *Renderer) Cleared() string     { return r.p.Sprintf(msgCleared) }

func (r *Renderer) HistoryFailed() string { return r.p.Sprintf(msgHistoryFailed) }
func (r *Renderer) ClearFailed() string   { return r.p.Sprintf(msgClearFailed) }

// AskOperand2 echoes the first number and asks for the second.
func (r *Renderer) AskOperand2(operand1 float64) string {
	return r.p.Sprintf(msgAskOperand2, plain(operand1))
}

// AskDescription shows the computed difference and asks for a label.
// Numbers here are printed as entered, without grouping.
func (r *Renderer) AskDescription(operand1, operand2, result float64) string {
	return r.p.Sprintf(msgAskDescription, plain(operand1), plain(operand2), plain(result))
}

// InvalidNumber includes the parse failure reason.
func (r *Renderer) InvalidNumber(reason string) string {
	return r.p.Sprintf(msgInvalidNumber, reason)
}

// History renders a numbered list of results and descriptions. Results use
// the locale's digit grouping.
func (r *Renderer) History(records []domain.Record) string {
	if len(records) == 0 {
		return r.NoHistory()
	}

	blocks := make([]string, 0, len(records))
	for i, rec := range records {
		blocks = append(blocks, r.p.Sprintf("%d. %v\n%s", i+1, grouped(rec.Result), rec.Description))
	}
	return strings.Join(blocks, "\n\n")
}

// Button returns the label of a menu button.
func (r *Renderer) Button(a domain.Action) string {
	switch a {
	case domain.ActionStartAdd:
		return r.p.Sprintf(btnAdd)
	case domain.ActionShowHistory:
		return r.p.Sprintf(btnHistory)
	case domain.ActionClearHistory:
		return r.p.Sprintf(btnClear)
	case domain.ActionCancel:
		return r.p.Sprintf(btnBack)
	default:
		return ""
	}
}

// grouped formats v with exactly the fraction digits of its shortest
// representation, so grouping never rounds the value.
func grouped(v float64) number.Formatter {
	frac := 0
	if s := plain(v); strings.IndexByte(s, '.') >= 0 {
		frac = len(s) - strings.IndexByte(s, '.') - 1
	}
	return number.Decimal(v, number.MinFractionDigits(frac), number.MaxFractionDigits(frac))
}

func plain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
