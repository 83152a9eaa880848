package render

import (
	"strings"
	"testing"

	"github.com/ashureev/diffbot/internal/domain"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestHistoryGoldenEnglish(t *testing.T) {
	r := New("en")
	out := r.History([]domain.Record{
		{Result: 5.5, Description: "lunch"},
		{Result: 1234.5, Description: "rent"},
		{Result: -2, Description: "refund"},
		{Result: 1e-12, Description: "rounding"},
		{Result: -1e-11, Description: "drift"},
		{Result: 123456789.123456789, Description: "precise"},
	})

	newGoldie(t).Assert(t, "history_en", []byte(out))
}

func TestHistoryGoldenRussian(t *testing.T) {
	r := New("ru")
	out := r.History([]domain.Record{
		{Result: 5.5, Description: "обед"},
		{Result: 42, Description: "такси"},
		{Result: 1e-12, Description: "округление"},
	})

	newGoldie(t).Assert(t, "history_ru", []byte(out))
}

func TestHistoryEmpty(t *testing.T) {
	t.Parallel()

	r := New("en")
	assert.Equal(t, r.NoHistory(), r.History(nil))
	assert.Equal(t, "You have no calculation history.", r.History(nil))
}

func TestHistoryKeepsShortestDigits(t *testing.T) {
	t.Parallel()

	r := New("en")
	tests := []struct {
		value float64
		want  string
	}{
		{0.30000000000000004, "0.30000000000000004"},
		{1e20, "100,000,000,000,000,000,000"},
		{5e-324, "0." + strings.Repeat("0", 323) + "5"},
	}
	for _, tt := range tests {
		out := r.History([]domain.Record{{Result: tt.value, Description: "d"}})
		assert.Equal(t, "1. "+tt.want+"\nd", out)
	}
}

func TestLocaleFallback(t *testing.T) {
	t.Parallel()

	assert.Equal(t, language.English, New("").Language())
	assert.Equal(t, language.English, New("de").Language())
	assert.Equal(t, language.English, New("en-GB").Language())
	assert.Equal(t, language.Russian, New("ru").Language())
}

func TestDialoguePrompts(t *testing.T) {
	t.Parallel()

	r := New("en")
	assert.Equal(t, "Enter the first number:", r.AskOperand1())
	assert.Equal(t, "10\n\nEnter the second number:", r.AskOperand2(10))
	assert.Equal(t, "10 - 4.5 = 5.5\n\nEnter a description:", r.AskDescription(10, 4.5, 5.5))
	assert.Equal(t, "Invalid number, please try again. (invalid syntax)", r.InvalidNumber("invalid syntax"))

	// The immediate result is never grouped.
	assert.Equal(t, "2000 - 0.5 = 1999.5\n\nEnter a description:", r.AskDescription(2000, 0.5, 1999.5))
}

func TestRussianCatalog(t *testing.T) {
	t.Parallel()

	r := New("ru")
	assert.Equal(t, "Бот для расчёта разницы между двумя числами.", r.Menu())
	assert.Equal(t, "Введите первое число:", r.AskOperand1())
	assert.Equal(t, "Расчёт сохранён.", r.Saved())
	assert.Equal(t, "Назад", r.Button(domain.ActionCancel))
	assert.Equal(t, "Добавить расчёт", r.Button(domain.ActionStartAdd))
}

func TestButtons(t *testing.T) {
	t.Parallel()

	r := New("en")
	assert.Equal(t, "Add calculation", r.Button(domain.ActionStartAdd))
	assert.Equal(t, "History", r.Button(domain.ActionShowHistory))
	assert.Equal(t, "Clear history", r.Button(domain.ActionClearHistory))
	assert.Equal(t, "Back", r.Button(domain.ActionCancel))
}
