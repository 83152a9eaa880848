package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys double as the English text.
const (
	msgMenu           = "Bot for calculating the difference between two numbers."
	msgAskOperand1    = "Enter the first number:"
	msgAskOperand2    = "%s\n\nEnter the second number:"
	msgAskDescription = "%s - %s = %s\n\nEnter a description:"
	msgInvalidNumber  = "Invalid number, please try again. (%s)"
	msgSaved          = "Calculation saved."
	msgSaveFailed     = "Could not save the calculation. Send the description again to retry."
	msgNoHistory      = "You have no calculation history."
	msgHistoryFailed  = "Could not load your history. Please try again later."
	msgCleared        = "Your results have been cleared."
	msgClearFailed    = "Could not clear your history. Please try again later."

	btnAdd     = "Add calculation"
	btnHistory = "History"
	btnClear   = "Clear history"
	btnBack    = "Back"
)

var russian = map[string]string{
	msgMenu:           "Бот для расчёта разницы между двумя числами.",
	msgAskOperand1:    "Введите первое число:",
	msgAskOperand2:    "%s\n\nВведите второе число:",
	msgAskDescription: "%s - %s = %s\n\nВведите описание:",
	msgInvalidNumber:  "Неверное число, попробуйте ещё раз. (%s)",
	msgSaved:          "Расчёт сохранён.",
	msgSaveFailed:     "Не удалось сохранить расчёт. Отправьте описание ещё раз.",
	msgNoHistory:      "У вас нет истории расчётов.",
	msgHistoryFailed:  "Не удалось загрузить историю. Попробуйте позже.",
	msgCleared:        "Ваши результаты очищены.",
	msgClearFailed:    "Не удалось очистить историю. Попробуйте позже.",

	btnAdd:     "Добавить расчёт",
	btnHistory: "История",
	btnClear:   "Очистить историю",
	btnBack:    "Назад",
}

var supported = []language.Tag{language.English, language.Russian}

func init() {
	for key, text := range russian {
		if err := message.SetString(language.Russian, key, text); err != nil {
			panic("render: register russian catalog: " + err.Error())
		}
	}
}
