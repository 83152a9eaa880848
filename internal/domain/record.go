// Package domain contains core domain types for the difference bot.
package domain

import (
	"time"
)

// Record is one completed calculation saved to a user's history.
type Record struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Operand1    float64   `json:"operand1"`
	Operand2    float64   `json:"operand2"`
	Result      float64   `json:"result"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Difference returns operand1 - operand2, the only operation the bot performs.
func Difference(operand1, operand2 float64) float64 {
	return operand1 - operand2
}
