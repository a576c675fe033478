package model

// Option is one selectable answer of a question.
type Option struct {
	ID   int    `json:"id" validate:"required"`
	Text string `json:"text" validate:"required"`
}

// Question is a single test question as served to a student (no correct answer).
type Question struct {
	ID      int      `json:"id" validate:"required"`
	Text    string   `json:"text" validate:"required"`
	Options []Option `json:"options" validate:"required,min=1,dive"`
}

// OptionLetter returns the display letter for the option at index i (A, B, C, ...).
func OptionLetter(i int) string {
	if i < 0 || i >= 26 {
		return "?"
	}
	return string(rune('A' + i))
}
