package model

// Result is the authoritative score returned when a session is finalized.
type Result struct {
	CorrectCount int     `json:"correct_count" validate:"gte=0"`
	TotalCount   int     `json:"total_count" validate:"gte=0"`
	Percentage   float64 `json:"percentage" validate:"gte=0,lte=100"`
	ResultText   string  `json:"result_text"`
}
