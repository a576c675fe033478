package model

// Subject represents an academic subject tests are grouped under.
type Subject struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
