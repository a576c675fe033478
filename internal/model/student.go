package model

// Group is a study group students belong to.
type Group struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Student is a student as listed in the public directory.
type Student struct {
	ID       int    `json:"id"`
	GroupID  int    `json:"group_id"`
	FullName string `json:"full_name"`
}
