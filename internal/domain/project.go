package domain

// Task is a unit of work a jornada can be attributed to.
type Task struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Project groups tasks. Only identifiers and display names matter here;
// project management itself lives in a separate system.
type Project struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Tasks []Task `json:"tasks"`
}
