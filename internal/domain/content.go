package domain

// Module is a published training module.
type Module struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Position    int      `json:"position"`
	Lessons     []Lesson `json:"-"`
}

// Lesson is a single lesson inside a module.
type Lesson struct {
	ID          string `json:"id"`
	ModuleID    string `json:"module_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Position    int    `json:"position"`
}
