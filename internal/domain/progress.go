package domain

// ModuleProgress summarizes a member's completion of one training module.
type ModuleProgress struct {
	ModuleID         string  `json:"module_id"`
	ModuleTitle      string  `json:"module_title"`
	TotalLessons     int     `json:"total_lessons"`
	CompletedLessons int     `json:"completed_lessons"`
	CompletionRate   float64 `json:"completion_rate"`
	IsCompleted      bool    `json:"is_completed"`
}

// ContinueLearning points at the most relevant next lesson for a member.
type ContinueLearning struct {
	ModuleID       string  `json:"module_id"`
	ModuleTitle    string  `json:"module_title"`
	LessonID       string  `json:"lesson_id"`
	LessonTitle    string  `json:"lesson_title"`
	CompletionRate float64 `json:"completion_rate"`
}

// ProgressSummary aggregates module progress and the continue-learning pointer.
type ProgressSummary struct {
	Modules          []ModuleProgress  `json:"modules"`
	ContinueLearning *ContinueLearning `json:"continue_learning,omitempty"`
}

// CompletedModules counts the modules marked as completed.
func (p *ProgressSummary) CompletedModules() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, m := range p.Modules {
		if m.IsCompleted {
			n++
		}
	}
	return n
}

// LessonTotals returns completed and total lesson counts across modules.
func (p *ProgressSummary) LessonTotals() (completed, total int) {
	if p == nil {
		return 0, 0
	}
	for _, m := range p.Modules {
		completed += m.CompletedLessons
		total += m.TotalLessons
	}
	return completed, total
}

// OverallRate returns the lesson completion rate in percent.
func (p *ProgressSummary) OverallRate() float64 {
	completed, total := p.LessonTotals()
	if total == 0 {
		return 0
	}
	return float64(completed) * 100 / float64(total)
}
