package models

import "time"

// ChecklistItem is one mandated procedural step on a case's compliance
// checklist. Items are grouped by section and keep insertion order.
type ChecklistItem struct {
	ID        int64      `json:"id"`
	CaseID    string     `json:"case_id"`
	Section   string     `json:"section"`
	Text      string     `json:"text"`
	Checked   bool       `json:"checked"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DiaryPage is one page of the generated case diary. The total page count is
// fixed when the diary is generated; pages are editable afterwards.
type DiaryPage struct {
	CaseID     string    `json:"case_id"`
	PageNumber int       `json:"page_number"`
	Content    string    `json:"content"`
	UpdatedAt  time.Time `json:"updated_at"`
}
