// Package models defines core data structures for cases, parsed documents,
// checklists, and diary pages.
package models

import "time"

// Stage identifies how far a case has progressed through the pipeline.
type Stage string

// Pipeline stages, in order. Transitions are one-directional.
const (
	StageCreated        Stage = "created"
	StageParsed         Stage = "parsed"
	StageChecklistReady Stage = "checklist_ready"
	StageDiaryReady     Stage = "diary_ready"
	StageReportReady    Stage = "report_ready"
)

var stageOrder = []Stage{StageCreated, StageParsed, StageChecklistReady, StageDiaryReady, StageReportReady}

// Rank returns the position of the stage in the pipeline order,
// or -1 for an unknown stage.
func (s Stage) Rank() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known pipeline stage.
func (s Stage) Valid() bool { return s.Rank() >= 0 }

// Case is one investigation case. It owns a directory of uploads and
// generated artifacts, plus checklist and diary records in storage.
type Case struct {
	ID        string    `json:"id"`
	OfficerID string    `json:"officer_id"`
	Name      string    `json:"name"`
	Stage     Stage     `json:"stage"`
	CreatedAt time.Time `json:"created_at"`
}

// Upload records a file registered under a case's uploads directory,
// whether it arrived through the API or was dropped out-of-band.
type Upload struct {
	ID        string       `json:"id"`
	CaseID    string       `json:"case_id"`
	Type      DocumentType `json:"type"`
	Filename  string       `json:"filename"`
	Size      int64        `json:"size"`
	Source    string       `json:"source"` // "api" or "watch"
	CreatedAt time.Time    `json:"created_at"`
}
