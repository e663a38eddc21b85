// Package storage defines the persistence interface for cases, checklist
// items, diary pages, and uploads.
package storage

import (
	"context"

	"github.com/nyaya/caseflow/internal/models"
)

// Storage defines case record persistence operations. Generated artifacts
// live on disk (see Layout); this interface covers the relational records.
type Storage interface {
	// Case operations
	CreateCase(ctx context.Context, c *models.Case) error
	GetCase(ctx context.Context, id string) (*models.Case, error)
	ListCases(ctx context.Context, officerID string) ([]*models.Case, error)
	UpdateCaseStage(ctx context.Context, id string, stage models.Stage) error

	// Upload registrations
	CreateUpload(ctx context.Context, u *models.Upload) error
	ListUploads(ctx context.Context, caseID string) ([]*models.Upload, error)

	// Checklist operations
	ReplaceChecklist(ctx context.Context, caseID string, items []*models.ChecklistItem) error
	ListChecklist(ctx context.Context, caseID string) ([]*models.ChecklistItem, error)
	GetChecklistItem(ctx context.Context, id int64) (*models.ChecklistItem, error)
	UpdateChecklistItem(ctx context.Context, item *models.ChecklistItem) error

	// Diary operations
	ReplaceDiaryPages(ctx context.Context, caseID string, pages []*models.DiaryPage) error
	GetDiaryPage(ctx context.Context, caseID string, pageNumber int) (*models.DiaryPage, error)
	UpdateDiaryPage(ctx context.Context, page *models.DiaryPage) error
	CountDiaryPages(ctx context.Context, caseID string) (int, error)

	// Stats
	CountCases(ctx context.Context) (int64, error)
	CountChecklistItems(ctx context.Context) (int64, error)

	Close() error
}
