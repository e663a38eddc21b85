// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nyaya/caseflow/internal/caseerr"
	"github.com/nyaya/caseflow/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cases (
		id TEXT PRIMARY KEY,
		officer_id TEXT NOT NULL,
		name TEXT NOT NULL,
		stage TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_cases_officer ON cases(officer_id);

	CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL,
		doc_type TEXT NOT NULL,
		filename TEXT NOT NULL,
		size INTEGER NOT NULL,
		source TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (case_id) REFERENCES cases(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_uploads_case ON uploads(case_id);

	CREATE TABLE IF NOT EXISTS checklist_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		case_id TEXT NOT NULL,
		section TEXT NOT NULL,
		text TEXT NOT NULL,
		checked INTEGER NOT NULL DEFAULT 0,
		deadline TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (case_id) REFERENCES cases(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_checklist_case ON checklist_items(case_id);

	CREATE TABLE IF NOT EXISTS diary_pages (
		case_id TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		content TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (case_id, page_number),
		FOREIGN KEY (case_id) REFERENCES cases(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateCase inserts a case.
func (s *SQLiteStorage) CreateCase(ctx context.Context, c *models.Case) error {
	if c.Stage == "" {
		c.Stage = models.StageCreated
	}
	c.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cases (id, officer_id, name, stage, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.OfficerID, c.Name, string(c.Stage), c.CreatedAt,
	)
	return err
}

// GetCase returns a case by ID.
func (s *SQLiteStorage) GetCase(ctx context.Context, id string) (*models.Case, error) {
	var c models.Case
	var stage string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, officer_id, name, stage, created_at FROM cases WHERE id = ?`, id,
	).Scan(&c.ID, &c.OfficerID, &c.Name, &stage, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("case %s: %w", id, caseerr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	c.Stage = models.Stage(stage)
	return &c, nil
}

// ListCases returns all cases owned by the given officer, newest first.
func (s *SQLiteStorage) ListCases(ctx context.Context, officerID string) ([]*models.Case, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, officer_id, name, stage, created_at
		 FROM cases WHERE officer_id = ? ORDER BY created_at DESC`, officerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*models.Case
	for rows.Next() {
		var c models.Case
		var stage string
		if err := rows.Scan(&c.ID, &c.OfficerID, &c.Name, &stage, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Stage = models.Stage(stage)
		cases = append(cases, &c)
	}
	return cases, rows.Err()
}

// UpdateCaseStage advances a case to the given stage.
func (s *SQLiteStorage) UpdateCaseStage(ctx context.Context, id string, stage models.Stage) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE cases SET stage = ? WHERE id = ?`, string(stage), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("case %s: %w", id, caseerr.ErrNotFound)
	}
	return nil
}

// CreateUpload records an upload registration.
func (s *SQLiteStorage) CreateUpload(ctx context.Context, u *models.Upload) error {
	u.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (id, case_id, doc_type, filename, size, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.CaseID, string(u.Type), u.Filename, u.Size, u.Source, u.CreatedAt,
	)
	return err
}

// ListUploads returns upload registrations for a case in insertion order.
func (s *SQLiteStorage) ListUploads(ctx context.Context, caseID string) ([]*models.Upload, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, case_id, doc_type, filename, size, source, created_at
		 FROM uploads WHERE case_id = ? ORDER BY created_at`, caseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []*models.Upload
	for rows.Next() {
		var u models.Upload
		var docType string
		if err := rows.Scan(&u.ID, &u.CaseID, &docType, &u.Filename, &u.Size, &u.Source, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Type = models.DocumentType(docType)
		uploads = append(uploads, &u)
	}
	return uploads, rows.Err()
}

// ReplaceChecklist removes any existing checklist for the case and inserts
// the given items in order, in one transaction. Item IDs are assigned.
func (s *SQLiteStorage) ReplaceChecklist(ctx context.Context, caseID string, items []*models.ChecklistItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM checklist_items WHERE case_id = ?`, caseID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO checklist_items (case_id, section, text, checked, deadline, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, item := range items {
		item.CaseID = caseID
		item.CreatedAt = now
		item.UpdatedAt = now
		res, err := stmt.ExecContext(ctx, item.CaseID, item.Section, item.Text, item.Checked, item.Deadline, item.CreatedAt, item.UpdatedAt)
		if err != nil {
			return err
		}
		item.ID, _ = res.LastInsertId()
	}
	return tx.Commit()
}

// ListChecklist returns the case's checklist items in insertion order.
func (s *SQLiteStorage) ListChecklist(ctx context.Context, caseID string) ([]*models.ChecklistItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, case_id, section, text, checked, deadline, created_at, updated_at
		 FROM checklist_items WHERE case_id = ? ORDER BY id`, caseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.ChecklistItem
	for rows.Next() {
		item, err := scanChecklistItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetChecklistItem returns a checklist item by ID.
func (s *SQLiteStorage) GetChecklistItem(ctx context.Context, id int64) (*models.ChecklistItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, case_id, section, text, checked, deadline, created_at, updated_at
		 FROM checklist_items WHERE id = ?`, id,
	)
	item, err := scanChecklistItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("checklist item %d: %w", id, caseerr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func scanChecklistItem(scan func(dest ...any) error) (*models.ChecklistItem, error) {
	var item models.ChecklistItem
	var deadline sql.NullTime
	if err := scan(&item.ID, &item.CaseID, &item.Section, &item.Text, &item.Checked, &deadline, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	if deadline.Valid {
		item.Deadline = &deadline.Time
	}
	return &item, nil
}

// UpdateChecklistItem persists a completion toggle or text edit.
func (s *SQLiteStorage) UpdateChecklistItem(ctx context.Context, item *models.ChecklistItem) error {
	item.UpdatedAt = time.Now()
	result, err := s.db.ExecContext(ctx,
		`UPDATE checklist_items SET checked = ?, text = ?, updated_at = ? WHERE id = ?`,
		item.Checked, item.Text, item.UpdatedAt, item.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("checklist item %d: %w", item.ID, caseerr.ErrNotFound)
	}
	return nil
}

// ReplaceDiaryPages removes any existing diary for the case and inserts the
// given pages, in one transaction.
func (s *SQLiteStorage) ReplaceDiaryPages(ctx context.Context, caseID string, pages []*models.DiaryPage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM diary_pages WHERE case_id = ?`, caseID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO diary_pages (case_id, page_number, content, updated_at) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, page := range pages {
		page.CaseID = caseID
		page.UpdatedAt = now
		if _, err := stmt.ExecContext(ctx, page.CaseID, page.PageNumber, page.Content, page.UpdatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetDiaryPage returns a diary page by number.
func (s *SQLiteStorage) GetDiaryPage(ctx context.Context, caseID string, pageNumber int) (*models.DiaryPage, error) {
	var page models.DiaryPage
	err := s.db.QueryRowContext(ctx,
		`SELECT case_id, page_number, content, updated_at
		 FROM diary_pages WHERE case_id = ? AND page_number = ?`, caseID, pageNumber,
	).Scan(&page.CaseID, &page.PageNumber, &page.Content, &page.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("diary page %d: %w", pageNumber, caseerr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// UpdateDiaryPage persists a manual page edit.
func (s *SQLiteStorage) UpdateDiaryPage(ctx context.Context, page *models.DiaryPage) error {
	page.UpdatedAt = time.Now()
	result, err := s.db.ExecContext(ctx,
		`UPDATE diary_pages SET content = ?, updated_at = ? WHERE case_id = ? AND page_number = ?`,
		page.Content, page.UpdatedAt, page.CaseID, page.PageNumber,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("diary page %d: %w", page.PageNumber, caseerr.ErrNotFound)
	}
	return nil
}

// CountDiaryPages returns the diary's fixed page count for a case.
func (s *SQLiteStorage) CountDiaryPages(ctx context.Context, caseID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM diary_pages WHERE case_id = ?`, caseID).Scan(&count)
	return count, err
}

// CountCases returns the total number of cases.
func (s *SQLiteStorage) CountCases(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cases`).Scan(&count)
	return count, err
}

// CountChecklistItems returns the total number of checklist items.
func (s *SQLiteStorage) CountChecklistItems(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM checklist_items`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
