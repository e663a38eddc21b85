// Package storage also provides the on-disk layout of per-case artifacts.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nyaya/caseflow/internal/caseerr"
	"github.com/nyaya/caseflow/internal/models"
)

// Artifact kinds, each mapping to one subdirectory of a case directory.
const (
	KindUploads    = "uploads"
	KindJSON       = "json"
	KindCompliance = "compliance"
	KindCaseDiary  = "case_diary"
	KindFinal      = "final"
)

// Layout resolves per-case directories under a data root. Every case owns
//
//	<root>/<case_id>/uploads/
//	<root>/<case_id>/outputs/{json,compliance,case_diary,final}/
type Layout struct {
	root string
}

// NewLayout returns a Layout rooted at dataDir.
func NewLayout(dataDir string) *Layout {
	return &Layout{root: dataDir}
}

// Root returns the data root directory.
func (l *Layout) Root() string { return l.root }

// CaseDir returns the directory owning all of a case's files.
func (l *Layout) CaseDir(caseID string) string {
	return filepath.Join(l.root, caseID)
}

// KindDir returns the directory for one artifact kind, or an error for an
// unknown kind.
func (l *Layout) KindDir(caseID, kind string) (string, error) {
	switch kind {
	case KindUploads:
		return filepath.Join(l.CaseDir(caseID), "uploads"), nil
	case KindJSON, KindCompliance, KindCaseDiary, KindFinal:
		return filepath.Join(l.CaseDir(caseID), "outputs", kind), nil
	default:
		return "", fmt.Errorf("file kind %q: %w", kind, caseerr.ErrValidation)
	}
}

// EnsureCaseDirs creates the full directory tree for a case.
func (l *Layout) EnsureCaseDirs(caseID string) error {
	for _, kind := range []string{KindUploads, KindJSON, KindCompliance, KindCaseDiary, KindFinal} {
		dir, err := l.KindDir(caseID, kind)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create case directory: %w", err)
		}
	}
	return nil
}

// UploadPath returns the fixed path an uploaded document is stored at.
func (l *Layout) UploadPath(caseID string, t models.DocumentType) string {
	return filepath.Join(l.CaseDir(caseID), "uploads", t.UploadName())
}

// SkipMarkerPath returns the path of the marker recording that an optional
// document was explicitly skipped.
func (l *Layout) SkipMarkerPath(caseID string, t models.DocumentType) string {
	return filepath.Join(l.CaseDir(caseID), "uploads", string(t)+".skipped")
}

// MarkSkipped writes a skip marker for the given document type.
func (l *Layout) MarkSkipped(caseID string, t models.DocumentType) error {
	if err := os.MkdirAll(filepath.Dir(l.SkipMarkerPath(caseID, t)), 0755); err != nil {
		return err
	}
	return os.WriteFile(l.SkipMarkerPath(caseID, t), []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0644)
}

// IsSkipped reports whether a skip marker exists for the document type.
func (l *Layout) IsSkipped(caseID string, t models.DocumentType) bool {
	_, err := os.Stat(l.SkipMarkerPath(caseID, t))
	return err == nil
}

// RecordPath returns the path of a document's structured JSON record.
func (l *Layout) RecordPath(caseID string, t models.DocumentType) string {
	return filepath.Join(l.CaseDir(caseID), "outputs", KindJSON, t.RecordName())
}

// ArtifactPath returns the path of a named generated artifact of a kind.
func (l *Layout) ArtifactPath(caseID, kind, name string) (string, error) {
	dir, err := l.KindDir(caseID, kind)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// WriteArtifact writes a generated artifact, creating its directory.
func (l *Layout) WriteArtifact(caseID, kind, name string, content []byte) (string, error) {
	path, err := l.ArtifactPath(caseID, kind, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", name, err)
	}
	return path, nil
}

// ResolveWithinCase joins relPath under the case directory and rejects any
// path escaping it (".." traversal and absolute paths).
func (l *Layout) ResolveWithinCase(caseID, relPath string) (string, error) {
	caseDir := l.CaseDir(caseID)
	full := filepath.Join(caseDir, filepath.Clean("/"+relPath))
	rel, err := filepath.Rel(caseDir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes case directory: %w", caseerr.ErrValidation)
	}
	return full, nil
}

// FileEntry describes one file in a case directory listing.
type FileEntry struct {
	Name     string    `json:"name"`
	RelPath  string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// ListFiles returns the files of one artifact kind for a case, sorted by the
// directory's natural order. A missing directory yields an empty list.
func (l *Layout) ListFiles(caseID, kind string) ([]FileEntry, error) {
	dir, err := l.KindDir(caseID, kind)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []FileEntry{}, nil
		}
		return nil, err
	}
	caseDir := l.CaseDir(caseID)
	var files []FileEntry
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(caseDir, filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		files = append(files, FileEntry{
			Name:     e.Name(),
			RelPath:  filepath.ToSlash(rel),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	if files == nil {
		files = []FileEntry{}
	}
	return files, nil
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Missing or inaccessible paths are skipped (contribute 0); errors during walk are returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if info.IsDir() {
			n, err := dirSize(p)
			if err != nil {
				return 0, err
			}
			total += n
		} else {
			total += info.Size()
		}
	}
	return total, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info != nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
