package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nyaya/caseflow/internal/caseerr"
	"github.com/nyaya/caseflow/internal/export"
	"github.com/nyaya/caseflow/internal/models"
	"github.com/nyaya/caseflow/internal/storage"
)

var allowedUploadExts = map[string]bool{".pdf": true, ".docx": true}

// loadOwnedCase fetches the case and verifies the requesting officer owns it.
// Foreign cases read as not found so case IDs are not probeable.
func (s *Server) loadOwnedCase(r *http.Request) (*models.Case, error) {
	officer, ok := officerFrom(r.Context())
	if !ok {
		return nil, fmt.Errorf("no authenticated officer: %w", caseerr.ErrValidation)
	}
	caseID := chi.URLParam(r, "caseID")
	cs, err := s.store.GetCase(r.Context(), caseID)
	if err != nil {
		return nil, err
	}
	if cs.OfficerID != officer.OfficerID {
		return nil, fmt.Errorf("case %s: %w", caseID, caseerr.ErrNotFound)
	}
	return cs, nil
}

type createCaseRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	var req createCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	officer, _ := officerFrom(r.Context())
	cs := &models.Case{
		ID:        uuid.NewString(),
		OfficerID: officer.OfficerID,
		Name:      strings.TrimSpace(req.Name),
		Stage:     models.StageCreated,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateCase(r.Context(), cs); err != nil {
		s.respondForError(w, err)
		return
	}
	if err := s.layout.EnsureCaseDirs(cs.ID); err != nil {
		s.respondForError(w, err)
		return
	}
	s.logger.Info("case created", zap.String("case_id", cs.ID), zap.String("officer", cs.OfficerID))
	s.respondJSON(w, http.StatusCreated, cs)
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	officer, _ := officerFrom(r.Context())
	cases, err := s.store.ListCases(r.Context(), officer.OfficerID)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"cases": cases})
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	cs, err := s.loadOwnedCase(r)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, cs)
}

// handleUpload accepts one document as multipart form data: "type" selects
// the document slot, "skip=true" marks an optional document as deliberately
// absent, "file" carries the content. Uploads land at fixed per-type paths.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	cs, err := s.loadOwnedCase(r)
	if err != nil {
		s.respondForError(w, err)
		return
	}

	maxBytes := int64(s.config.Pipeline.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid or oversized multipart body")
		return
	}

	docType := models.DocumentType(r.FormValue("type"))
	if !docType.Valid() {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown document type %q", r.FormValue("type")))
		return
	}

	if r.FormValue("skip") == "true" {
		if docType.Required() {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("document type %s cannot be skipped", docType))
			return
		}
		if err := s.layout.MarkSkipped(cs.ID, docType); err != nil {
			s.respondForError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]string{"type": string(docType), "status": "skipped"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required unless skip=true")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedUploadExts[ext] {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file extension %q (allowed: pdf, docx)", ext))
		return
	}

	if err := s.layout.EnsureCaseDirs(cs.ID); err != nil {
		s.respondForError(w, err)
		return
	}
	dst := s.layout.UploadPath(cs.ID, docType)
	out, err := os.Create(dst)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	size, err := io.Copy(out, file)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		s.respondForError(w, err)
		return
	}
	// An earlier skip marker no longer applies once a real file arrives.
	_ = os.Remove(s.layout.SkipMarkerPath(cs.ID, docType))

	upload := &models.Upload{
		ID:        uuid.NewString(),
		CaseID:    cs.ID,
		Type:      docType,
		Filename:  header.Filename,
		Size:      size,
		Source:    "api",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateUpload(r.Context(), upload); err != nil {
		s.respondForError(w, err)
		return
	}
	s.logger.Info("document uploaded",
		zap.String("case_id", cs.ID),
		zap.String("type", string(docType)),
		zap.Int64("size", size))
	s.respondJSON(w, http.StatusCreated, upload)
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	cs, err := s.loadOwnedCase(r)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	result, err := s.coord.RunParse(r.Context(), cs.ID)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGenerateChecklist(w http.ResponseWriter, r *http.Request) {
	cs, err := s.loadOwnedCase(r)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	result, err := s.coord.RunChecklist(r.Context(), cs.ID)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetChecklist(w http.ResponseWriter, r *http.Request) {
	cs, err := s.loadOwnedCase(r)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	items, err := s.store.ListChecklist(r.Context(), cs.ID)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

type updateChecklistRequest struct {
	Checked *bool   `json:"checked,omitempty"`
	Text    *string `json:"text,omitempty"`
}

func (s *Server) handleUpdateChecklistItem(w http.ResponseWriter, r *http.Request) {
	cs, err := s.loadOwnedCase(r)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid checklist item id")
		return
	}
	var req updateChecklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Checked == nil && req.Text == nil {
		s.respondError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	item, err := s.store.GetChecklistItem(r.Context(), itemID)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	if item.CaseID != cs.ID {
		s.respondError(w, http.StatusNotFound, "checklist item not found")
		return
	}
	if req.Checked != nil {
		item.Checked = *req.Checked
	}
	if req.Text != nil {
		if strings.TrimSpace(*req.Text) == "" {
			s.respondError(w, http.StatusBadRequest, "text cannot be empty")
			return
		}
		item.Text = strings.TrimSpace(*req.Text)
	}
	if err := s.store.UpdateChecklistItem(r.Context(), item); err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleExportChecklist(w http.ResponseWriter, r *http.Request) {
	cs, err := s.loadOwnedCase(r)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	items, err := s.store.ListChecklist(r.Context(), cs.ID)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	if len(items) == 0 {
		s.respondError(w, http.StatusConflict, "checklist has not been generated")
		return
	}
	data, err := export.ChecklistXLSX(items)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="compliance_checklist.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleGenerateDiary(w http.ResponseWriter, r *http.Request) {
	cs, err := s.loadOwnedCase(r)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	result, err := s.coord.RunDiary(r.Context(), cs.ID)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) diaryPageParam(r *http.Request) (int, error) {
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil || page < 1 {
		return 0, fmt.Errorf("invalid diary page number: %w", caseerr.ErrValidation)
	}
	return page, nil
}

func (s *Server) handleGetDiaryPage(w http.ResponseWriter, r *http.Request) {
	cs, err := s.loadOwnedCase(r)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	pageNum, err := s.diaryPageParam(r)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	page, err := s.store.GetDiaryPage(r.Context(), cs.ID, pageNum)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	total, err := s.store.CountDiaryPages(r.Context(), cs.ID)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"page": page, "total_pages": total})
}

type updateDiaryRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleUpdateDiaryPage(w http.ResponseWriter, r *http.Request) {
	cs, err := s.loadOwnedCase(r)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	pageNum, err := s.diaryPageParam(r)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	var req updateDiaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	page, err := s.store.GetDiaryPage(r.Context(), cs.ID, pageNum)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	page.Content = req.Content
	page.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateDiaryPage(r.Context(), page); err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, page)
}

// handleNextDiaryPage returns the page after the given one; past the last
// page it responds 404. The page count is fixed at generation time.
func (s *Server) handleNextDiaryPage(w http.ResponseWriter, r *http.Request) {
	cs, err := s.loadOwnedCase(r)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	pageNum, err := s.diaryPageParam(r)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	total, err := s.store.CountDiaryPages(r.Context(), cs.ID)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	if pageNum+1 > total {
		s.respondError(w, http.StatusNotFound, "no further diary pages")
		return
	}
	page, err := s.store.GetDiaryPage(r.Context(), cs.ID, pageNum+1)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"page": page, "total_pages": total})
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	cs, err := s.loadOwnedCase(r)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	result, err := s.coord.RunReport(r.Context(), cs.ID)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	cs, err := s.loadOwnedCase(r)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	if s.index == nil {
		s.respondError(w, http.StatusNotImplemented, "search is not enabled")
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	results, err := s.index.Search(r.Context(), cs.ID, req.Query, req.Limit)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseCount, err := s.store.CountCases(ctx)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	itemCount, err := s.store.CountChecklistItems(ctx)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	resp := map[string]any{
		"cases":           caseCount,
		"checklist_items": itemCount,
	}
	if s.index != nil {
		if n, err := s.index.DocCount(); err == nil {
			resp["indexed_artifacts"] = n
		}
	}
	if diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.DataDir,
		s.config.Storage.SearchIndexPath,
	); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = map[string]any{
		"data_dir":        s.config.Storage.DataDir,
		"database_path":   s.config.Storage.DatabasePath,
		"page_char_limit": s.config.Pipeline.PageCharLimit,
		"max_upload_mb":   s.config.Pipeline.MaxUploadMB,
		"watch_enabled":   s.config.Watch.Enabled,
		"ocr_remote":      s.config.OCR.APIKey != "",
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
