// Package parser converts uploaded case documents into structured records.
// Each document type has a field extractor working over text obtained from
// the OCR adapter; outputs are JSON records consumed by later stages.
package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/nyaya/caseflow/internal/caseerr"
	"github.com/nyaya/caseflow/internal/models"
	"github.com/nyaya/caseflow/internal/ocr"
	"github.com/nyaya/caseflow/internal/storage"
)

// Service runs the parse stage for a case.
type Service struct {
	layout *storage.Layout
	source ocr.TextSource
	logger *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService returns a parse service reading uploads via layout and
// extracting text through source.
func NewService(layout *storage.Layout, source ocr.TextSource, opts ...ServiceOption) *Service {
	s := &Service{layout: layout, source: source}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// extractFields dispatches to the per-type field extractor.
func extractFields(t models.DocumentType, text string) (map[string]any, error) {
	switch t {
	case models.DocFIR:
		return parseFIR(text), nil
	case models.DocStatement:
		return parseStatement(text), nil
	case models.DocVictimMedical, models.DocAccusedMedical:
		return parseMedical(text)
	default:
		return nil, fmt.Errorf("document type %q: %w", t, caseerr.ErrValidation)
	}
}

// ParseCase parses every uploaded document of the case, writing one JSON
// record per document into outputs/json/. Optional documents that are absent
// or skipped degrade to a skipped record; a missing or unparseable required
// document fails the stage after the full status list is assembled.
func (s *Service) ParseCase(ctx context.Context, caseID string) (*models.ParseResult, error) {
	result := &models.ParseResult{}
	var stageErr error

	for _, t := range models.AllDocumentTypes {
		status := s.parseOne(ctx, caseID, t, result)
		result.Documents = append(result.Documents, status)
		if status.Status == "error" && t.Required() && stageErr == nil {
			if status.Error != "" {
				stageErr = fmt.Errorf("%s: %s: %w", t, status.Error, caseerr.ErrParse)
			} else {
				stageErr = fmt.Errorf("%s: %w", t, caseerr.ErrParse)
			}
		}
		if status.Status == "missing" && t.Required() && stageErr == nil {
			stageErr = fmt.Errorf("required document %s not uploaded: %w", t, caseerr.ErrValidation)
		}
	}
	return result, stageErr
}

func (s *Service) parseOne(ctx context.Context, caseID string, t models.DocumentType, result *models.ParseResult) models.DocumentStatus {
	uploadPath := s.layout.UploadPath(caseID, t)

	if s.layout.IsSkipped(caseID, t) && !t.Required() {
		result.Logs = append(result.Logs, fmt.Sprintf("%s skipped by request", t.UploadName()))
		if err := s.writeRecord(caseID, &models.ParsedDocument{Type: t, Skipped: true, Fields: map[string]any{}}); err != nil {
			return models.DocumentStatus{Type: t, Status: "error", Error: err.Error()}
		}
		return models.DocumentStatus{Type: t, Status: "skipped", RecordFile: t.RecordName()}
	}

	if _, err := os.Stat(uploadPath); err != nil {
		if !t.Required() {
			result.Logs = append(result.Logs, fmt.Sprintf("%s not found (optional)", t.UploadName()))
			if err := s.writeRecord(caseID, &models.ParsedDocument{Type: t, Skipped: true, Fields: map[string]any{}}); err != nil {
				return models.DocumentStatus{Type: t, Status: "error", Error: err.Error()}
			}
			return models.DocumentStatus{Type: t, Status: "skipped", RecordFile: t.RecordName()}
		}
		result.Logs = append(result.Logs, fmt.Sprintf("required file %s not found", t.UploadName()))
		return models.DocumentStatus{Type: t, Status: "missing"}
	}

	result.Logs = append(result.Logs, fmt.Sprintf("processing %s", t.UploadName()))
	text, err := s.source.Text(ctx, uploadPath)
	if err != nil {
		result.Logs = append(result.Logs, fmt.Sprintf("failed to parse %s: %v", t.UploadName(), err))
		return models.DocumentStatus{Type: t, Status: "error", Error: err.Error()}
	}

	fields, err := extractFields(t, text)
	if err != nil {
		result.Logs = append(result.Logs, fmt.Sprintf("failed to parse %s: %v", t.UploadName(), err))
		return models.DocumentStatus{Type: t, Status: "error", Error: err.Error()}
	}

	doc := &models.ParsedDocument{Type: t, Fields: fields}
	if err := s.writeRecord(caseID, doc); err != nil {
		return models.DocumentStatus{Type: t, Status: "error", Error: err.Error()}
	}
	if s.logger != nil {
		s.logger.Debug("parsed document", zap.String("case_id", caseID), zap.String("type", string(t)))
	}
	result.Logs = append(result.Logs, fmt.Sprintf("generated %s", t.RecordName()))
	return models.DocumentStatus{Type: t, Status: "parsed", RecordFile: t.RecordName()}
}

func (s *Service) writeRecord(caseID string, doc *models.ParsedDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.layout.WriteArtifact(caseID, storage.KindJSON, doc.Type.RecordName(), data)
	return err
}

// LoadDocuments reads the structured records of a case from disk. Absent
// records map to nil entries; malformed records are an error.
func LoadDocuments(layout *storage.Layout, caseID string) (map[models.DocumentType]*models.ParsedDocument, error) {
	docs := make(map[models.DocumentType]*models.ParsedDocument, len(models.AllDocumentTypes))
	for _, t := range models.AllDocumentTypes {
		data, err := os.ReadFile(layout.RecordPath(caseID, t))
		if err != nil {
			if os.IsNotExist(err) {
				docs[t] = nil
				continue
			}
			return nil, err
		}
		var doc models.ParsedDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("record %s: %w", t.RecordName(), err)
		}
		docs[t] = &doc
	}
	return docs, nil
}
