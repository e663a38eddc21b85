// Package diary assembles the case diary from parsed records and checklist
// state, split into editable pages.
package diary

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/nyaya/caseflow/internal/caseerr"
	"github.com/nyaya/caseflow/internal/models"
)

const notAvailable = "[N/A]"

// Assembler builds diary pages. PageCharLimit bounds page size; pages break
// on section boundaries where possible.
type Assembler struct {
	pageCharLimit int
	logger        *zap.Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) AssemblerOption {
	return func(a *Assembler) { a.logger = l }
}

// NewAssembler returns an Assembler with the given page character limit.
func NewAssembler(pageCharLimit int, opts ...AssemblerOption) *Assembler {
	a := &Assembler{pageCharLimit: pageCharLimit}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// section is one diary unit; pagination prefers breaking between sections.
type section struct {
	text string
}

// Assemble builds the diary for a case. The checklist must have been
// generated first; its state feeds the compliance summary section.
func (a *Assembler) Assemble(caseID string, docs map[models.DocumentType]*models.ParsedDocument, checklist []models.ChecklistItem, now time.Time) ([]models.DiaryPage, error) {
	if len(checklist) == 0 {
		return nil, fmt.Errorf("compliance checklist has not been generated: %w", caseerr.ErrMissingDependency)
	}
	fir := docs[models.DocFIR]
	stmt := docs[models.DocStatement]
	if fir == nil || stmt == nil {
		return nil, fmt.Errorf("parse stage has not produced fir and statement records: %w", caseerr.ErrMissingDependency)
	}
	victimMed := docs[models.DocVictimMedical]
	accusedMed := docs[models.DocAccusedMedical]

	sections := []section{
		{text: "CASE DIARY\n\n" +
			"Date: " + now.Format("2006-01-02 15:04:05") + "\n" +
			"Police Station: " + orNA(fir.Nested("fir_details", "ps")) + "\n" +
			"Crime No: " + orNA(fir.Nested("fir_details", "fir_no")) + "\n" +
			"--------------------------------------\n"},
		{text: "1. Complainant/Informant Details (from FIR):\n" +
			"   Name: " + orNA(fir.Nested("complainant_informant", "name")) + "\n" +
			"   Address: " + orNA(fir.Nested("complainant_informant", "present_address")) + "\n"},
		{text: "2. Accused Details (from FIR):\n" +
			"   Name: " + orNA(fir.Nested("accused_details", "name")) + "\n" +
			"   Address: " + orNA(fir.Nested("accused_details", "present_address")) + "\n"},
		{text: "3. Brief Facts (from FIR):\n   " + orNA(fir.Str("brief_facts")) + "\n"},
		{text: "4. Victim's Statement Summary:\n   " + orNA(stmt.Str("narrative")) + "\n"},
		{text: "5. Medical Examination Summary (Victim):\n   Provisional Opinion: " +
			medicalValue(victimMed, "provisional_medical_opinion") + "\n"},
		{text: "6. Medical Examination Summary (Accused):\n   Provisional Opinion: " +
			medicalValue(accusedMed, "opinion") + "\n"},
		{text: complianceSummary(checklist)},
	}

	pages := a.paginate(caseID, sections, now)
	if a.logger != nil {
		a.logger.Debug("assembled case diary", zap.String("case_id", caseID), zap.Int("pages", len(pages)))
	}
	return pages, nil
}

// FullText joins diary pages back into the single-file rendering written to
// outputs/case_diary/.
func FullText(pages []models.DiaryPage) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, p.Content)
	}
	return strings.Join(parts, "\n")
}

// paginate packs sections into pages, breaking between sections when adding
// one would exceed the limit, and hard-splitting any single oversized section.
func (a *Assembler) paginate(caseID string, sections []section, now time.Time) []models.DiaryPage {
	var pages []models.DiaryPage
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		pages = append(pages, models.DiaryPage{
			CaseID:     caseID,
			PageNumber: len(pages) + 1,
			Content:    current.String(),
			UpdatedAt:  now,
		})
		current.Reset()
	}

	for _, sec := range sections {
		text := sec.text
		if current.Len() > 0 && current.Len()+len(text)+1 > a.pageCharLimit {
			flush()
		}
		for len(text) > a.pageCharLimit {
			cut := splitPoint(text, a.pageCharLimit)
			current.WriteString(text[:cut])
			flush()
			text = text[cut:]
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(text)
	}
	flush()

	if len(pages) == 0 {
		pages = append(pages, models.DiaryPage{CaseID: caseID, PageNumber: 1, UpdatedAt: now})
	}
	return pages
}

// splitPoint finds a whitespace break at or before limit, falling back to a
// hard cut for unbroken runs. The hard cut backs up to a rune boundary so no
// page ends with a torn multibyte character; when even the first rune exceeds
// limit, the cut lands after it to keep pagination advancing.
func splitPoint(text string, limit int) int {
	if idx := strings.LastIndexAny(text[:limit], " \n"); idx > 0 {
		return idx + 1
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == 0 {
		_, size := utf8.DecodeRuneInString(text)
		return size
	}
	return cut
}

func complianceSummary(checklist []models.ChecklistItem) string {
	var done, total int
	var pending []string
	for _, item := range checklist {
		total++
		if item.Checked {
			done++
		} else if len(pending) < 5 {
			pending = append(pending, item.Text)
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "7. Compliance Summary:\n   Procedures completed: %d of %d\n", done, total)
	if len(pending) > 0 {
		b.WriteString("   Pending:\n")
		for _, p := range pending {
			b.WriteString("   - " + p + "\n")
		}
	}
	return b.String()
}

func orNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return notAvailable
	}
	return v
}

func medicalValue(doc *models.ParsedDocument, key string) string {
	if doc == nil || doc.Skipped {
		return "[Not examined / report skipped]"
	}
	return orNA(doc.Str(key))
}
