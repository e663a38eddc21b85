// Package report compiles the final investigation report and the chargesheet
// draft from the diary, checklist, and parsed records.
package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nyaya/caseflow/internal/caseerr"
	"github.com/nyaya/caseflow/internal/models"
)

const notAvailable = "[N/A]"

// evidenceKeywords are narrative mentions that should correspond to a seized
// sample or a completed evidence procedure. Mismatches produce advisory
// flags, never failures.
var evidenceKeywords = []string{"weapon", "knife", "blood", "clothing", "clothes", "bottle", "rope", "phone"}

var dateRe = regexp.MustCompile(`(\d{2})[-/.](\d{2})[-/.](\d{4})`)

// Result is the report stage output.
type Result struct {
	FinalReport string
	Chargesheet string
	Flags       []string
}

// Compiler builds the final report and chargesheet.
type Compiler struct {
	logger *zap.Logger
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) CompilerOption {
	return func(c *Compiler) { c.logger = l }
}

// NewCompiler returns a report Compiler.
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile synthesizes the final report and fills the chargesheet template.
// The diary text must exist; it is the narrative backbone of both outputs.
func (c *Compiler) Compile(caseID, diaryText string, docs map[models.DocumentType]*models.ParsedDocument, checklist []models.ChecklistItem, now time.Time) (*Result, error) {
	if strings.TrimSpace(diaryText) == "" {
		return nil, fmt.Errorf("case diary has not been generated: %w", caseerr.ErrMissingDependency)
	}

	stmt := docs[models.DocStatement]
	victimMed := docs[models.DocVictimMedical]
	accusedMed := docs[models.DocAccusedMedical]
	fir := docs[models.DocFIR]

	finalReport := buildFinalReport(diaryText,
		orNA(stmt.Str("narrative")),
		orNA(victimMed.Str("provisional_medical_opinion")),
		orNA(accusedMed.Str("opinion")))

	chargesheet := buildChargesheet(finalReport, fir, stmt, victimMed, accusedMed, now)

	res := &Result{
		FinalReport: finalReport,
		Chargesheet: chargesheet,
		Flags:       consistencyFlags(stmt, victimMed, accusedMed, checklist),
	}
	if c.logger != nil {
		c.logger.Debug("compiled report",
			zap.String("case_id", caseID),
			zap.Int("flags", len(res.Flags)))
	}
	return res, nil
}

func buildFinalReport(diaryText, narrative, victimOpinion, accusedOpinion string) string {
	var b strings.Builder
	b.WriteString("FINAL INVESTIGATION REPORT\n\n")
	b.WriteString("This document synthesizes information from the case diary, victim's full statement, and medical reports to provide a comprehensive narrative for analysis.\n")
	b.WriteString("==================================================================\n\n")
	b.WriteString("I. NARRATIVE FROM CASE DIARY\n--------------------------\n")
	b.WriteString(diaryText + "\n\n")
	b.WriteString("II. FULL VICTIM STATEMENT\n--------------------------\n")
	b.WriteString(narrative + "\n\n")
	b.WriteString("III. MEDICAL OPINIONS\n--------------------------\n")
	b.WriteString("Victim Medical Opinion: " + victimOpinion + "\n")
	b.WriteString("Accused Medical Opinion: " + accusedOpinion + "\n\n")
	b.WriteString("==================================================================\nEnd of Report\n")
	return b.String()
}

// buildChargesheet fills the Section 173 Cr.P.C. final-form template. Each
// slot is resolved from the richest available source: statement, then
// medical records, then FIR.
func buildChargesheet(finalReport string, fir, stmt, victimMed, accusedMed *models.ParsedDocument, now time.Time) string {
	sources := []*models.ParsedDocument{stmt, victimMed, accusedMed, fir}
	slot := func(paths ...[]string) string { return multiGet(sources, paths...) }

	sections := slot([]string{"case_info", "under_sections"})
	if sections == notAvailable {
		sections = formatActs(fir)
	}
	briefFacts := slot([]string{"brief_facts"})
	if briefFacts == notAvailable {
		briefFacts = "The investigation was initiated based on the First Information Report."
	}

	var b strings.Builder
	b.WriteString("FINAL FORM/REPORT (Under Section 173 Cr.P.C.)\n\n")
	b.WriteString("Police Station: " + slot([]string{"case_info", "police_station"}, []string{"fir_details", "ps"}) + "\n")
	b.WriteString("District: " + slot([]string{"case_info", "district"}, []string{"fir_details", "district"}) + "\n")
	b.WriteString("Crime No: " + slot([]string{"case_info", "crime_no"}, []string{"fir_details", "fir_no"}) + "\n")
	b.WriteString("Date Registered: " + formatDate(slot([]string{"case_info", "registration_date"}, []string{"fir_details", "date"})) + "\n")
	b.WriteString("Sections of Law: " + sections + "\n\n")

	b.WriteString("------------------ COMPLAINANT/INFORMANT ------------------\n")
	b.WriteString("Name: " + slot([]string{"complainant_informant", "name"}) + "\n")
	b.WriteString("Address: " + slot([]string{"complainant_informant", "present_address"}) + "\n\n")

	b.WriteString("------------------ ACCUSED DETAILS ------------------\n")
	b.WriteString("Name: " + slot([]string{"accused_details", "name"}) + "\n")
	b.WriteString("Relation: " + slot([]string{"accused_details", "relation"}) + "\n")
	b.WriteString("Age: " + slot([]string{"accused_details", "age"}) + "\n")
	b.WriteString("Occupation: " + slot([]string{"accused_details", "occupation"}) + "\n")
	b.WriteString("Address: " + slot([]string{"accused_details", "present_address"}) + "\n\n")

	b.WriteString("------------------ BRIEF FACTS OF THE CASE ------------------\n")
	b.WriteString("BEFORE THE HONOURABLE COURT OF " + slot([]string{"case_info", "court"}) + "\n")
	b.WriteString("MAY IT PLEASE YOUR HONOUR,\n\n")
	b.WriteString(briefFacts + "\n\n")
	b.WriteString(summarizeNarrative(finalReport) + "\n\n")

	b.WriteString("------------------ MEDICAL / EXPERT OPINION ------------------\n")
	b.WriteString("Victim Medical/Expert Opinion:\n")
	b.WriteString(bulletBlock(victimMed, []string{"age", "history_of_violence", "genital_examination_findings", "provisional_medical_opinion"}) + "\n\n")
	b.WriteString("Accused Medical/Expert Opinion:\n")
	b.WriteString(bulletBlock(accusedMed, []string{"age", "injuries_on_body", "genital_examination_findings", "opinion"}) + "\n\n")

	b.WriteString("------------------ FINAL CONCLUSION ------------------\n")
	b.WriteString("Based on the FIR, statements, medical evidence and investigation,\nit is submitted that the accused has committed the offences mentioned.\n\n")
	b.WriteString("Date: " + now.Format("02/01/2006") + "\n")
	b.WriteString("Place: " + slot([]string{"case_info", "district"}, []string{"fir_details", "district"}) + "\n\n")
	b.WriteString("Investigating Officer\nSignature: ___________________\n\n")
	b.WriteString("Station House Officer\nSignature: ___________________\n")
	return b.String()
}

// multiGet returns the first non-empty value found across sources for any of
// the given nested paths, in path-major order.
func multiGet(sources []*models.ParsedDocument, paths ...[]string) string {
	for _, path := range paths {
		for _, src := range sources {
			if src == nil {
				continue
			}
			if v := src.Nested(path...); strings.TrimSpace(v) != "" {
				return v
			}
		}
	}
	return notAvailable
}

// formatActs flattens the FIR acts_and_sections list into "Act Section, ...".
func formatActs(fir *models.ParsedDocument) string {
	if fir == nil {
		return notAvailable
	}
	list, ok := fir.Fields["acts_and_sections"].([]any)
	if !ok {
		return notAvailable
	}
	var parts []string
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		act, _ := m["act"].(string)
		section, _ := m["section"].(string)
		if act == "" && section == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(act+" "+section))
	}
	if len(parts) == 0 {
		return notAvailable
	}
	return strings.Join(parts, ", ")
}

func formatDate(raw string) string {
	if raw == notAvailable {
		return raw
	}
	if m := dateRe.FindStringSubmatch(raw); m != nil {
		return m[1] + "/" + m[2] + "/" + m[3]
	}
	return raw
}

// summarizeNarrative keeps the leading substantial paragraphs of the report
// as the chargesheet's narrative body.
func summarizeNarrative(text string) string {
	var paragraphs []string
	for _, p := range strings.Split(text, "\n") {
		p = strings.TrimSpace(p)
		if len(p) > 20 {
			paragraphs = append(paragraphs, p)
		}
		if len(paragraphs) == 3 {
			break
		}
	}
	if len(paragraphs) == 0 {
		return "[Narrative missing]"
	}
	return strings.Join(paragraphs, "\n\n")
}

func bulletBlock(doc *models.ParsedDocument, keys []string) string {
	var lines []string
	for _, key := range keys {
		if doc == nil {
			break
		}
		if v := doc.Str(key); v != "" {
			lines = append(lines, "  - "+titleKey(key)+": "+v)
		}
	}
	if len(lines) == 0 {
		return "  " + notAvailable
	}
	return strings.Join(lines, "\n")
}

func titleKey(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// consistencyFlags reports evidence keywords mentioned in the narrative that
// have no matching seized sample or completed evidence procedure.
func consistencyFlags(stmt, victimMed, accusedMed *models.ParsedDocument, checklist []models.ChecklistItem) []string {
	narrative := strings.ToLower(stmt.Str("narrative"))
	if narrative == "" {
		return nil
	}

	var seized strings.Builder
	for _, doc := range []*models.ParsedDocument{victimMed, accusedMed} {
		if doc == nil {
			continue
		}
		switch v := doc.Fields["samples_collected"].(type) {
		case string:
			seized.WriteString(strings.ToLower(v) + " ")
		case []any:
			for _, s := range v {
				if str, ok := s.(string); ok {
					seized.WriteString(strings.ToLower(str) + " ")
				}
			}
		}
	}
	evidenceDone := false
	for _, item := range checklist {
		if item.Checked && strings.Contains(strings.ToLower(item.Text), "evidence") {
			evidenceDone = true
		}
	}

	var flags []string
	for _, kw := range evidenceKeywords {
		if !strings.Contains(narrative, kw) {
			continue
		}
		if strings.Contains(seized.String(), kw) || evidenceDone {
			continue
		}
		flags = append(flags, fmt.Sprintf("narrative mentions %q but no matching seizure is recorded", kw))
	}
	return flags
}

func orNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return notAvailable
	}
	return v
}
