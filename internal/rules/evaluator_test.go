package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nyaya/caseflow/internal/caseerr"
	"github.com/nyaya/caseflow/internal/models"
)

func doc(t models.DocumentType, fields map[string]any) *models.ParsedDocument {
	return &models.ParsedDocument{Type: t, Fields: fields}
}

func skipped(t models.DocumentType) *models.ParsedDocument {
	return &models.ParsedDocument{Type: t, Skipped: true, Fields: map[string]any{}}
}

func baseDocs() map[models.DocumentType]*models.ParsedDocument {
	return map[models.DocumentType]*models.ParsedDocument{
		models.DocFIR: doc(models.DocFIR, map[string]any{
			"fir_details": map[string]any{"fir_no": "123/2024", "date": "12-05-2024"},
		}),
		models.DocStatement: doc(models.DocStatement, map[string]any{
			"witness_details": map[string]any{"age": "16"},
			"narrative":       "I say that the accused attacked me.",
		}),
		models.DocVictimMedical:  skipped(models.DocVictimMedical),
		models.DocAccusedMedical: skipped(models.DocAccusedMedical),
	}
}

func findItem(items []models.ChecklistItem, substr string) *models.ChecklistItem {
	for i := range items {
		if strings.Contains(items[i].Text, substr) {
			return &items[i]
		}
	}
	return nil
}

func TestEvaluateRequiresParsedRecords(t *testing.T) {
	e := NewEvaluator(DefaultRules)
	docs := baseDocs()
	docs[models.DocFIR] = nil
	if _, err := e.Evaluate("case-1", docs); !errors.Is(err, caseerr.ErrMissingDependency) {
		t.Errorf("err = %v, want ErrMissingDependency", err)
	}
}

func TestEvaluateMinorIncludesPOCSO(t *testing.T) {
	e := NewEvaluator(DefaultRules)
	ev, err := e.Evaluate("case-1", baseDocs())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ev.AgeKnown || !ev.Minor || ev.VictimAge != 16 {
		t.Errorf("age resolution = %+v", ev)
	}
	cwc := findItem(ev.Items, "Child Welfare Committee")
	if cwc == nil {
		t.Fatal("expected POCSO item for a minor victim")
	}
	if cwc.Section != SectionPOCSO {
		t.Errorf("Section = %s, want %s", cwc.Section, SectionPOCSO)
	}
	// POCSO items sort before general ones.
	if ev.Items[0].Section != SectionPOCSO {
		t.Errorf("first item section = %s, want pocso", ev.Items[0].Section)
	}
}

func TestEvaluateAdultDropsPOCSO(t *testing.T) {
	e := NewEvaluator(DefaultRules)
	docs := baseDocs()
	docs[models.DocStatement].Fields["witness_details"] = map[string]any{"age": "32"}
	ev, err := e.Evaluate("case-1", docs)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ev.AgeKnown || ev.Minor {
		t.Errorf("age resolution = %+v", ev)
	}
	for _, item := range ev.Items {
		if item.Section == SectionPOCSO {
			t.Errorf("adult victim should drop POCSO item %q", item.Text)
		}
	}
}

func TestEvaluateUnknownAgeKeepsPOCSO(t *testing.T) {
	e := NewEvaluator(DefaultRules)
	docs := baseDocs()
	docs[models.DocStatement].Fields["witness_details"] = map[string]any{}
	ev, err := e.Evaluate("case-1", docs)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.AgeKnown {
		t.Errorf("AgeKnown = true, want false")
	}
	if findItem(ev.Items, "Child Welfare Committee") == nil {
		t.Error("unknown age must keep POCSO items visible")
	}
}

func TestResolveVictimAgePriority(t *testing.T) {
	// The medical report outranks the statement.
	stmt := doc(models.DocStatement, map[string]any{
		"witness_details": map[string]any{"age": "25"},
	})
	med := doc(models.DocVictimMedical, map[string]any{"age": "16 years"})
	if age, ok := resolveVictimAge(stmt, med); !ok || age != 16 {
		t.Errorf("age = %d, %v, want 16", age, ok)
	}

	// Narrative mention is the last resort.
	stmt = doc(models.DocStatement, map[string]any{
		"witness_details": map[string]any{},
		"narrative":       "I say that I am a student, age 17, living with my parents.",
	})
	if age, ok := resolveVictimAge(stmt, nil); !ok || age != 17 {
		t.Errorf("narrative age = %d, %v, want 17", age, ok)
	}

	// Out-of-range values are rejected.
	med = doc(models.DocVictimMedical, map[string]any{"age": "470"})
	stmt = doc(models.DocStatement, map[string]any{})
	if _, ok := resolveVictimAge(stmt, med); ok {
		t.Error("implausible age should not resolve")
	}
}

func TestRuleCompletionInference(t *testing.T) {
	e := NewEvaluator(DefaultRules)
	docs := baseDocs()
	docs[models.DocVictimMedical] = doc(models.DocVictimMedical, map[string]any{"age": "16 years", "mlc_no": "456"})
	ev, err := e.Evaluate("case-1", docs)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if item := findItem(ev.Items, "Registration of FIR"); item == nil || !item.Checked {
		t.Error("FIR registration should be inferred complete from the record")
	}
	if item := findItem(ev.Items, "Statement of victim to be recorded"); item == nil || !item.Checked {
		t.Error("victim statement should be inferred complete")
	}
	if item := findItem(ev.Items, "Medical examination of victim"); item == nil || !item.Checked {
		t.Error("victim medical exam should be inferred complete")
	}
	if item := findItem(ev.Items, "Medical examination of arrested person"); item == nil || item.Checked {
		t.Error("accused medical exam should stay unchecked with a skipped record")
	}
	if item := findItem(ev.Items, "Forwarding of samples"); item == nil || item.Checked {
		t.Error("procedures not tied to a record stay unchecked")
	}
}

func TestEvaluateDeadlines(t *testing.T) {
	e := NewEvaluator(DefaultRules)
	ev, err := e.Evaluate("case-1", baseDocs())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	item := findItem(ev.Items, "Registration of FIR")
	if item == nil || item.Deadline == nil {
		t.Fatal("expected a deadline on FIR registration")
	}
	want := time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)
	if !item.Deadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", item.Deadline, want)
	}

	if item := findItem(ev.Items, "Support person"); item == nil || item.Deadline != nil {
		t.Error("rules without a timeline carry no deadline")
	}
}

func TestEvaluateNoIncidentDate(t *testing.T) {
	e := NewEvaluator(DefaultRules)
	docs := baseDocs()
	docs[models.DocFIR].Fields["fir_details"] = map[string]any{"fir_no": "123/2024"}
	ev, err := e.Evaluate("case-1", docs)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for _, item := range ev.Items {
		if item.Deadline != nil {
			t.Errorf("item %q has a deadline without an incident date", item.Text)
		}
	}
}

func TestRenderChecklist(t *testing.T) {
	e := NewEvaluator(DefaultRules)
	ev, err := e.Evaluate("case-1", baseDocs())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	md := Render(ev)

	for _, want := range []string{
		"# SOP Compliance Checklist",
		"## VICTIM IS A MINOR",
		"### POCSO Act Procedures (Priority)",
		"### General Procedures",
		"- [ ]",
		"- [x]",
		"(deadline: 2024-05-13 00:00)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("rendered checklist missing %q", want)
		}
	}

	docs := baseDocs()
	docs[models.DocStatement].Fields["witness_details"] = map[string]any{"age": "32"}
	ev, _ = e.Evaluate("case-1", docs)
	md = Render(ev)
	if !strings.Contains(md, "## Victim is NOT a minor") {
		t.Error("adult banner missing")
	}
	if strings.Contains(md, "### POCSO Act Procedures") {
		t.Error("adult checklist should have no POCSO section")
	}
}

func TestLoadRules(t *testing.T) {
	rules, err := LoadRules("")
	if err != nil || len(rules) != len(DefaultRules) {
		t.Fatalf("LoadRules(\"\") = %d rules, %v", len(rules), err)
	}

	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `- procedure: Registration of FIR
  details: Register the FIR immediately.
  legal_ref: Section 154 Cr.P.C.
  timeline_hours: 24
- procedure: Reporting to Child Welfare Committee
  details: Report within twenty four hours.
  legal_ref: Section 19(6) POCSO Act
  timeline_hours: 24
  pocso: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	rules, err = LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if len(rules) != 2 || !rules[1].POCSO || rules[0].TimelineHours != 24 {
		t.Errorf("rules = %+v", rules)
	}

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(empty, []byte(""), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRules(empty); err == nil {
		t.Error("expected error for empty rules file")
	}
}
