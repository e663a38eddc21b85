package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nyaya/caseflow/internal/caseerr"
	"github.com/nyaya/caseflow/internal/models"
)

// Checklist sections.
const (
	SectionPOCSO   = "pocso"
	SectionGeneral = "general"
)

var narrativeAgeRe = regexp.MustCompile(`(?i)age[\s:]*(\d+)`)

// Known incident/FIR date layouts seen in OCR output.
var dateLayouts = []string{"02-01-2006", "2006-01-02", "02/01/2006", "02.01.2006"}

// Evaluation is the outcome of checking a case's parsed records against the
// SOP rule table. Items keep checklist display order: POCSO to-do, POCSO
// completed, general to-do, general completed.
type Evaluation struct {
	Items     []models.ChecklistItem
	VictimAge int  // 0 when unknown
	AgeKnown  bool
	Minor     bool // meaningful only when AgeKnown
}

// Evaluator checks parsed records against an SOP rule table.
type Evaluator struct {
	rules  []Rule
	logger *zap.Logger
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) EvaluatorOption {
	return func(e *Evaluator) { e.logger = l }
}

// NewEvaluator returns an Evaluator over the given rule table.
func NewEvaluator(rules []Rule, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{rules: rules}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate checks every rule against the parsed records of the case.
// The FIR and statement records must exist (possibly empty); otherwise the
// parse stage has not run and the evaluation fails with a missing dependency.
func (e *Evaluator) Evaluate(caseID string, docs map[models.DocumentType]*models.ParsedDocument) (*Evaluation, error) {
	fir := docs[models.DocFIR]
	stmt := docs[models.DocStatement]
	if fir == nil || stmt == nil {
		return nil, fmt.Errorf("parse stage has not produced fir and statement records: %w", caseerr.ErrMissingDependency)
	}
	victimMed := docs[models.DocVictimMedical]
	accusedMed := docs[models.DocAccusedMedical]

	ev := &Evaluation{}
	if age, ok := resolveVictimAge(stmt, victimMed); ok {
		ev.VictimAge = age
		ev.AgeKnown = true
		ev.Minor = age < 18
	}
	incident, haveIncident := incidentDate(fir)

	var pocsoTodo, pocsoDone, generalTodo, generalDone []models.ChecklistItem
	for _, rule := range e.rules {
		// POCSO steps drop out once the victim is confirmed adult.
		if rule.POCSO && ev.AgeKnown && !ev.Minor {
			continue
		}
		item := models.ChecklistItem{
			CaseID:  caseID,
			Section: SectionGeneral,
			Text:    rule.Procedure + ": " + rule.Details,
			Checked: ruleComplete(rule, fir, stmt, victimMed, accusedMed),
		}
		if rule.POCSO {
			item.Section = SectionPOCSO
		}
		if rule.TimelineHours > 0 && haveIncident {
			deadline := incident.Add(time.Duration(rule.TimelineHours) * time.Hour)
			item.Deadline = &deadline
		}
		switch {
		case rule.POCSO && item.Checked:
			pocsoDone = append(pocsoDone, item)
		case rule.POCSO:
			pocsoTodo = append(pocsoTodo, item)
		case item.Checked:
			generalDone = append(generalDone, item)
		default:
			generalTodo = append(generalTodo, item)
		}
	}

	ev.Items = append(ev.Items, pocsoTodo...)
	ev.Items = append(ev.Items, pocsoDone...)
	ev.Items = append(ev.Items, generalTodo...)
	ev.Items = append(ev.Items, generalDone...)

	if e.logger != nil {
		e.logger.Debug("evaluated sop rules",
			zap.String("case_id", caseID),
			zap.Int("items", len(ev.Items)),
			zap.Bool("age_known", ev.AgeKnown),
			zap.Bool("minor", ev.AgeKnown && ev.Minor))
	}
	return ev, nil
}

// ruleComplete infers completion of a procedure from the presence of
// meaningful data in the record it covers. Procedures not tied to a record
// stay unchecked until an officer marks them.
func ruleComplete(rule Rule, fir, stmt, victimMed, accusedMed *models.ParsedDocument) bool {
	proc := strings.ToLower(rule.Procedure)
	details := strings.ToLower(rule.Details)
	switch {
	case strings.Contains(proc, "fir"):
		return !fir.Empty()
	case strings.Contains(proc, "statement of victim"), strings.Contains(proc, "statement of the victim"):
		return !stmt.Empty()
	case strings.Contains(proc, "medical examination of victim"):
		return !victimMed.Empty()
	case strings.Contains(proc, "medical examination") && strings.Contains(details, "accused"):
		return !accusedMed.Empty()
	}
	return false
}

// resolveVictimAge tries the victim medical report first, then the statement
// witness details, then an age mention in the narrative.
func resolveVictimAge(stmt, victimMed *models.ParsedDocument) (int, bool) {
	if age, ok := parseAge(victimMed.Str("age")); ok {
		return age, true
	}
	if age, ok := parseAge(stmt.Nested("witness_details", "age")); ok {
		return age, true
	}
	if narrative := stmt.Str("narrative"); narrative != "" {
		if m := narrativeAgeRe.FindStringSubmatch(narrative); m != nil {
			if age, err := strconv.Atoi(m[1]); err == nil {
				return age, true
			}
		}
	}
	return 0, false
}

func parseAge(raw string) (int, bool) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "years", ""))
	age, err := strconv.Atoi(raw)
	if err != nil || age <= 0 || age > 120 {
		return 0, false
	}
	return age, true
}

// incidentDate reads the FIR registration date, the anchor for rule deadlines.
func incidentDate(fir *models.ParsedDocument) (time.Time, bool) {
	raw := fir.Nested("fir_details", "date")
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Render produces the Markdown compliance checklist from an evaluation.
func Render(ev *Evaluation) string {
	var b strings.Builder
	b.WriteString("# SOP Compliance Checklist\n\n")

	switch {
	case !ev.AgeKnown:
		b.WriteString("## Case Status: VICTIM'S AGE UNKNOWN\n> All procedures are displayed until age is confirmed.\n\n")
	case ev.Minor:
		b.WriteString("## VICTIM IS A MINOR\n> POCSO Act procedures are prioritized.\n\n")
	default:
		b.WriteString("## Victim is NOT a minor\n> POCSO-related procedures are hidden.\n\n")
	}

	var pocso, general []models.ChecklistItem
	for _, item := range ev.Items {
		if item.Section == SectionPOCSO {
			pocso = append(pocso, item)
		} else {
			general = append(general, item)
		}
	}

	if len(pocso) > 0 {
		b.WriteString("### POCSO Act Procedures (Priority)\n")
		renderSection(&b, pocso)
	}
	b.WriteString("### General Procedures\n")
	renderSection(&b, general)
	return b.String()
}

func renderSection(b *strings.Builder, items []models.ChecklistItem) {
	var todo, done []models.ChecklistItem
	for _, item := range items {
		if item.Checked {
			done = append(done, item)
		} else {
			todo = append(todo, item)
		}
	}
	writeSteps := func(heading string, steps []models.ChecklistItem, marker string) {
		if len(steps) == 0 {
			return
		}
		b.WriteString(heading)
		for _, step := range steps {
			b.WriteString("- " + marker + " " + step.Text)
			if step.Deadline != nil {
				b.WriteString(" (deadline: " + step.Deadline.Format("2006-01-02 15:04") + ")")
			}
			b.WriteString("\n")
		}
	}
	writeSteps("#### To-Do\n", todo, "[ ]")
	writeSteps("#### Completed\n", done, "[x]")
}
