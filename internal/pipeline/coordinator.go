// Package pipeline coordinates the case processing stages and enforces their
// ordering: created -> parsed -> checklist_ready -> diary_ready -> report_ready.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/nyaya/caseflow/internal/caseerr"
	"github.com/nyaya/caseflow/internal/diary"
	"github.com/nyaya/caseflow/internal/models"
	"github.com/nyaya/caseflow/internal/parser"
	"github.com/nyaya/caseflow/internal/report"
	"github.com/nyaya/caseflow/internal/rules"
	"github.com/nyaya/caseflow/internal/search"
	"github.com/nyaya/caseflow/internal/storage"
)

// Generated artifact filenames.
const (
	ChecklistArtifact   = "compliance_checklist.md"
	DiaryArtifact       = "case_diary.txt"
	FinalReportArtifact = "final_report.txt"
	ChargesheetArtifact = "chargesheet.md"
)

// stageGate names the predecessor stage each stage run requires, plus the
// on-disk artifact that proves the predecessor actually completed.
type stageGate struct {
	need     models.Stage
	needName string
	kind     string
	artifact string
}

// ChecklistResult is the checklist stage output.
type ChecklistResult struct {
	Items     []*models.ChecklistItem `json:"items"`
	VictimAge int                     `json:"victim_age,omitempty"`
	AgeKnown  bool                    `json:"age_known"`
	Minor     bool                    `json:"minor"`
	Artifact  string                  `json:"artifact"`
}

// DiaryResult is the diary stage output.
type DiaryResult struct {
	Pages    int    `json:"pages"`
	Artifact string `json:"artifact"`
}

// ReportResult is the report stage output.
type ReportResult struct {
	Artifacts []string `json:"artifacts"`
	Flags     []string `json:"flags,omitempty"`
}

// Coordinator runs pipeline stages for a case, persisting stage transitions
// and generated artifacts. Stage transitions are one-directional; re-running
// a completed stage regenerates its artifacts without moving the case back.
type Coordinator struct {
	store     storage.Storage
	layout    *storage.Layout
	parser    *parser.Service
	evaluator *rules.Evaluator
	assembler *diary.Assembler
	compiler  *report.Compiler
	index     *search.Index
	logger    *zap.Logger
	now       func() time.Time
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets a logger for stage progress output.
func WithLogger(l *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// WithSearchIndex enables artifact indexing after each stage.
func WithSearchIndex(idx *search.Index) CoordinatorOption {
	return func(c *Coordinator) { c.index = idx }
}

// WithClock overrides the time source (used by tests).
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator wires the stage services together.
func NewCoordinator(store storage.Storage, layout *storage.Layout, p *parser.Service, e *rules.Evaluator, a *diary.Assembler, r *report.Compiler, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:     store,
		layout:    layout,
		parser:    p,
		evaluator: e,
		assembler: a,
		compiler:  r,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunParse runs stage 1: convert uploads into structured JSON records. The
// stage has no predecessor; it can always run on an existing case.
func (c *Coordinator) RunParse(ctx context.Context, caseID string) (*models.ParseResult, error) {
	cs, err := c.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	result, err := c.parser.ParseCase(ctx, caseID)
	if err != nil {
		return result, err
	}
	if err := c.advance(ctx, cs, models.StageParsed); err != nil {
		return result, err
	}
	for _, t := range models.AllDocumentTypes {
		if data, err := os.ReadFile(c.layout.RecordPath(caseID, t)); err == nil {
			c.indexArtifact(ctx, caseID, storage.KindJSON, t.RecordName(), string(data))
		}
	}
	c.logStage(caseID, "parse", models.StageParsed)
	return result, nil
}

// RunChecklist runs stage 2: evaluate SOP rules over the parsed records and
// persist the compliance checklist.
func (c *Coordinator) RunChecklist(ctx context.Context, caseID string) (*ChecklistResult, error) {
	cs, err := c.gate(ctx, caseID, stageGate{
		need: models.StageParsed, needName: "parse",
		kind: storage.KindJSON, artifact: models.DocFIR.RecordName(),
	})
	if err != nil {
		return nil, err
	}

	docs, err := parser.LoadDocuments(c.layout, caseID)
	if err != nil {
		return nil, err
	}
	ev, err := c.evaluator.Evaluate(caseID, docs)
	if err != nil {
		return nil, err
	}

	items := make([]*models.ChecklistItem, len(ev.Items))
	for i := range ev.Items {
		items[i] = &ev.Items[i]
	}
	if err := c.store.ReplaceChecklist(ctx, caseID, items); err != nil {
		return nil, err
	}
	stored, err := c.store.ListChecklist(ctx, caseID)
	if err != nil {
		return nil, err
	}

	markdown := rules.Render(ev)
	if _, err := c.layout.WriteArtifact(caseID, storage.KindCompliance, ChecklistArtifact, []byte(markdown)); err != nil {
		return nil, err
	}
	if err := c.advance(ctx, cs, models.StageChecklistReady); err != nil {
		return nil, err
	}
	c.indexArtifact(ctx, caseID, storage.KindCompliance, ChecklistArtifact, markdown)
	c.logStage(caseID, "checklist", models.StageChecklistReady)

	return &ChecklistResult{
		Items:     stored,
		VictimAge: ev.VictimAge,
		AgeKnown:  ev.AgeKnown,
		Minor:     ev.AgeKnown && ev.Minor,
		Artifact:  ChecklistArtifact,
	}, nil
}

// RunDiary runs stage 3: assemble the case diary from records and checklist
// state, paginate it, and persist the pages. Regeneration replaces all pages,
// including officer edits.
func (c *Coordinator) RunDiary(ctx context.Context, caseID string) (*DiaryResult, error) {
	cs, err := c.gate(ctx, caseID, stageGate{
		need: models.StageChecklistReady, needName: "checklist",
		kind: storage.KindCompliance, artifact: ChecklistArtifact,
	})
	if err != nil {
		return nil, err
	}

	docs, err := parser.LoadDocuments(c.layout, caseID)
	if err != nil {
		return nil, err
	}
	checklist, err := c.checklistValues(ctx, caseID)
	if err != nil {
		return nil, err
	}

	pages, err := c.assembler.Assemble(caseID, docs, checklist, c.now())
	if err != nil {
		return nil, err
	}
	pagePtrs := make([]*models.DiaryPage, len(pages))
	for i := range pages {
		pagePtrs[i] = &pages[i]
	}
	if err := c.store.ReplaceDiaryPages(ctx, caseID, pagePtrs); err != nil {
		return nil, err
	}

	fullText := diary.FullText(pages)
	if _, err := c.layout.WriteArtifact(caseID, storage.KindCaseDiary, DiaryArtifact, []byte(fullText)); err != nil {
		return nil, err
	}
	if err := c.advance(ctx, cs, models.StageDiaryReady); err != nil {
		return nil, err
	}
	c.indexArtifact(ctx, caseID, storage.KindCaseDiary, DiaryArtifact, fullText)
	c.logStage(caseID, "diary", models.StageDiaryReady)

	return &DiaryResult{Pages: len(pages), Artifact: DiaryArtifact}, nil
}

// RunReport runs stage 4: compile the final report and chargesheet. The
// diary text is rebuilt from the stored pages so officer edits are included.
func (c *Coordinator) RunReport(ctx context.Context, caseID string) (*ReportResult, error) {
	cs, err := c.gate(ctx, caseID, stageGate{
		need: models.StageDiaryReady, needName: "diary",
		kind: storage.KindCaseDiary, artifact: DiaryArtifact,
	})
	if err != nil {
		return nil, err
	}

	docs, err := parser.LoadDocuments(c.layout, caseID)
	if err != nil {
		return nil, err
	}
	checklist, err := c.checklistValues(ctx, caseID)
	if err != nil {
		return nil, err
	}
	diaryText, err := c.diaryText(ctx, caseID)
	if err != nil {
		return nil, err
	}

	res, err := c.compiler.Compile(caseID, diaryText, docs, checklist, c.now())
	if err != nil {
		return nil, err
	}
	if _, err := c.layout.WriteArtifact(caseID, storage.KindFinal, FinalReportArtifact, []byte(res.FinalReport)); err != nil {
		return nil, err
	}
	if _, err := c.layout.WriteArtifact(caseID, storage.KindFinal, ChargesheetArtifact, []byte(res.Chargesheet)); err != nil {
		return nil, err
	}
	if err := c.advance(ctx, cs, models.StageReportReady); err != nil {
		return nil, err
	}
	c.indexArtifact(ctx, caseID, storage.KindFinal, FinalReportArtifact, res.FinalReport)
	c.indexArtifact(ctx, caseID, storage.KindFinal, ChargesheetArtifact, res.Chargesheet)
	c.logStage(caseID, "report", models.StageReportReady)

	return &ReportResult{
		Artifacts: []string{FinalReportArtifact, ChargesheetArtifact},
		Flags:     res.Flags,
	}, nil
}

// gate loads the case and verifies the predecessor stage completed, both on
// the case row and via the artifact it should have left on disk. A stage
// invoked before its predecessor classifies as both out-of-order and missing
// its dependency; a predecessor whose artifact vanished from disk classifies
// as a missing dependency alone.
func (c *Coordinator) gate(ctx context.Context, caseID string, g stageGate) (*models.Case, error) {
	cs, err := c.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if cs.Stage.Rank() < g.need.Rank() {
		return nil, fmt.Errorf("%s stage has not completed (case is at %q): %w: %w", g.needName, cs.Stage, caseerr.ErrMissingDependency, caseerr.ErrStageOrder)
	}
	path, err := c.layout.ArtifactPath(caseID, g.kind, g.artifact)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s artifact %s is absent, re-run %s: %w", g.needName, g.artifact, g.needName, caseerr.ErrMissingDependency)
	}
	return cs, nil
}

// advance moves the case stage forward. A case already past target keeps its
// stage; the pipeline never rolls back.
func (c *Coordinator) advance(ctx context.Context, cs *models.Case, target models.Stage) error {
	if cs.Stage.Rank() >= target.Rank() {
		return nil
	}
	if err := c.store.UpdateCaseStage(ctx, cs.ID, target); err != nil {
		return err
	}
	cs.Stage = target
	return nil
}

func (c *Coordinator) checklistValues(ctx context.Context, caseID string) ([]models.ChecklistItem, error) {
	stored, err := c.store.ListChecklist(ctx, caseID)
	if err != nil {
		return nil, err
	}
	items := make([]models.ChecklistItem, len(stored))
	for i, item := range stored {
		items[i] = *item
	}
	return items, nil
}

func (c *Coordinator) diaryText(ctx context.Context, caseID string) (string, error) {
	count, err := c.store.CountDiaryPages(ctx, caseID)
	if err != nil {
		return "", err
	}
	pages := make([]models.DiaryPage, 0, count)
	for n := 1; n <= count; n++ {
		page, err := c.store.GetDiaryPage(ctx, caseID, n)
		if err != nil {
			return "", err
		}
		pages = append(pages, *page)
	}
	return diary.FullText(pages), nil
}

func (c *Coordinator) indexArtifact(ctx context.Context, caseID, kind, name, content string) {
	if c.index == nil {
		return
	}
	err := c.index.Index(ctx, &search.Artifact{CaseID: caseID, Kind: kind, Name: name, Content: content})
	if err != nil && c.logger != nil {
		c.logger.Warn("failed to index artifact",
			zap.String("case_id", caseID),
			zap.String("artifact", name),
			zap.Error(err))
	}
}

func (c *Coordinator) logStage(caseID, stage string, reached models.Stage) {
	if c.logger != nil {
		c.logger.Info("pipeline stage completed",
			zap.String("case_id", caseID),
			zap.String("stage", stage),
			zap.String("case_stage", string(reached)))
	}
}
