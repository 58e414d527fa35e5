package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/TobiSchelling/circolari/internal/collect"
	"github.com/TobiSchelling/circolari/internal/config"
	"github.com/TobiSchelling/circolari/internal/database"
	"github.com/TobiSchelling/circolari/internal/extract"
	"github.com/TobiSchelling/circolari/internal/normalize"
	"github.com/TobiSchelling/circolari/internal/portal"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of one ingestion run.
type Result struct {
	Steps  []StepResult
	RunLog *database.RunLog
	// Notices is only populated by DryRun.
	Notices []database.Notice
}

// Source produces the raw candidates for one run.
type Source interface {
	Collect(ctx context.Context) (*collect.Collection, error)
}

// Pipeline runs collect -> extract -> normalize -> save -> report.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	source   Source
	engine   *extract.Engine
	defaults normalize.Defaults
	now      func() time.Time
}

// New creates a pipeline wired to the configured portal and feeds.
func New(cfg *config.Config, db *database.DB) (*Pipeline, error) {
	locators, err := extract.LocatorsByName(cfg.Extraction.Locators)
	if err != nil {
		return nil, err
	}
	engine := extract.NewEngine(extract.Options{
		MinLength: cfg.Extraction.MinLength,
		MaxBatch:  cfg.Extraction.MaxBatch,
	}, locators...)

	var page collect.PageSource
	if cfg.Portal.Enabled() {
		username, password := cfg.Portal.Credentials()
		client, err := portal.NewClient(portal.Options{
			BaseURL:     cfg.Portal.BaseURL,
			LoginPath:   cfg.Portal.LoginPath,
			NoticesPath: cfg.Portal.NoticesPath,
			Username:    username,
			Password:    password,
			Timeout:     cfg.Portal.Timeout(),
			UserAgent:   cfg.Portal.UserAgent,
		})
		if err != nil {
			return nil, err
		}
		page = client
	}

	return newPipeline(cfg, db, collect.NewCollector(cfg, page, engine), engine), nil
}

func newPipeline(cfg *config.Config, db *database.DB, source Source, engine *extract.Engine) *Pipeline {
	defSource := cfg.Extraction.DefaultSource
	if (defSource == "" || defSource == database.DefaultSource) && cfg.Portal.Enabled() {
		defSource = cfg.Portal.Name
	}
	return &Pipeline{
		cfg:    cfg,
		db:     db,
		source: source,
		engine: engine,
		defaults: normalize.Defaults{
			Category: cfg.Extraction.DefaultCategory,
			Source:   defSource,
			TitleMax: cfg.Extraction.TitleMax,
			BodyMax:  cfg.Extraction.BodyMax,
		},
		now: time.Now,
	}
}

// Run executes one ingestion run. Exactly one run log is appended for every
// run that reaches the store, whatever the outcome. The returned error is
// non-nil when the run status is error.
func (p *Pipeline) Run(ctx context.Context) (r *Result, runErr error) {
	r = &Result{}

	session, err := p.db.Acquire(ctx)
	if err != nil {
		log.Printf("Store unavailable, run not recorded: %v", err)
		r.Steps = append(r.Steps, StepResult{Name: "Connect", Err: err})
		return r, err
	}
	defer session.Release()

	var out Outcome
	rep := NewReporter(session)
	defer func() {
		if v := recover(); v != nil {
			out.Err = fmt.Errorf("run panicked: %v", v)
			rl, _ := rep.Report(ctx, out)
			r.RunLog = &rl
			panic(v)
		}
		out.Err = runErr
		rl, err := rep.Report(ctx, out)
		r.RunLog = &rl
		r.Steps = append(r.Steps, reportStep(rl, err))
	}()

	log.Println("Step 1/4: Collecting candidates...")
	col, err := p.source.Collect(ctx)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Collect", Err: err})
		return r, err
	}
	cands := col.Candidates()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("%d candidates (%d from feeds)", len(cands), len(col.Feed)),
	})

	log.Println("Step 2/4: Extracting fragments...")
	ext := p.engine.Finalize(cands)
	out.Found = len(ext.Fragments)
	// A portal outage tolerated by demo_on_failure is a degraded run even
	// when feeds still produced real notices.
	out.Demo = ext.Placeholder || col.PortalErr != nil
	r.Steps = append(r.Steps, extractStep(ext))

	if ext.Placeholder && !p.cfg.Extraction.StorePlaceholders {
		r.Steps = append(r.Steps, StepResult{Name: "Save", Summary: "Placeholders not stored"})
		return r, nil
	}

	log.Println("Step 3/4: Saving notices...")
	today := p.now()
	var present int
	for _, f := range ext.Fragments {
		n := normalize.Normalize(f, p.defaults, today)
		res, err := session.SaveNotice(ctx, n)
		if err != nil {
			r.Steps = append(r.Steps, StepResult{Name: "Save", Err: err})
			return r, err
		}
		if p.cfg.Debug() {
			log.Printf("%s: %q (%s)", res, n.Title, database.FormatDate(n.PublicationDate))
		}
		if res == database.Inserted {
			out.Saved++
		} else {
			present++
		}
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Save",
		Summary: fmt.Sprintf("Saved %d new notices, %d already present", out.Saved, present),
	})

	log.Println("Step 4/4: Recording run...")
	return r, nil
}

// DryRun collects, extracts and normalizes without touching the store.
func (p *Pipeline) DryRun(ctx context.Context) (*Result, error) {
	r := &Result{}

	col, err := p.source.Collect(ctx)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Collect", Err: err})
		return r, err
	}
	cands := col.Candidates()
	r.Steps = append(r.Steps, StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("[dry-run] %d candidates (%d from feeds)", len(cands), len(col.Feed)),
	})

	ext := p.engine.Finalize(cands)
	step := extractStep(ext)
	step.Summary = "[dry-run] " + step.Summary
	r.Steps = append(r.Steps, step)

	today := p.now()
	for _, f := range ext.Fragments {
		r.Notices = append(r.Notices, normalize.Normalize(f, p.defaults, today))
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Save",
		Summary: fmt.Sprintf("[dry-run] Would save up to %d notices", len(r.Notices)),
	})
	return r, nil
}

// Watch runs the pipeline every interval until ctx is cancelled. Runs never
// overlap; a failed run is logged and the loop continues.
func (p *Pipeline) Watch(ctx context.Context, interval time.Duration, onResult func(*Result, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r, err := p.Run(ctx)
		if err != nil {
			log.Printf("Run failed: %v", err)
		}
		if onResult != nil {
			onResult(r, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func extractStep(ext extract.Result) StepResult {
	if ext.Placeholder {
		return StepResult{
			Name:    "Extract",
			Summary: fmt.Sprintf("No qualifying fragments (%d too short), using %d placeholders", ext.TooShort, len(ext.Fragments)),
		}
	}
	return StepResult{
		Name:    "Extract",
		Summary: fmt.Sprintf("%d fragments (%d too short, %d over batch cap)", len(ext.Fragments), ext.TooShort, ext.OverCap),
	}
}

func reportStep(rl database.RunLog, err error) StepResult {
	if err != nil {
		return StepResult{Name: "Report", Err: err}
	}
	return StepResult{
		Name:    "Report",
		Summary: fmt.Sprintf("Run %s: %d found, %d saved", rl.Status, rl.RecordsFound, rl.RecordsSaved),
	}
}
