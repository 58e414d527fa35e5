package pipeline

import (
	"context"
	"log"

	"github.com/TobiSchelling/circolari/internal/database"
)

// RunLogWriter appends audit rows. *database.Session and *database.DB both
// satisfy it.
type RunLogWriter interface {
	AppendRunLog(ctx context.Context, rl database.RunLog) (int64, error)
}

// Outcome is the final state of one run, as reported to the audit log.
type Outcome struct {
	Found int
	Saved int
	Demo  bool
	Err   error
}

// Status maps the outcome onto the run status enumeration.
func (o Outcome) Status() database.RunStatus {
	switch {
	case o.Err != nil:
		return database.StatusError
	case o.Demo:
		return database.StatusDemoMode
	default:
		return database.StatusSuccess
	}
}

// RunLog builds the audit row for the outcome.
func (o Outcome) RunLog() database.RunLog {
	rl := database.RunLog{
		Status:       o.Status(),
		RecordsFound: o.Found,
		RecordsSaved: o.Saved,
	}
	if o.Err != nil {
		detail := o.Err.Error()
		rl.ErrorDetail = &detail
	}
	return rl
}

// Reporter appends exactly one run log per run.
type Reporter struct {
	w    RunLogWriter
	done bool
}

// NewReporter creates a reporter writing through w.
func NewReporter(w RunLogWriter) *Reporter {
	return &Reporter{w: w}
}

// Report appends the run log for o. Calls after the first are ignored. A
// failed write is logged; the run's own error, if any, takes precedence.
func (r *Reporter) Report(ctx context.Context, o Outcome) (database.RunLog, error) {
	rl := o.RunLog()
	if r.done {
		return rl, nil
	}
	r.done = true

	// The run context may already be cancelled; the audit row must still land.
	id, err := r.w.AppendRunLog(context.WithoutCancel(ctx), rl)
	if err != nil {
		log.Printf("Failed to record run log (%s): %v", rl.Status, err)
		return rl, err
	}
	rl.ID = id
	log.Printf("Run recorded: status=%s found=%d saved=%d", rl.Status, rl.RecordsFound, rl.RecordsSaved)
	return rl, nil
}
