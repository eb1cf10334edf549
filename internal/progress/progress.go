package progress

import (
	"fmt"
	"io"
	"time"
)

// Stage represents one step of a batch preset operation
type Stage struct {
	Number      int
	Total       int
	Name        string
	Description string
}

// Stages for the import and export flows
var (
	StageReadBundle = Stage{1, 3, "read", "Reading preset bundle..."}
	StageImport     = Stage{2, 3, "import", "Importing presets..."}
	StageSummarize  = Stage{3, 3, "summarize", "Writing results..."}

	StageCollect = Stage{1, 2, "collect", "Collecting preset records..."}
	StageWrite   = Stage{2, 2, "write", "Writing export bundle..."}
)

// Reporter handles CLI progress output
type Reporter struct {
	out       io.Writer
	startTime time.Time
	verbose   bool
}

// NewReporter creates a new progress reporter
func NewReporter(out io.Writer, verbose bool) *Reporter {
	return &Reporter{
		out:       out,
		startTime: time.Now(),
		verbose:   verbose,
	}
}

// StartStage announces the beginning of a stage
func (r *Reporter) StartStage(stage Stage) {
	fmt.Fprintf(r.out, "[%d/%d] %s\n", stage.Number, stage.Total, stage.Description)
}

// Update shows a sub-progress message within a stage
func (r *Reporter) Update(format string, args ...any) {
	if r.verbose {
		fmt.Fprintf(r.out, "       %s\n", fmt.Sprintf(format, args...))
	}
}

// StageComplete shows completion message for a stage
func (r *Reporter) StageComplete(format string, args ...any) {
	fmt.Fprintf(r.out, "       %s\n", fmt.Sprintf(format, args...))
}

// Done announces successful completion
func (r *Reporter) Done(summary string) {
	elapsed := time.Since(r.startTime)
	fmt.Fprintln(r.out, summary)
	fmt.Fprintf(r.out, "Completed in %.1f seconds\n", elapsed.Seconds())
}

// Error announces an error
func (r *Reporter) Error(err error) {
	fmt.Fprintf(r.out, "Error: %s\n", err)
}

// Warning announces a non-fatal warning
func (r *Reporter) Warning(format string, args ...any) {
	fmt.Fprintf(r.out, "Warning: %s\n", fmt.Sprintf(format, args...))
}
