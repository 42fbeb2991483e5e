package deploy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/netcfg-io/netcfg/pkg/compiler"
	"github.com/netcfg-io/netcfg/pkg/dialect"
	"github.com/netcfg-io/netcfg/pkg/session"
)

// readOnlySession refuses every line the dialect does not classify as
// read-only. Dry runs talk to the device only through it.
type readOnlySession struct {
	session.Session
	dialect *dialect.Dialect
}

func (s *readOnlySession) Send(ctx context.Context, line string) (string, error) {
	if !s.dialect.IsReadOnly(line) {
		return "", fmt.Errorf("%w: %q", ErrDryRunViolation, line)
	}
	return s.Session.Send(ctx, line)
}

// preview probes the device and annotates each plan line against the
// running configuration. Nothing is applied or saved.
func (x *deployment) preview(ctx context.Context, sess session.Session, plan *compiler.CommandPlan) {
	r := x.report
	dl := x.dialect
	r.FinalStage = StageApplying

	if _, err := x.send(ctx, sess, dl.ProbeCommand); err != nil {
		r.abort(StageApplying, Failure, fmt.Errorf("dry-run probe: %w", err))
		return
	}

	running, err := x.send(ctx, sess, dl.VerifyCommand)
	var present map[string]bool
	if err != nil {
		r.warnf("running configuration unavailable, preview is not annotated: %v", err)
	} else {
		present = configLines(running)
	}

	body, _ := plan.Split(dl)
	now := time.Now().UTC()
	for _, line := range body {
		entry := CommandResult{Command: line, Timestamp: now}
		if present != nil {
			entry.Note = NoteWouldApply
			if dl.Listed(line) && present[strings.TrimSpace(line)] {
				entry.Note = NotePresent
			}
		}
		r.Commands = append(r.Commands, entry)
	}

	r.Outcome = SkippedDryRun
	x.log.Infof("dry run: %d commands previewed, nothing applied", len(body))
}

// configLines indexes the trimmed lines of a running configuration
func configLines(config string) map[string]bool {
	lines := make(map[string]bool)
	for _, l := range strings.Split(config, "\n") {
		if l = strings.TrimSpace(l); l != "" && !strings.HasPrefix(l, "!") {
			lines[l] = true
		}
	}
	return lines
}

// missingLines returns body lines the running configuration should show
// but does not
func (x *deployment) missingLines(running string, body []string) []string {
	present := configLines(running)
	var missing []string
	for _, line := range body {
		if x.dialect.Listed(line) && !present[strings.TrimSpace(line)] {
			missing = append(missing, line)
		}
	}
	return missing
}
