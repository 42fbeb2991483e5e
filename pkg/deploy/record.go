package deploy

import (
	"context"
	"time"

	"github.com/netcfg-io/netcfg/pkg/audit"
	"github.com/netcfg-io/netcfg/pkg/util"
)

// Record writes a report to the audit log. Deploy records its own reports;
// callers record reports for devices they skip.
func (d *Deployer) Record(r *Report) {
	op := audit.OperationDeploy
	if r.Unchanged {
		op = audit.OperationSkip
	}
	event := audit.NewEvent(d.User, r.Hostname, op).
		WithRun(d.RunID, string(r.Mode)).
		WithPlan(r.PlanHash, r.SentCount(), r.Rejected()).
		WithOutcome(string(r.Outcome), string(r.FinalStage), r.Outcome.CleanFor(r.Mode)).
		WithError(r.err).
		WithDuration(time.Duration(r.DurationMs) * time.Millisecond)
	event.Address = r.ManagementAddress
	event.SavedConfig = r.SavedConfig
	event.Unchanged = r.Unchanged

	var err error
	if d.Audit != nil {
		err = d.Audit.Log(event)
	} else {
		err = audit.Log(event)
	}
	if err != nil {
		util.WithDevice(r.Hostname).Warnf("audit log: %v", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
