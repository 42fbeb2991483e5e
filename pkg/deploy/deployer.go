// Package deploy drives one command plan onto one device through an
// explicit state machine: connect, authenticate, elevate, apply, save,
// verify, close. Every call returns a report; failures never escape as
// panics or errors.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"os/user"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/netcfg-io/netcfg/pkg/audit"
	"github.com/netcfg-io/netcfg/pkg/compiler"
	"github.com/netcfg-io/netcfg/pkg/dialect"
	"github.com/netcfg-io/netcfg/pkg/session"
	"github.com/netcfg-io/netcfg/pkg/state"
	"github.com/netcfg-io/netcfg/pkg/util"
)

// Defaults for Options fields left at zero
const (
	DefaultConnectTimeout = 15 * time.Second
	DefaultCommandTimeout = 30 * time.Second
	DefaultMaxAttempts    = 3
	DefaultBackoffBase    = 2 * time.Second
)

// Options tunes a Deployer
type Options struct {
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	RejectPolicy   RejectPolicy
	// Verify re-reads the running configuration after a live apply.
	Verify bool
	// SkipUnchanged skips a live deploy whose plan hash matches the last
	// hash recorded for the device. Requires a HashStore.
	SkipUnchanged bool
	LockTTL       time.Duration
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = DefaultCommandTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = DefaultBackoffBase
	}
	if o.RejectPolicy == "" {
		o.RejectPolicy = RejectContinue
	}
	if o.LockTTL <= 0 {
		o.LockTTL = state.DefaultLockTTL
	}
	return o
}

// ErrDryRunViolation is returned by the dry-run guard for a state-changing line
var ErrDryRunViolation = errors.New("state-changing command refused in dry run")

// Deployer deploys plans to devices. One Deployer serves a whole run and is
// safe for concurrent use; each Deploy call owns its own session.
type Deployer struct {
	Dialer  session.Dialer
	Options Options

	// Optional collaborators
	Locker state.Locker
	Hashes state.HashStore
	Audit  audit.Logger // nil uses the process default audit logger

	RunID string
	User  string
}

// New returns a Deployer with a fresh run ID
func New(dialer session.Dialer, opts Options) *Deployer {
	d := &Deployer{
		Dialer:  dialer,
		Options: opts.withDefaults(),
		RunID:   uuid.NewString(),
	}
	if u, err := user.Current(); err == nil {
		d.User = u.Username
	}
	return d
}

// Deploy runs the state machine for one device. mode must be DryRun or Live.
// The returned report is complete; the session is closed on every path.
func (d *Deployer) Deploy(ctx context.Context, plan *compiler.CommandPlan, ep session.Endpoint, creds session.Credentials, mode Mode) *Report {
	start := time.Now()
	r := newReport(plan, ep.Address, mode)
	if r.Hostname == "" {
		r.Hostname = ep.Hostname
	}
	defer func() {
		r.DurationMs = time.Since(start).Milliseconds()
		d.Record(r)
	}()

	run := &deployment{
		Deployer: d,
		opts:     d.Options.withDefaults(),
		report:   r,
		log:      util.WithDevice(r.Hostname).WithField("run", d.RunID),
	}
	run.execute(ctx, plan, ep, creds, mode)
	return r
}

// deployment holds the state of one Deploy call
type deployment struct {
	*Deployer
	opts    Options
	report  *Report
	dialect *dialect.Dialect
	log     *logrus.Entry
}

func (x *deployment) execute(ctx context.Context, plan *compiler.CommandPlan, ep session.Endpoint, creds session.Credentials, mode Mode) {
	r := x.report

	if !mode.Valid() {
		r.abort(StageConnecting, Failure, fmt.Errorf("deployment mode must be %q or %q, got %q", DryRun, Live, mode))
		return
	}
	dl, ok := dialect.Lookup(plan.DeviceType())
	if !ok {
		r.abort(StageConnecting, Failure, fmt.Errorf("unsupported device type %q", plan.DeviceType()))
		return
	}
	x.dialect = dl
	if ep.DeviceType == "" {
		ep.DeviceType = plan.DeviceType()
	}

	if mode == Live && x.unchanged(ctx, plan) {
		return
	}

	if x.Locker != nil {
		if err := x.Locker.Acquire(ctx, r.Hostname, x.RunID, ep.Address, x.opts.LockTTL); err != nil {
			r.abort(StageConnecting, Failure, fmt.Errorf("locking %s: %w", r.Hostname, err))
			return
		}
		defer x.unlock(ctx, r.Hostname)
	}

	conn, sess := x.open(ctx, ep, creds)
	if sess == nil {
		return
	}
	defer func() {
		if err := sess.Close(); err != nil {
			x.log.Debugf("closing session: %v", err)
		}
		if err := conn.Close(); err != nil {
			x.log.Debugf("closing connection: %v", err)
		}
		if r.FinalStage != StageAborted {
			r.FinalStage = StageClosed
		}
	}()

	if err := x.elevate(ctx, sess, creds); err != nil {
		r.abort(StagePrivilegeElevating, Failure, err)
		return
	}

	if mode == DryRun {
		x.preview(ctx, &readOnlySession{Session: sess, dialect: dl}, plan)
		return
	}
	x.apply(ctx, sess, plan)
}

// unchanged reports (and records) a skip when the plan was already applied
func (x *deployment) unchanged(ctx context.Context, plan *compiler.CommandPlan) bool {
	if !x.opts.SkipUnchanged || x.Hashes == nil {
		return false
	}
	r := x.report
	rec, err := x.Hashes.LastApplied(ctx, r.Hostname)
	if err != nil {
		r.warnf("change detection unavailable: %v", err)
		return false
	}
	if rec == nil || rec.PlanHash != plan.Hash() {
		return false
	}
	r.Outcome = Success
	r.Unchanged = true
	r.FinalStage = StageClosed
	r.warnf("plan unchanged since run %s at %s; device not contacted", rec.RunID, rec.AppliedAt.Format(time.RFC3339))
	x.log.Infof("plan %s already applied, skipping", plan.Hash())
	return true
}

func (x *deployment) unlock(ctx context.Context, device string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := x.Locker.Release(rctx, device, x.RunID); err != nil {
		x.log.Warnf("releasing lock: %v", err)
	}
}

// open connects and authenticates, retrying transport failures with
// exponential backoff. On failure the report is aborted and sess is nil.
func (x *deployment) open(ctx context.Context, ep session.Endpoint, creds session.Credentials) (session.Conn, session.Session) {
	r := x.report
	for attempt := 1; ; attempt++ {
		r.Attempts = attempt
		conn, sess, stage, err := x.connect(ctx, ep, creds)
		if err == nil {
			return conn, sess
		}

		if !session.IsRetryable(err) || attempt >= x.opts.MaxAttempts || ctx.Err() != nil {
			if attempt > 1 {
				err = fmt.Errorf("%w (after %d attempts)", err, attempt)
			}
			r.abort(stage, Failure, err)
			x.stageLog(stage).Errorf("deployment aborted: %v", err)
			return nil, nil
		}

		delay := x.opts.BackoffBase << (attempt - 1)
		x.stageLog(stage).Warnf("attempt %d/%d failed, retrying in %s: %v", attempt, x.opts.MaxAttempts, delay, err)
		if err := sleepCtx(ctx, delay); err != nil {
			r.abort(stage, Failure, err)
			return nil, nil
		}
	}
}

func (x *deployment) connect(ctx context.Context, ep session.Endpoint, creds session.Credentials) (session.Conn, session.Session, Stage, error) {
	x.report.FinalStage = StageConnecting
	dctx, cancel := context.WithTimeout(ctx, x.opts.ConnectTimeout)
	conn, err := x.Dialer.Dial(dctx, ep)
	cancel()
	if err != nil {
		return nil, nil, StageConnecting, err
	}

	x.report.FinalStage = StageAuthenticating
	actx, cancel := context.WithTimeout(ctx, x.opts.ConnectTimeout)
	sess, err := conn.Authenticate(actx, creds)
	cancel()
	if err != nil {
		conn.Close()
		return nil, nil, StageAuthenticating, err
	}
	return conn, sess, StageAuthenticating, nil
}

// send writes one line with the per-command timeout
func (x *deployment) send(ctx context.Context, sess session.Session, line string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, x.opts.CommandTimeout)
	defer cancel()
	return sess.Send(cctx, line)
}

// elevate enters privileged mode and disables paging. Only read-only lines
// and the enable secret are sent.
func (x *deployment) elevate(ctx context.Context, sess session.Session, creds session.Credentials) error {
	x.report.FinalStage = StagePrivilegeElevating
	dl := x.dialect

	resp, err := x.send(ctx, sess, dl.EnableCommand)
	if err != nil {
		return err
	}
	if dl.PasswordPrompt.MatchString(resp) {
		if creds.EnableSecret == "" {
			return &session.AuthError{Username: creds.Username, Address: x.report.ManagementAddress,
				Err: errors.New("device asked for an enable secret but none was provided")}
		}
		if resp, err = x.send(ctx, sess, creds.EnableSecret); err != nil {
			return err
		}
	}
	if !dl.PrivilegedPrompt.MatchString(resp) {
		return &session.AuthError{Username: creds.Username, Address: x.report.ManagementAddress,
			Err: fmt.Errorf("privilege elevation refused: %s", dl.StripPrompt(resp))}
	}

	for _, line := range dl.DisablePaging {
		resp, err := x.send(ctx, sess, line)
		if err != nil {
			return err
		}
		if dl.IsRejected(resp) {
			x.report.warnf("%q rejected: %s", line, dl.StripPrompt(resp))
		}
	}
	return nil
}

func (x *deployment) stageLog(stage Stage) *logrus.Entry {
	return util.WithStage(x.report.Hostname, string(stage)).WithField("run", x.RunID)
}

// apply sends the plan body in config mode, then saves and verifies
func (x *deployment) apply(ctx context.Context, sess session.Session, plan *compiler.CommandPlan) {
	r := x.report
	dl := x.dialect
	r.FinalStage = StageApplying
	log := x.stageLog(StageApplying)

	body, save := plan.Split(dl)
	if save == "" {
		save = dl.SaveCommand
	}

	resp, err := x.send(ctx, sess, dl.ConfigEnter)
	if err == nil && dl.IsRejected(resp) {
		err = fmt.Errorf("entering configuration mode: %s", dl.StripPrompt(resp))
	}
	if err != nil {
		r.abort(StageApplying, Failure, err)
		return
	}

	rejects := 0
	for i, line := range body {
		if err := ctx.Err(); err != nil {
			r.abort(StageApplying, outcomeAfter(rejects), fmt.Errorf("stopped after %d of %d commands: %w", i, len(body), err))
			log.Warnf("%v; applied commands are not rolled back", r.err)
			return
		}

		resp, err := x.send(ctx, sess, line)
		entry := CommandResult{Command: line, Sent: true, Timestamp: time.Now().UTC(), DeviceResponse: dl.StripPrompt(resp)}
		if err != nil {
			r.Commands = append(r.Commands, entry)
			r.abort(StageApplying, outcomeAfter(rejects), fmt.Errorf("sending %q: %w", line, err))
			return
		}

		entry.Accepted = !dl.IsRejected(resp)
		r.Commands = append(r.Commands, entry)
		if entry.Accepted {
			continue
		}

		rejects++
		rejected := &util.CommandRejectedError{Device: r.Hostname, Command: line, Response: entry.DeviceResponse}
		log.Warnf("%v", rejected)
		if x.opts.RejectPolicy == RejectAbort {
			r.abort(StageApplying, PartialFailure, rejected)
			return
		}
	}

	if _, err := x.send(ctx, sess, dl.ConfigExit); err != nil {
		r.abort(StageApplying, outcomeAfter(rejects), fmt.Errorf("leaving configuration mode: %w", err))
		return
	}

	if rejects > 0 {
		r.Outcome = PartialFailure
		r.setErr(fmt.Errorf("%d of %d commands rejected: %w", rejects, len(body), util.ErrCommandRejected))
		r.warnf("configuration not saved because %d command(s) were rejected", rejects)
	} else {
		x.save(ctx, sess, save, plan)
	}

	if x.opts.Verify {
		x.verify(ctx, sess, body)
	}
}

func outcomeAfter(rejects int) Outcome {
	if rejects > 0 {
		return PartialFailure
	}
	return Failure
}

func (x *deployment) save(ctx context.Context, sess session.Session, line string, plan *compiler.CommandPlan) {
	r := x.report
	dl := x.dialect
	r.FinalStage = StageSaving

	resp, err := x.send(ctx, sess, line)
	if err != nil || !dl.SaveAcknowledged(resp) {
		r.Outcome = PartialFailure
		r.setErr(&util.PersistError{Device: r.Hostname, Response: dl.StripPrompt(resp), Err: err})
		x.stageLog(StageSaving).Warnf("%v", r.err)
		return
	}

	r.SavedConfig = true
	r.Outcome = Success
	x.stageLog(StageSaving).Infof("configuration saved (%d commands)", len(r.Commands))

	if x.Hashes != nil {
		rec := state.AppliedRecord{PlanHash: plan.Hash(), RunID: x.RunID, AppliedAt: time.Now().UTC()}
		if err := x.Hashes.RecordApplied(ctx, r.Hostname, rec); err != nil {
			r.warnf("recording applied plan hash: %v", err)
		}
	}
}

// verify re-reads the running configuration. Missing lines are warnings.
func (x *deployment) verify(ctx context.Context, sess session.Session, body []string) {
	r := x.report
	r.FinalStage = StageVerifying

	resp, err := x.send(ctx, sess, x.dialect.VerifyCommand)
	if err != nil {
		r.warnf("verification skipped: %v", err)
		return
	}
	missing := x.missingLines(resp, body)
	if len(missing) > 0 {
		r.warnf("%d applied line(s) not found in running configuration, first: %q", len(missing), missing[0])
		return
	}
	r.Verified = true
}
