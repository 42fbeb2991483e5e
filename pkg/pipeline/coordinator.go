// Package pipeline runs a batch of device intents end to end: validate
// everything, compile what is valid, then deploy concurrently with a
// bounded worker pool. One bad device never blocks the rest of the fleet.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/netcfg-io/netcfg/pkg/compiler"
	"github.com/netcfg-io/netcfg/pkg/deploy"
	"github.com/netcfg-io/netcfg/pkg/intent"
	"github.com/netcfg-io/netcfg/pkg/session"
	"github.com/netcfg-io/netcfg/pkg/util"
	"github.com/netcfg-io/netcfg/pkg/validate"
)

// DefaultConcurrency is the number of devices deployed at once
const DefaultConcurrency = 5

// Coordinator runs pipelines
type Coordinator struct {
	Deployer    *deploy.Deployer
	Credentials CredentialResolver
	Concurrency int
}

// Result holds one entry per input intent in every map, keyed by Keys
type Result struct {
	RunID       string                           `json:"runId"`
	Mode        deploy.Mode                      `json:"mode"`
	StartedAt   time.Time                        `json:"startedAt"`
	DurationMs  int64                            `json:"durationMs"`
	Keys        []string                         `json:"keys"`
	Diagnostics map[string][]intent.Diagnostic   `json:"diagnostics"`
	Reports     map[string]*deploy.Report        `json:"reports"`
	Plans       map[string]*compiler.CommandPlan `json:"plans,omitempty"`
	Overall     deploy.Outcome                   `json:"overallOutcome"`
}

// job is one compiled intent waiting for deployment
type job struct {
	key   string
	plan  *compiler.CommandPlan
	ep    session.Endpoint
	creds session.Credentials
}

// Run validates, compiles and deploys intents. mode is required.
func (c *Coordinator) Run(ctx context.Context, intents []*intent.DeviceIntent, mode deploy.Mode) *Result {
	start := time.Now()
	res := &Result{
		RunID:       c.Deployer.RunID,
		Mode:        mode,
		StartedAt:   start.UTC(),
		Keys:        Keys(intents),
		Diagnostics: make(map[string][]intent.Diagnostic, len(intents)),
		Reports:     make(map[string]*deploy.Report, len(intents)),
		Plans:       make(map[string]*compiler.CommandPlan),
	}
	log := util.WithRun(res.RunID)
	log.Infof("run started: %d intent(s), mode %s", len(intents), mode)

	dups := validate.DuplicateHostnames(intents)
	var jobs []job
	for i, doc := range intents {
		key := res.Keys[i]

		diags := validate.Validate(doc)
		if d, ok := dups[i]; ok {
			diags = append(diags, d)
		}
		if diags == nil {
			diags = []intent.Diagnostic{}
		}
		res.Diagnostics[key] = diags

		if intent.HasErrors(diags) {
			c.skip(res, key, doc, deploy.SkippedValidationFailed, intent.AsError(diags))
			log.WithField("device", key).Warnf("skipped: %d validation error(s)", len(intent.Errors(diags)))
			continue
		}

		plan, err := compiler.Compile(doc)
		if err != nil {
			c.skip(res, key, doc, deploy.Failure, err)
			continue
		}
		res.Plans[key] = plan

		creds, err := c.Credentials.Resolve(doc)
		if err != nil {
			c.skip(res, key, doc, deploy.Failure, fmt.Errorf("resolving credentials: %w", err))
			log.WithField("device", key).Errorf("%v", err)
			continue
		}

		jobs = append(jobs, job{
			key:   key,
			plan:  plan,
			ep:    session.Endpoint{Hostname: doc.Hostname, Address: doc.ManagementAddress, DeviceType: doc.DeviceType},
			creds: creds,
		})
	}

	limit := c.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(limit)
	for _, j := range jobs {
		g.Go(func() error {
			r := c.Deployer.Deploy(ctx, j.plan, j.ep, j.creds, mode)
			mu.Lock()
			res.Reports[j.key] = r
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	res.Overall = overall(res, mode)
	res.DurationMs = time.Since(start).Milliseconds()
	log.Infof("run finished: %s in %s", res.Overall, time.Since(start).Round(time.Millisecond))
	return res
}

func (c *Coordinator) skip(res *Result, key string, doc *intent.DeviceIntent, outcome deploy.Outcome, err error) {
	r := deploy.NewSkippedReport(doc.Hostname, doc.ManagementAddress, res.Mode, outcome, err)
	res.Reports[key] = r
	c.Deployer.Record(r)
}

// overall is Success only when no intent has error diagnostics and every
// report is the clean outcome for mode
func overall(res *Result, mode deploy.Mode) deploy.Outcome {
	if !mode.Valid() {
		return deploy.Failure
	}
	for _, key := range res.Keys {
		if intent.HasErrors(res.Diagnostics[key]) {
			return deploy.Failure
		}
		r, ok := res.Reports[key]
		if !ok || !r.Outcome.CleanFor(mode) {
			return deploy.Failure
		}
	}
	return deploy.Success
}

// Keys returns a unique result key for each intent: the hostname,
// "intent-<n>" when the hostname is missing, and "<hostname>#<n>" for later
// duplicates. n is the 1-based batch position. A generated key that clashes
// with a hostname in the batch or an earlier key gets another "#<n>" suffix.
func Keys(intents []*intent.DeviceIntent) []string {
	keys := make([]string, len(intents))
	hostnames := make(map[string]bool, len(intents))
	for _, doc := range intents {
		if doc.Hostname != "" {
			hostnames[doc.Hostname] = true
		}
	}
	issued := make(map[string]bool, len(intents))
	claimed := make(map[string]bool, len(intents))
	for i, doc := range intents {
		key := doc.Hostname
		switch {
		case key == "":
			key = fmt.Sprintf("intent-%d", i+1)
		case claimed[key]:
			key = fmt.Sprintf("%s#%d", key, i+1)
		default:
			claimed[key] = true
			issued[key] = true
			keys[i] = key
			continue
		}
		for issued[key] || hostnames[key] {
			key = fmt.Sprintf("%s#%d", key, i+1)
		}
		issued[key] = true
		keys[i] = key
	}
	return keys
}

// Counts tallies report outcomes
func (r *Result) Counts() map[deploy.Outcome]int {
	counts := make(map[deploy.Outcome]int)
	for _, rep := range r.Reports {
		counts[rep.Outcome]++
	}
	return counts
}
