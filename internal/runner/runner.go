// Package runner executes the security check pipeline: the device
// integrity probe plus every policy-enabled capability probe, in
// parallel, each bounded by a short timeout. One broken probe never
// aborts the batch.
package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mkravets/txguard/internal/integrity"
	"github.com/mkravets/txguard/internal/model"
	"github.com/mkravets/txguard/internal/policy"
	"github.com/mkravets/txguard/internal/probe"
)

// DefaultProbeTimeout bounds each probe invocation. A probe that does
// not answer in time is recorded as failed — a hung probe must not
// silently authorize signing.
const DefaultProbeTimeout = 2 * time.Second

// SeverityProbeError is assigned when a probe errors or times out.
const SeverityProbeError = 0.5

// Hooks bundles the OS hooks behind the capability probes.
type Hooks struct {
	Overlay    probe.Hook
	Recording  probe.Hook
	Screenshot probe.Hook
}

// Runner runs the enabled probes and returns their results in the
// declared order: device integrity first, then capability probes in
// policy order.
type Runner struct {
	detector *integrity.Detector
	overlay  *probe.Probe
	record   *probe.Probe
	shot     *probe.Probe
	timeout  time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout overrides the per-probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// New creates a Runner over a detector and hook set. Nil hooks behave
// as unsupported, so the corresponding probe always passes when run.
func New(detector *integrity.Detector, hooks Hooks, opts ...Option) *Runner {
	r := &Runner{
		detector: detector,
		overlay:  probe.Overlay(hooks.Overlay),
		record:   probe.Recording(hooks.Recording),
		shot:     probe.Screenshot(hooks.Screenshot),
		timeout:  DefaultProbeTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes the integrity probe and each capability probe enabled
// by pol, concurrently. It blocks until every started probe has
// returned or timed out, then returns results in declared order.
// Disabled probes are skipped entirely — they do not appear in the
// output at all.
func (r *Runner) Run(ctx context.Context, pol policy.SecurityPolicy) []model.CheckResult {
	type slot struct {
		name string
		run  func(context.Context) (model.CheckResult, error)
	}

	slots := []slot{{probe.CheckDeviceIntegrity, r.runIntegrity}}
	if pol.OverlayProtectionEnabled {
		slots = append(slots, slot{r.overlay.Name(), adapt(r.overlay)})
	}
	if pol.RecordingDetectionEnabled {
		slots = append(slots, slot{r.record.Name(), adapt(r.record)})
	}
	if pol.ScreenshotDetectionEnabled {
		slots = append(slots, slot{r.shot.Name(), adapt(r.shot)})
	}

	results := make([]model.CheckResult, len(slots))
	var wg sync.WaitGroup
	for i, s := range slots {
		wg.Add(1)
		go func(i int, s slot) {
			defer wg.Done()
			results[i] = r.runBounded(ctx, s.name, s.run)
		}(i, s)
	}
	wg.Wait()

	return results
}

// runBounded runs one probe under the per-probe timeout. The timer and
// the probe race; a probe that loses is abandoned and its eventual
// answer discarded.
func (r *Runner) runBounded(ctx context.Context, name string, run func(context.Context) (model.CheckResult, error)) model.CheckResult {
	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		result model.CheckResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := run(pctx)
		done <- outcome{res, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return model.FailedCheck(name, fmt.Sprintf("probe error: %v", out.err), SeverityProbeError)
		}
		return out.result
	case <-pctx.Done():
		return model.FailedCheck(name, "probe timed out", SeverityProbeError)
	}
}

// runIntegrity maps the device compromise report into a CheckResult.
func (r *Runner) runIntegrity(ctx context.Context) (model.CheckResult, error) {
	report := r.detector.Detect(ctx)
	if report.Compromised {
		return model.FailedCheck(probe.CheckDeviceIntegrity, strings.Join(report.Threats, "; "), report.RiskLevel), nil
	}
	return model.PassedCheck(probe.CheckDeviceIntegrity), nil
}

func adapt(p *probe.Probe) func(context.Context) (model.CheckResult, error) {
	return func(context.Context) (model.CheckResult, error) {
		return p.Check()
	}
}
