// Package probe defines capability probes — independent checks for
// screen overlays, screen recording, and screenshot activity — each
// backed by an OS-specific hook and exposed uniformly.
package probe

import "github.com/mkravets/txguard/internal/model"

// Canonical check names, in the declared policy order.
const (
	CheckDeviceIntegrity = "device_integrity"
	CheckOverlay         = "overlay_protection"
	CheckRecording       = "screen_recording"
	CheckScreenshot      = "screenshot_detection"
)

// Severities assigned when a capability probe detects its condition.
// Overlay and recording sit above the critical line: either one blocks
// signing on its own. A screenshot is moderate — it cannot alter the
// confirmation UI, only observe it.
const (
	SeverityOverlay    = 0.9
	SeverityRecording  = 0.8
	SeverityScreenshot = 0.4
)

// Hook is the OS-specific surface behind a capability probe.
// Supported reports whether the platform exposes this signal at all;
// Detect reports whether the condition is currently present.
type Hook interface {
	Supported() bool
	Detect() (bool, error)
}

// Probe is a single capability check.
type Probe struct {
	name     string
	reason   string
	severity float64
	hook     Hook
}

// Name returns the probe's canonical check name.
func (p *Probe) Name() string { return p.name }

// Check runs the probe once. An unsupported hook yields a passed
// result — a platform that cannot observe the condition is treated as
// a non-issue, not an error. A hook error propagates to the caller,
// which is responsible for converting it into a failed result.
func (p *Probe) Check() (model.CheckResult, error) {
	if p.hook == nil || !p.hook.Supported() {
		return model.PassedCheck(p.name), nil
	}
	detected, err := p.hook.Detect()
	if err != nil {
		return model.CheckResult{}, err
	}
	if detected {
		return model.FailedCheck(p.name, p.reason, p.severity), nil
	}
	return model.PassedCheck(p.name), nil
}

// Overlay creates the screen-overlay probe.
func Overlay(hook Hook) *Probe {
	return &Probe{
		name:     CheckOverlay,
		reason:   "another app is drawing over the screen",
		severity: SeverityOverlay,
		hook:     hook,
	}
}

// Recording creates the screen-recording probe.
func Recording(hook Hook) *Probe {
	return &Probe{
		name:     CheckRecording,
		reason:   "screen recording is active",
		severity: SeverityRecording,
		hook:     hook,
	}
}

// Screenshot creates the screenshot-activity probe.
func Screenshot(hook Hook) *Probe {
	return &Probe{
		name:     CheckScreenshot,
		reason:   "screenshot activity detected",
		severity: SeverityScreenshot,
		hook:     hook,
	}
}

// HookFunc adapts two closures into a Hook.
type HookFunc struct {
	SupportedFn func() bool
	DetectFn    func() (bool, error)
}

func (h HookFunc) Supported() bool {
	if h.SupportedFn == nil {
		return false
	}
	return h.SupportedFn()
}

func (h HookFunc) Detect() (bool, error) {
	if h.DetectFn == nil {
		return false, nil
	}
	return h.DetectFn()
}

// Unsupported is a Hook for platforms without the signal. Probes built
// on it always pass.
var Unsupported Hook = HookFunc{}
