// Package policy holds the security policy that decides which probes
// run and what risk the gate tolerates.
package policy

import "fmt"

// SecurityPolicy configures the transaction security gate. It is read
// concurrently by probes and decisions; all mutation goes through a
// Store, which serializes updates.
type SecurityPolicy struct {
	OverlayProtectionEnabled   bool    `json:"overlayProtectionEnabled"`
	RecordingDetectionEnabled  bool    `json:"recordingDetectionEnabled"`
	ScreenshotDetectionEnabled bool    `json:"screenshotDetectionEnabled"`
	BlockCompromisedDevices    bool    `json:"blockCompromisedDevices"`
	RequireBiometrics          bool    `json:"requireBiometrics"`
	MaxAllowedRiskScore        float64 `json:"maxAllowedRiskScore"`
}

// Preset names accepted by Preset and the CLI.
const (
	PresetStrict  = "strict"
	PresetRelaxed = "relaxed"
)

// Strict is the default posture: every probe on, biometrics required,
// near-zero risk tolerance.
func Strict() SecurityPolicy {
	return SecurityPolicy{
		OverlayProtectionEnabled:   true,
		RecordingDetectionEnabled:  true,
		ScreenshotDetectionEnabled: true,
		BlockCompromisedDevices:    true,
		RequireBiometrics:          true,
		MaxAllowedRiskScore:        0.1,
	}
}

// Relaxed turns every optional probe off and tolerates substantial
// risk. Intended for development devices, not production wallets.
func Relaxed() SecurityPolicy {
	return SecurityPolicy{
		OverlayProtectionEnabled:   false,
		RecordingDetectionEnabled:  false,
		ScreenshotDetectionEnabled: false,
		BlockCompromisedDevices:    false,
		RequireBiometrics:          false,
		MaxAllowedRiskScore:        0.7,
	}
}

// Preset returns the named preset. Unknown names are an error, never a
// silent fallback.
func Preset(name string) (SecurityPolicy, error) {
	switch name {
	case PresetStrict:
		return Strict(), nil
	case PresetRelaxed:
		return Relaxed(), nil
	default:
		return SecurityPolicy{}, fmt.Errorf("unknown policy preset %q (want %s or %s)", name, PresetStrict, PresetRelaxed)
	}
}

// Validate rejects policies with an out-of-range risk threshold.
func (p SecurityPolicy) Validate() error {
	if p.MaxAllowedRiskScore < 0 || p.MaxAllowedRiskScore > 1 {
		return fmt.Errorf("maxAllowedRiskScore %v out of range [0,1]", p.MaxAllowedRiskScore)
	}
	return nil
}
