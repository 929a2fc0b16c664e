package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Flag names accepted by Store.Toggle and the CLI.
const (
	FlagOverlay           = "overlayProtectionEnabled"
	FlagRecording         = "recordingDetectionEnabled"
	FlagScreenshot        = "screenshotDetectionEnabled"
	FlagBlockCompromised  = "blockCompromisedDevices"
	FlagRequireBiometrics = "requireBiometrics"
)

// Store is the single configuration owner for a SecurityPolicy. Reads
// return a copy; updates are serialized and persisted before they
// become visible.
type Store struct {
	path string

	mu     sync.RWMutex
	active SecurityPolicy
}

// fileSchema mirrors SecurityPolicy with pointer fields so that absent
// keys in an older persisted file fall back to defaults instead of
// zero values (forward-compatible schema).
type fileSchema struct {
	OverlayProtectionEnabled   *bool    `json:"overlayProtectionEnabled"`
	RecordingDetectionEnabled  *bool    `json:"recordingDetectionEnabled"`
	ScreenshotDetectionEnabled *bool    `json:"screenshotDetectionEnabled"`
	BlockCompromisedDevices    *bool    `json:"blockCompromisedDevices"`
	RequireBiometrics          *bool    `json:"requireBiometrics"`
	MaxAllowedRiskScore        *float64 `json:"maxAllowedRiskScore"`
}

// NewStore loads the policy at path. A missing file yields the strict
// preset (the gate defaults safe); a corrupt file is an error, never a
// silent fallback to a weaker policy.
func NewStore(path string) (*Store, error) {
	p, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, active: p}, nil
}

// Load reads a SecurityPolicy from a flat JSON file. Fields absent
// from the file keep their strict-preset defaults.
func Load(path string) (SecurityPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Strict(), nil
		}
		return SecurityPolicy{}, fmt.Errorf("read policy: %w", err)
	}

	var fs fileSchema
	if err := json.Unmarshal(data, &fs); err != nil {
		return SecurityPolicy{}, fmt.Errorf("parse policy %s: %w", path, err)
	}

	p := Strict()
	if fs.OverlayProtectionEnabled != nil {
		p.OverlayProtectionEnabled = *fs.OverlayProtectionEnabled
	}
	if fs.RecordingDetectionEnabled != nil {
		p.RecordingDetectionEnabled = *fs.RecordingDetectionEnabled
	}
	if fs.ScreenshotDetectionEnabled != nil {
		p.ScreenshotDetectionEnabled = *fs.ScreenshotDetectionEnabled
	}
	if fs.BlockCompromisedDevices != nil {
		p.BlockCompromisedDevices = *fs.BlockCompromisedDevices
	}
	if fs.RequireBiometrics != nil {
		p.RequireBiometrics = *fs.RequireBiometrics
	}
	if fs.MaxAllowedRiskScore != nil {
		p.MaxAllowedRiskScore = *fs.MaxAllowedRiskScore
	}
	if err := p.Validate(); err != nil {
		return SecurityPolicy{}, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

// Save writes the policy as flat JSON, atomically (write temp, rename).
func Save(path string, p SecurityPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create policy directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".policy-*")
	if err != nil {
		return fmt.Errorf("write policy: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write policy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write policy: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write policy: %w", err)
	}
	return nil
}

// Active returns a copy of the current policy.
func (s *Store) Active() SecurityPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Replace swaps in a whole new policy and persists it.
func (s *Store) Replace(p SecurityPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := Save(s.path, p); err != nil {
		return err
	}
	s.active = p
	return nil
}

// ApplyPreset replaces the active policy with a named preset.
func (s *Store) ApplyPreset(name string) error {
	p, err := Preset(name)
	if err != nil {
		return err
	}
	return s.Replace(p)
}

// Toggle flips a single boolean flag and persists the result.
// Toggling twice restores the original policy.
func (s *Store) Toggle(flag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.active
	switch flag {
	case FlagOverlay:
		p.OverlayProtectionEnabled = !p.OverlayProtectionEnabled
	case FlagRecording:
		p.RecordingDetectionEnabled = !p.RecordingDetectionEnabled
	case FlagScreenshot:
		p.ScreenshotDetectionEnabled = !p.ScreenshotDetectionEnabled
	case FlagBlockCompromised:
		p.BlockCompromisedDevices = !p.BlockCompromisedDevices
	case FlagRequireBiometrics:
		p.RequireBiometrics = !p.RequireBiometrics
	default:
		return fmt.Errorf("unknown policy flag %q", flag)
	}

	if err := Save(s.path, p); err != nil {
		return err
	}
	s.active = p
	return nil
}

// SetMaxRiskScore updates the acceptance threshold and persists it.
func (s *Store) SetMaxRiskScore(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.active
	p.MaxAllowedRiskScore = v
	if err := Save(s.path, p); err != nil {
		return err
	}
	s.active = p
	return nil
}

// Reload re-reads the policy file, keeping the current policy if the
// file is unreadable or invalid. Used by the file watcher.
func (s *Store) Reload() error {
	p, err := Load(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.active = p
	s.mu.Unlock()
	return nil
}
