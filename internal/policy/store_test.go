package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func storePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "policy.json")
}

func TestMissingFileYieldsStrictDefaults(t *testing.T) {
	s, err := NewStore(storePath(t))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if s.Active() != Strict() {
		t.Errorf("expected strict defaults, got %+v", s.Active())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := storePath(t)
	want := Relaxed()
	want.MaxAllowedRiskScore = 0.33

	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Errorf("round trip changed policy: got %+v, want %+v", got, want)
	}
}

func TestAbsentFieldsKeepDefaults(t *testing.T) {
	path := storePath(t)
	// An older file that only knows about two fields.
	if err := os.WriteFile(path, []byte(`{"requireBiometrics": false, "maxAllowedRiskScore": 0.5}`), 0600); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.RequireBiometrics {
		t.Error("explicit false must override the default")
	}
	if got.MaxAllowedRiskScore != 0.5 {
		t.Errorf("maxAllowedRiskScore = %v, want 0.5", got.MaxAllowedRiskScore)
	}
	// Absent booleans fall back to the strict defaults, not zero values.
	if !got.OverlayProtectionEnabled || !got.BlockCompromisedDevices {
		t.Errorf("absent fields must keep strict defaults, got %+v", got)
	}
}

func TestCorruptFileIsAnError(t *testing.T) {
	path := storePath(t)
	if err := os.WriteFile(path, []byte(`{not json`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("corrupt policy file must be an error, never a silent fallback")
	}
}

func TestOutOfRangeFileRejected(t *testing.T) {
	path := storePath(t)
	if err := os.WriteFile(path, []byte(`{"maxAllowedRiskScore": 3.0}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("out-of-range threshold must be rejected on load")
	}
}

func TestToggleIsIdempotentComplement(t *testing.T) {
	s, err := NewStore(storePath(t))
	if err != nil {
		t.Fatal(err)
	}

	flags := []string{FlagOverlay, FlagRecording, FlagScreenshot, FlagBlockCompromised, FlagRequireBiometrics}
	for _, flag := range flags {
		before := s.Active()
		if err := s.Toggle(flag); err != nil {
			t.Fatalf("Toggle(%s): %v", flag, err)
		}
		if err := s.Toggle(flag); err != nil {
			t.Fatalf("Toggle(%s) second: %v", flag, err)
		}
		if s.Active() != before {
			t.Errorf("double toggle of %s changed policy: %+v vs %+v", flag, s.Active(), before)
		}
	}
}

func TestToggleFlipsExactlyOneFlag(t *testing.T) {
	s, err := NewStore(storePath(t))
	if err != nil {
		t.Fatal(err)
	}

	before := s.Active()
	if err := s.Toggle(FlagRecording); err != nil {
		t.Fatal(err)
	}
	after := s.Active()

	if after.RecordingDetectionEnabled == before.RecordingDetectionEnabled {
		t.Error("toggled flag did not flip")
	}
	after.RecordingDetectionEnabled = before.RecordingDetectionEnabled
	if after != before {
		t.Errorf("toggle changed more than one flag: %+v vs %+v", after, before)
	}
}

func TestToggleUnknownFlag(t *testing.T) {
	s, err := NewStore(storePath(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Toggle("noSuchFlag"); err == nil {
		t.Error("unknown flag must be an error")
	}
}

func TestTogglePersists(t *testing.T) {
	path := storePath(t)
	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Toggle(FlagRequireBiometrics); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Active() != s.Active() {
		t.Errorf("persisted policy differs: %+v vs %+v", reopened.Active(), s.Active())
	}
}

func TestApplyPresetReplacesAndPersists(t *testing.T) {
	path := storePath(t)
	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyPreset(PresetRelaxed); err != nil {
		t.Fatal(err)
	}
	if s.Active() != Relaxed() {
		t.Errorf("expected relaxed preset active, got %+v", s.Active())
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != Relaxed() {
		t.Errorf("expected relaxed preset on disk, got %+v", got)
	}
}

func TestSetMaxRiskScoreValidates(t *testing.T) {
	s, err := NewStore(storePath(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetMaxRiskScore(1.5); err == nil {
		t.Error("out-of-range score must be rejected")
	}
	if err := s.SetMaxRiskScore(0.25); err != nil {
		t.Fatalf("valid score rejected: %v", err)
	}
	if s.Active().MaxAllowedRiskScore != 0.25 {
		t.Errorf("score not applied: %v", s.Active().MaxAllowedRiskScore)
	}
}

func TestReloadPicksUpExternalEdit(t *testing.T) {
	path := storePath(t)
	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := Save(path, Relaxed()); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if s.Active() != Relaxed() {
		t.Errorf("reload did not pick up edit: %+v", s.Active())
	}
}

func TestReloadKeepsPolicyOnBadFile(t *testing.T) {
	path := storePath(t)
	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	before := s.Active()

	if err := os.WriteFile(path, []byte(`garbage`), 0600); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); err == nil {
		t.Error("reload of a corrupt file must report an error")
	}
	if s.Active() != before {
		t.Errorf("corrupt reload must keep the previous policy, got %+v", s.Active())
	}
}
