package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func logPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "decisions.jsonl")
}

func TestRecordAndVerifyChain(t *testing.T) {
	path := logPath(t)
	log, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	entries := []Entry{
		{Outcome: "signed", TxHash: "0xabc", RiskScore: 0.0, IsSecure: true},
		{Outcome: "rejected", RiskScore: 0.9, FailedChecks: []FailedCheck{{Name: "device_integrity", Reason: "rooted", Severity: 0.7}}},
		{Outcome: "auth_denied"},
	}
	for _, e := range entries {
		if err := log.Record(e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	log.Close()

	result := Verify(path)
	if !result.Valid {
		t.Fatalf("chain invalid: %+v", result)
	}
	if result.Lines != len(entries) {
		t.Errorf("expected %d lines, got %d", len(entries), result.Lines)
	}
}

func TestFirstEntryReferencesGenesis(t *testing.T) {
	path := logPath(t)
	log, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := log.Record(Entry{Outcome: "signed"}); err != nil {
		t.Fatal(err)
	}
	log.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var e Entry
	if err := json.Unmarshal(data[:len(data)-1], &e); err != nil {
		t.Fatal(err)
	}
	if e.PrevHash != GenesisHash {
		t.Errorf("first entry prev_hash = %q, want genesis", e.PrevHash)
	}
}

func TestReopenContinuesChain(t *testing.T) {
	path := logPath(t)

	log1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := log1.Record(Entry{Outcome: "signed", TxHash: "0x1"}); err != nil {
		t.Fatal(err)
	}
	log1.Close()

	log2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := log2.Record(Entry{Outcome: "rejected"}); err != nil {
		t.Fatal(err)
	}
	log2.Close()

	result := Verify(path)
	if !result.Valid {
		t.Errorf("chain broken across reopen: %+v", result)
	}
	if result.Lines != 2 {
		t.Errorf("expected 2 lines, got %d", result.Lines)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	path := logPath(t)
	log, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := log.Record(Entry{Outcome: "signed"}); err != nil {
			t.Fatal(err)
		}
	}
	log.Close()

	// Rewrite the middle line with a modified outcome.
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	f.Close()

	var tampered Entry
	if err := json.Unmarshal([]byte(lines[1]), &tampered); err != nil {
		t.Fatal(err)
	}
	tampered.Outcome = "rejected"
	edited, _ := json.Marshal(tampered)
	lines[1] = string(edited)

	out := lines[0] + "\n" + lines[1] + "\n" + lines[2] + "\n"
	if err := os.WriteFile(path, []byte(out), 0600); err != nil {
		t.Fatal(err)
	}

	result := Verify(path)
	if result.Valid {
		t.Fatal("tampered log verified as valid")
	}
	if result.ErrorLine != 3 {
		t.Errorf("expected break detected at line 3, got %d (%s)", result.ErrorLine, result.Error)
	}
}

func TestVerifyMissingFile(t *testing.T) {
	result := Verify(filepath.Join(t.TempDir(), "nope.jsonl"))
	if result.Valid {
		t.Error("missing file must not verify")
	}
}
