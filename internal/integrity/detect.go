// Package integrity detects device compromise (root/jailbreak) through
// five independent, additively weighted heuristics. Scoring is
// deterministic and explainable — cumulative weights, not anomaly
// detection. Any heuristic whose underlying probe errors counts as
// not triggered: absence of evidence, never evidence of tampering.
package integrity

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Heuristic weights. The sum of triggered weights, capped at 1.0, is
// the device risk level.
const (
	WeightPrivilegedBinary = 0.40
	WeightManagementApp    = 0.30
	WeightTestKeysBuild    = 0.20
	WeightWritableSystem   = 0.15
	WeightPermissiveMAC    = 0.15
)

// CompromiseThreshold is the risk level at or above which the device
// is reported as compromised.
const CompromiseThreshold = 0.30

// PrivilegedBinaryPaths are the filesystem locations checked (in order)
// for a known elevated-access binary. Override for testing.
var PrivilegedBinaryPaths = []string{
	"/system/bin/su",
	"/system/xbin/su",
	"/sbin/su",
	"/system/sd/xbin/su",
	"/system/bin/failsafe/su",
	"/data/local/xbin/su",
	"/data/local/bin/su",
	"/data/local/su",
	"/su/bin/su",
}

// ManagementPackages are the root-management package identifiers looked
// up against the OS package registry. Override for testing.
var ManagementPackages = []string{
	"com.topjohnwu.magisk",
	"eu.chainfire.supersu",
	"com.koushikdutta.superuser",
	"com.noshufou.android.su",
	"com.thirdparty.superuser",
	"com.kingroot.kinguser",
}

// ProtectedDirs are normally read-only system directories probed for
// write access. Override for testing.
var ProtectedDirs = []string{
	"/system",
	"/system/bin",
	"/system/sbin",
	"/system/xbin",
	"/vendor/bin",
	"/etc",
}

// Report is the structured verdict of a device integrity scan.
type Report struct {
	Compromised bool     `json:"is_compromised"`
	Threats     []string `json:"threats"`
	RiskLevel   float64  `json:"risk_level"`
}

// Env abstracts the platform surfaces the heuristics probe. Every
// function may return an error; an erroring probe is treated as not
// triggered. The zero-value hooks fall back to the real OS.
type Env struct {
	// StatExecutable reports whether an executable file exists at path.
	StatExecutable func(path string) (bool, error)
	// PackageInstalled resolves a package identifier in the OS registry.
	PackageInstalled func(id string) (bool, error)
	// BuildTags returns the OS build signing tags (e.g. "test-keys").
	BuildTags func() (string, error)
	// DirWritable reports whether the directory at path is writable.
	DirWritable func(path string) (bool, error)
	// MACMode returns the mandatory access control mode (e.g.
	// "Enforcing" or "Permissive").
	MACMode func(ctx context.Context) (string, error)
}

// Detector runs the compromise heuristics against an Env.
type Detector struct {
	env Env
}

// NewDetector creates a Detector. Nil hooks in env are replaced with
// the host defaults.
func NewDetector(env Env) *Detector {
	if env.StatExecutable == nil {
		env.StatExecutable = hostStatExecutable
	}
	if env.PackageInstalled == nil {
		env.PackageInstalled = hostPackageInstalled
	}
	if env.BuildTags == nil {
		env.BuildTags = hostBuildTags
	}
	if env.DirWritable == nil {
		env.DirWritable = hostDirWritable
	}
	if env.MACMode == nil {
		env.MACMode = hostMACMode
	}
	return &Detector{env: env}
}

// Detect runs all five heuristics and returns the verdict. Heuristics
// never abort each other; a probe error only suppresses its own weight.
func (d *Detector) Detect(ctx context.Context) Report {
	var report Report

	if d.privilegedBinaryPresent() {
		report.RiskLevel += WeightPrivilegedBinary
		report.Threats = append(report.Threats, "privileged binary present on filesystem")
	}

	if d.managementAppInstalled() {
		report.RiskLevel += WeightManagementApp
		report.Threats = append(report.Threats, "root management app installed")
	}

	if d.testKeysBuild() {
		report.RiskLevel += WeightTestKeysBuild
		report.Threats = append(report.Threats, "OS build signed with test keys")
	}

	if d.writableSystemDir() {
		report.RiskLevel += WeightWritableSystem
		report.Threats = append(report.Threats, "protected system directory is writable")
	}

	if d.permissiveMAC(ctx) {
		report.RiskLevel += WeightPermissiveMAC
		report.Threats = append(report.Threats, "mandatory access control in permissive mode")
	}

	if report.RiskLevel > 1.0 {
		report.RiskLevel = 1.0
	}
	report.Compromised = report.RiskLevel >= CompromiseThreshold

	return report
}

func (d *Detector) privilegedBinaryPresent() bool {
	for _, p := range PrivilegedBinaryPaths {
		found, err := d.env.StatExecutable(p)
		if err != nil {
			continue
		}
		if found {
			return true
		}
	}
	return false
}

func (d *Detector) managementAppInstalled() bool {
	for _, id := range ManagementPackages {
		installed, err := d.env.PackageInstalled(id)
		if err != nil {
			continue
		}
		if installed {
			return true
		}
	}
	return false
}

func (d *Detector) testKeysBuild() bool {
	tags, err := d.env.BuildTags()
	if err != nil {
		return false
	}
	return strings.Contains(tags, "test-keys")
}

func (d *Detector) writableSystemDir() bool {
	for _, dir := range ProtectedDirs {
		writable, err := d.env.DirWritable(dir)
		if err != nil {
			continue
		}
		if writable {
			return true
		}
	}
	return false
}

func (d *Detector) permissiveMAC(ctx context.Context) bool {
	mode, err := d.env.MACMode(ctx)
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(mode), "permissive")
}

// Host default hooks.

func hostStatExecutable(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir() && info.Mode().Perm()&0111 != 0, nil
}

// hostPackageInstalled shells out to the platform package manager.
// Off-device (no pm binary) every lookup errors, which the detector
// treats as not triggered.
func hostPackageInstalled(id string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "pm", "path", id).Output()
	if err != nil {
		return false, err
	}
	return strings.Contains(string(out), "package:"), nil
}

func hostBuildTags() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "getprop", "ro.build.tags").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func hostDirWritable(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return false, err
	}
	if !info.IsDir() {
		return false, nil
	}
	f, err := os.CreateTemp(dir, ".txguard-*")
	if err != nil {
		return false, nil // denied — the normal, healthy case
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true, nil
}

func hostMACMode(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "getenforce").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
