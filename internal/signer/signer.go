// Package signer is the top-level orchestrator of the transaction
// security gate: it ensures a valid auth session, runs the security
// pipeline, applies policy, and only then forwards the transaction to
// the external cryptographic signer.
package signer

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mkravets/txguard/internal/audit"
	"github.com/mkravets/txguard/internal/model"
	"github.com/mkravets/txguard/internal/policy"
	"github.com/mkravets/txguard/internal/probe"
	"github.com/mkravets/txguard/internal/risk"
	"github.com/mkravets/txguard/internal/runner"
	"github.com/mkravets/txguard/internal/session"
)

// Signer is the external cryptographic collaborator. Key material
// never passes through the gate.
type Signer interface {
	Sign(ctx context.Context, tx model.TransactionData) (signature []byte, txHash string, err error)
}

// Rejection is the typed outcome of a policy denial. It carries the
// specific failed checks so the caller can present an actionable
// message. It satisfies error for embedders that want error flow, but
// the gate itself returns it inside an Outcome, never throws it.
type Rejection struct {
	FailedChecks []model.CheckResult
	Context      model.SecurityContext
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("signing rejected (risk %.2f): %s", r.Context.RiskScore, strings.Join(r.Reasons(), "; "))
}

// Reasons returns one human-readable line per failed check.
func (r *Rejection) Reasons() []string {
	reasons := make([]string, 0, len(r.FailedChecks))
	for _, chk := range r.FailedChecks {
		reasons = append(reasons, fmt.Sprintf("%s: %s", chk.Name, chk.FailureReason))
	}
	return reasons
}

// Outcome is how a signing attempt ended. Exactly one of Signed,
// Rejected, or Err is set, matching Kind.
type Outcome struct {
	Kind     model.OutcomeKind
	Signed   *model.SignedTransaction
	Rejected *Rejection
	Err      error
}

// SecureSigner gates every signing attempt behind authentication and a
// fresh security evaluation. Collaborators are injected once at
// construction; there is no ambient lookup.
type SecureSigner struct {
	policies *policy.Store
	sessions *session.Manager
	checks   *runner.Runner
	crypto   Signer
	log      *audit.Log
	now      func() time.Time
}

// Option configures a SecureSigner.
type Option func(*SecureSigner)

// WithAuditLog records every attempt's outcome in the decision log.
func WithAuditLog(log *audit.Log) Option {
	return func(s *SecureSigner) { s.log = log }
}

// WithClock injects a clock for deterministic context timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SecureSigner) { s.now = now }
}

// New creates a SecureSigner.
func New(policies *policy.Store, sessions *session.Manager, checks *runner.Runner, crypto Signer, opts ...Option) *SecureSigner {
	s := &SecureSigner{
		policies: policies,
		sessions: sessions,
		checks:   checks,
		crypto:   crypto,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SignTransaction runs the full gate for one transaction. Each attempt
// is independently evaluated against a fresh SecurityContext; a stale
// context is never reused. Cancellation is honored up to the signing
// transition and ignored after it — a transaction must not be
// half-signed.
func (s *SecureSigner) SignTransaction(ctx context.Context, tx model.TransactionData, reason string) Outcome {
	pol := s.policies.Active()

	// Fail closed before any risk evaluation: no checks run, nothing
	// signed, when authentication is required and not granted.
	if pol.RequireBiometrics {
		ok, err := s.sessions.EnsureAuthenticated(ctx, reason)
		if err != nil {
			return s.record(Outcome{Kind: model.OutcomeError, Err: fmt.Errorf("authentication session: %w", err)}, model.SecurityContext{}, "")
		}
		if !ok {
			return s.record(Outcome{Kind: model.OutcomeAuthDenied}, model.SecurityContext{}, "")
		}
	}

	if err := ctx.Err(); err != nil {
		return Outcome{Kind: model.OutcomeError, Err: err}
	}

	results := s.checks.Run(ctx, pol)
	sctx := risk.Aggregate(results, pol, s.now())

	if rej := evaluate(pol, sctx); rej != nil {
		return s.record(Outcome{Kind: model.OutcomeRejected, Rejected: rej}, sctx, "")
	}

	// Last cancellation point: past here the attempt runs to completion.
	if err := ctx.Err(); err != nil {
		return Outcome{Kind: model.OutcomeError, Err: err}
	}

	sig, txHash, err := s.crypto.Sign(context.WithoutCancel(ctx), tx)
	if err != nil {
		return s.record(Outcome{Kind: model.OutcomeError, Err: fmt.Errorf("signer: %w", err)}, sctx, "")
	}

	signed := &model.SignedTransaction{
		Signature: sig,
		TxHash:    txHash,
		Context:   sctx,
	}
	return s.record(Outcome{Kind: model.OutcomeSigned, Signed: signed}, sctx, txHash)
}

// evaluate applies the policy gate to a fresh context. Returns nil when
// signing may proceed.
func evaluate(pol policy.SecurityPolicy, sctx model.SecurityContext) *Rejection {
	// Hard override: a compromised device is rejected unconditionally,
	// independent of the numeric threshold.
	if pol.BlockCompromisedDevices {
		if chk, ok := sctx.Check(probe.CheckDeviceIntegrity); ok && !chk.Passed {
			return &Rejection{FailedChecks: []model.CheckResult{chk}, Context: sctx}
		}
	}

	if !sctx.IsSafeForSigning() {
		return &Rejection{FailedChecks: sctx.FailedChecks(), Context: sctx}
	}

	return nil
}

// record writes the attempt to the decision log. Logging is
// best-effort: a signed transaction is never discarded because the
// audit write failed, but the failure is surfaced on stderr.
func (s *SecureSigner) record(out Outcome, sctx model.SecurityContext, txHash string) Outcome {
	if s.log == nil {
		return out
	}

	entry := audit.Entry{
		Outcome:   string(out.Kind),
		TxHash:    txHash,
		RiskScore: sctx.RiskScore,
		IsSecure:  sctx.IsSecure,
	}
	if out.Rejected != nil {
		for _, chk := range out.Rejected.FailedChecks {
			entry.FailedChecks = append(entry.FailedChecks, audit.FailedCheck{
				Name:     chk.Name,
				Reason:   chk.FailureReason,
				Severity: chk.Severity,
			})
		}
	}
	if out.Err != nil {
		entry.Reason = out.Err.Error()
	}

	if err := s.log.Record(entry); err != nil {
		fmt.Fprintf(os.Stderr, "txguard: audit record failed: %v\n", err)
	}
	return out
}
