package model

import "time"

// CriticalSeverity is the severity at or above which a single failed
// check blocks signing regardless of the aggregate risk score.
const CriticalSeverity = 0.8

// CheckResult is the immutable outcome of a single security check.
// Severity is meaningful only when Passed is false; a passed check
// implicitly carries severity 0.
type CheckResult struct {
	Name          string  `json:"check_name"`
	Passed        bool    `json:"passed"`
	FailureReason string  `json:"failure_reason,omitempty"`
	Severity      float64 `json:"severity"`
}

// FailedCheck creates a failed CheckResult with a reason and severity.
func FailedCheck(name, reason string, severity float64) CheckResult {
	return CheckResult{Name: name, Passed: false, FailureReason: reason, Severity: severity}
}

// PassedCheck creates a passed CheckResult.
func PassedCheck(name string) CheckResult {
	return CheckResult{Name: name, Passed: true}
}

// SecurityContext is the aggregate verdict for one signing attempt.
// Built once per attempt, never mutated after construction.
type SecurityContext struct {
	IsSecure  bool          `json:"is_secure"`
	Checks    []CheckResult `json:"checks"`
	RiskScore float64       `json:"risk_score"`
	Timestamp time.Time     `json:"timestamp"`
}

// FailedChecks returns the checks that did not pass, in check order.
func (c SecurityContext) FailedChecks() []CheckResult {
	var failed []CheckResult
	for _, chk := range c.Checks {
		if !chk.Passed {
			failed = append(failed, chk)
		}
	}
	return failed
}

// HasCriticalFailures reports whether any failed check carries a
// severity at or above CriticalSeverity.
func (c SecurityContext) HasCriticalFailures() bool {
	for _, chk := range c.Checks {
		if !chk.Passed && chk.Severity >= CriticalSeverity {
			return true
		}
	}
	return false
}

// IsSafeForSigning is the final gate predicate: the aggregate score is
// within policy and no single critical failure is present.
func (c SecurityContext) IsSafeForSigning() bool {
	return c.IsSecure && !c.HasCriticalFailures()
}

// Check returns the named check result and whether it was recorded.
func (c SecurityContext) Check(name string) (CheckResult, bool) {
	for _, chk := range c.Checks {
		if chk.Name == name {
			return chk, true
		}
	}
	return CheckResult{}, false
}

// TransactionData describes a transaction pending signature. The gate
// never interprets these fields; they pass through to the signer.
type TransactionData struct {
	ChainID uint64 `json:"chain_id"`
	To      string `json:"to"`
	Value   string `json:"value"`
	Data    []byte `json:"data,omitempty"`
	Nonce   uint64 `json:"nonce"`
}

// SignedTransaction is the signer collaborator's output plus the exact
// SecurityContext that authorized it.
type SignedTransaction struct {
	Signature []byte          `json:"signature"`
	TxHash    string          `json:"tx_hash"`
	Context   SecurityContext `json:"security_context"`
}

// OutcomeKind classifies how a signing attempt ended.
type OutcomeKind string

const (
	OutcomeSigned     OutcomeKind = "signed"
	OutcomeRejected   OutcomeKind = "rejected"
	OutcomeAuthDenied OutcomeKind = "auth_denied"
	OutcomeError      OutcomeKind = "error"
)
