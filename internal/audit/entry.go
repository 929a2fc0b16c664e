package audit

// FailedCheck is the flattened failed-check record in an audit entry.
type FailedCheck struct {
	Name     string  `json:"name"`
	Reason   string  `json:"reason"`
	Severity float64 `json:"severity"`
}

// Entry is one line in the hash-chained JSONL decision log. All fields
// are structs and scalars (no map[string]any) to guarantee
// deterministic json.Marshal field order for reproducible hashing.
type Entry struct {
	Timestamp    string        `json:"ts"`
	Outcome      string        `json:"outcome"`
	TxHash       string        `json:"tx_hash,omitempty"`
	RiskScore    float64       `json:"risk_score"`
	IsSecure     bool          `json:"is_secure"`
	FailedChecks []FailedCheck `json:"failed_checks,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	PrevHash     string        `json:"prev_hash"`
}
