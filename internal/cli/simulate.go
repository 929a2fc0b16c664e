package cli

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkravets/txguard/internal/audit"
	"github.com/mkravets/txguard/internal/model"
	"github.com/mkravets/txguard/internal/signer"
)

var (
	simAuthMode string
	simTo       string
	simValue    string
	simChainID  uint64
)

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simAuthMode, "auth", "approve", "Simulated authentication outcome (approve|deny)")
	simulateCmd.Flags().StringVar(&simTo, "to", "0x0000000000000000000000000000000000000000", "Recipient address")
	simulateCmd.Flags().StringVar(&simValue, "value", "0", "Transaction value")
	simulateCmd.Flags().Uint64Var(&simChainID, "chain-id", 1, "Chain ID")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive a full gate pass with a stub signer",
	Long: "Runs the complete signing pipeline — session, probes, policy gate —\n" +
		"against a synthetic transaction and a stub cryptographic signer.\n" +
		"Shows exactly what a real signing attempt would do on this device.\n\n" +
		"Exit code 0 when the transaction would be signed, 1 otherwise.",
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	auth, err := authenticatorFor(simAuthMode)
	if err != nil {
		return err
	}

	a, err := newApp(auth)
	if err != nil {
		return err
	}
	defer a.close()

	log, err := audit.Open(a.cfg.AuditLogPath)
	if err != nil {
		return err
	}
	defer log.Close()

	gate := signer.New(a.policies, a.sessions, a.checks, stubSigner{}, signer.WithAuditLog(log))

	tx := model.TransactionData{
		ChainID: simChainID,
		To:      simTo,
		Value:   simValue,
	}

	out := gate.SignTransaction(cmd.Context(), tx, "simulated signing attempt")

	switch out.Kind {
	case model.OutcomeSigned:
		fmt.Printf("SIGNED  tx=%s  risk=%.2f\n", out.Signed.TxHash, out.Signed.Context.RiskScore)
		return nil
	case model.OutcomeRejected:
		fmt.Printf("REJECTED  risk=%.2f\n", out.Rejected.Context.RiskScore)
		for _, r := range out.Rejected.Reasons() {
			fmt.Printf("  %s\n", r)
		}
	case model.OutcomeAuthDenied:
		fmt.Println("AUTH DENIED  (no checks run, nothing signed)")
	case model.OutcomeError:
		fmt.Printf("ERROR  %v\n", out.Err)
	}
	os.Exit(1)
	return nil
}

// stubSigner stands in for the external cryptographic signer. The hash
// is real (SHA-256 of the canonical transaction JSON); the signature is
// not.
type stubSigner struct{}

func (stubSigner) Sign(_ context.Context, tx model.TransactionData) ([]byte, string, error) {
	data, err := json.Marshal(tx)
	if err != nil {
		return nil, "", err
	}
	h := sha256.Sum256(data)
	return []byte("simulated"), "0x" + hex.EncodeToString(h[:]), nil
}
