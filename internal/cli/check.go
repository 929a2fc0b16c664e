package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkravets/txguard/internal/risk"
)

var checkFormat string

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the security checks and print the resulting context",
	Long: "Runs the device integrity probe and every policy-enabled capability\n" +
		"probe, aggregates the results, and prints the security context.\n\n" +
		"Exit code 0 if the context is safe for signing, 1 otherwise.",
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.close()

	pol := a.policies.Active()
	results := a.checks.Run(cmd.Context(), pol)
	sctx := risk.Aggregate(results, pol, time.Now())

	switch checkFormat {
	case "json":
		out, err := json.MarshalIndent(sctx, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	case "text":
		fmt.Printf("risk score: %.2f (max allowed %.2f)\n", sctx.RiskScore, pol.MaxAllowedRiskScore)
		for _, chk := range sctx.Checks {
			status := "pass"
			detail := ""
			if !chk.Passed {
				status = "FAIL"
				detail = fmt.Sprintf("  severity=%.2f  %s", chk.Severity, chk.FailureReason)
			}
			fmt.Printf("  %-22s %s%s\n", chk.Name, status, detail)
		}
		if sctx.IsSafeForSigning() {
			fmt.Println("verdict: safe for signing")
		} else {
			fmt.Println("verdict: NOT safe for signing")
		}
	default:
		return fmt.Errorf("unknown format %q (want text or json)", checkFormat)
	}

	if !sctx.IsSafeForSigning() {
		os.Exit(1)
	}
	return nil
}
