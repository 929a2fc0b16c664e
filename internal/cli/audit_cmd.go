package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkravets/txguard/internal/audit"
	"github.com/mkravets/txguard/internal/config"
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Work with the signing decision log",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validate the decision log's hash chain",
	Long: "Walks the JSONL decision log and checks every entry's prev_hash\n" +
		"against the hash of the preceding line.\n\n" +
		"Exit code 0 if the chain is intact, 1 if broken.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		result := audit.Verify(cfg.AuditLogPath)
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))

		if !result.Valid {
			os.Exit(1)
		}
		return nil
	},
}
