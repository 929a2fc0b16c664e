package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mkravets/txguard/internal/config"
	"github.com/mkravets/txguard/internal/policy"
)

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policyInitCmd)
	policyCmd.AddCommand(policyPresetCmd)
	policyCmd.AddCommand(policyToggleCmd)
	policyCmd.AddCommand(policyMaxRiskCmd)
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and update the security policy",
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active policy as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.close()

		out, err := json.MarshalIndent(a.policies.Active(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var policyInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the strict preset to the policy file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if _, err := os.Stat(cfg.PolicyPath); err == nil {
			return fmt.Errorf("policy file already exists at %s", cfg.PolicyPath)
		}
		if err := policy.Save(cfg.PolicyPath, policy.Strict()); err != nil {
			return err
		}
		fmt.Printf("wrote strict policy to %s\n", cfg.PolicyPath)
		return nil
	},
}

var policyPresetCmd = &cobra.Command{
	Use:   "preset <strict|relaxed>",
	Short: "Replace the active policy with a named preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.policies.ApplyPreset(args[0]); err != nil {
			return err
		}
		fmt.Printf("policy set to %s preset\n", args[0])
		return nil
	},
}

var policyToggleCmd = &cobra.Command{
	Use:   "toggle <flag>",
	Short: "Flip a boolean policy flag",
	Long: "Flips one of: overlayProtectionEnabled, recordingDetectionEnabled,\n" +
		"screenshotDetectionEnabled, blockCompromisedDevices, requireBiometrics.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.policies.Toggle(args[0]); err != nil {
			return err
		}
		fmt.Printf("toggled %s\n", args[0])
		return nil
	},
}

var policyMaxRiskCmd = &cobra.Command{
	Use:   "max-risk <score>",
	Short: "Set the maximum allowed risk score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid score %q: %w", args[0], err)
		}

		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.policies.SetMaxRiskScore(v); err != nil {
			return err
		}
		fmt.Printf("maxAllowedRiskScore set to %v\n", v)
		return nil
	},
}
