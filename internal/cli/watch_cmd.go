package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mkravets/txguard/internal/watch"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Hot-reload the policy file on change",
	Long: "Watches the policy file and reloads it when edited. A bad edit is\n" +
		"reported and the previous policy stays active. Runs until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reloader := watch.NewReloader(a.policies, a.cfg.PolicyPath, func(err error) {
			if err != nil {
				fmt.Fprintf(os.Stderr, "policy reload failed, keeping previous policy: %v\n", err)
				return
			}
			fmt.Fprintf(os.Stderr, "policy reloaded from %s\n", a.cfg.PolicyPath)
		})

		fmt.Printf("watching %s\n", a.cfg.PolicyPath)
		return reloader.Run(ctx)
	},
}
