// txguard — transaction security gate for non-custodial wallets.
// Aggregates device integrity and capability probes into a risk score,
// applies a configurable policy, and gates signing behind a bounded
// authentication session.
package main

import "github.com/mkravets/txguard/internal/cli"

func main() {
	cli.Execute()
}
