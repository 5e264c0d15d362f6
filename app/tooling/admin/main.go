// This program runs the ledger simulation from the command line.
package main

import "github.com/ardanlabs/ledgersim/app/tooling/admin/cmd"

func main() {
	cmd.Execute()
}
