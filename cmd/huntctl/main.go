// Command huntctl is the operator CLI: seed the level table, list it, and
// inspect or reset a player's progress.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
