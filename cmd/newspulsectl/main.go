// Command newspulsectl is the operator CLI: it migrates the database, manages
// feeds and subscriptions, runs single ingest cycles and issues login tokens.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
