/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Command guidancectl inspects and replays a guidance-core ledger directory
// from the operator's terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	ledgerDir  string
	jsonOutput bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "guidancectl",
		Short:        "Inspect and replay a guidance-core ledger",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&ledgerDir, "ledger-dir", envOr("GUIDANCE_LEDGER_DIR", "./ledger"), "ledger directory to operate on")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print output as JSON")

	root.AddCommand(newInspectCmd())
	root.AddCommand(newReplayCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newCompactCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("guidancectl %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
