/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package main

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/marcus-qen/guidance/internal/guidance/ledgerstore"
)

func newCompactCmd() *cobra.Command {
	var maxEvents int

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Drop the oldest events beyond --max-events, rewriting the ledger file atomically",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ledgerstore.New(ledgerDir, logr.Discard())
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}

			before, err := store.ReadIndex()
			if err != nil {
				return fmt.Errorf("read index: %w", err)
			}

			if err := store.Compact(maxEvents); err != nil {
				return fmt.Errorf("compact: %w", err)
			}

			after, err := store.ReadIndex()
			if err != nil {
				return fmt.Errorf("read index: %w", err)
			}

			fmt.Printf("Compacted: %d -> %d events\n", before.EventCount, after.EventCount)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxEvents, "max-events", 100_000, "maximum number of events to retain")
	return cmd
}
