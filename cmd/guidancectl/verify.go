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

	"github.com/marcus-qen/guidance/internal/guidance/ledger"
	"github.com/marcus-qen/guidance/internal/guidance/ledgerstore"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Recompute every event's content hash and report any mismatch",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ledgerstore.New(ledgerDir, logr.Discard())
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}

			events, err := store.ReadAll()
			if err != nil {
				return fmt.Errorf("read events: %w", err)
			}

			bad := 0
			for _, e := range events {
				ok, err := ledger.VerifyContentHash(e)
				if err != nil {
					return fmt.Errorf("verify %s: %w", e.EventID, err)
				}
				if !ok {
					bad++
					fmt.Printf("TAMPERED: event %s (task %s) content hash does not match\n", e.EventID, e.TaskID)
				}
			}

			if bad == 0 {
				fmt.Printf("OK: %d event(s) verified\n", len(events))
				return nil
			}
			return fmt.Errorf("%d of %d event(s) failed content hash verification", bad, len(events))
		},
	}
}
