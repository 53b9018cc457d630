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
	"sort"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/marcus-qen/guidance/internal/guidance/ledgerstore"
)

func newReplayCmd() *cobra.Command {
	var taskID string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Print the ledger's events in timestamp order, narrating each outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ledgerstore.New(ledgerDir, logr.Discard())
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}

			events, err := store.ReadAll()
			if err != nil {
				return fmt.Errorf("read events: %w", err)
			}

			sort.Slice(events, func(i, j int) bool { return events[i].Timestamp < events[j].Timestamp })

			if jsonOutput {
				filtered := make([]interface{}, 0, len(events))
				for _, e := range events {
					if taskID != "" && e.TaskID != taskID {
						continue
					}
					filtered = append(filtered, e)
				}
				return printJSON(filtered)
			}

			shown := 0
			for _, e := range events {
				if taskID != "" && e.TaskID != taskID {
					continue
				}
				outcome := "accepted"
				if !e.OutcomeAccepted {
					outcome = "rejected"
				}
				fmt.Printf("[%d] task=%s intent=%s tools=%v outcome=%s violations=%d rework=%d\n",
					e.Timestamp, e.TaskID, e.Intent, e.ToolsUsed, outcome, len(e.Violations), e.ReworkLines)
				for _, v := range e.Violations {
					fmt.Printf("    - %s/%s: %s (%s)\n", v.GateName, v.Decision, v.Reason, v.RuleID)
				}
				shown++
			}
			fmt.Printf("\n%d event(s) replayed\n", shown)
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "limit replay to a single task ID")
	return cmd
}
