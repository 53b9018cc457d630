/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/marcus-qen/guidance/internal/guidance/ledgerstore"
)

func newInspectCmd() *cobra.Command {
	var taskID string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show ledger index and optionally a single task's events",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ledgerstore.New(ledgerDir, logr.Discard())
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}

			idx, err := store.ReadIndex()
			if err != nil {
				return fmt.Errorf("read index: %w", err)
			}

			if taskID == "" {
				if jsonOutput {
					return printJSON(idx)
				}
				fmt.Printf("Events:    %d\n", idx.EventCount)
				fmt.Printf("Oldest:    %d\n", idx.OldestTimestamp)
				fmt.Printf("Newest:    %d\n", idx.NewestTimestamp)
				fmt.Printf("Tasks:     %d\n", len(idx.TaskIDs))
				return nil
			}

			events, err := store.ReadAll()
			if err != nil {
				return fmt.Errorf("read events: %w", err)
			}
			matched := make([]interface{}, 0)
			for _, e := range events {
				if e.TaskID == taskID {
					matched = append(matched, e)
				}
			}
			if jsonOutput {
				return printJSON(matched)
			}
			for _, e := range matched {
				fmt.Printf("%+v\n", e)
			}
			fmt.Printf("\n%d event(s) for task %s\n", len(matched), taskID)
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "limit output to a single task ID")
	return cmd
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
