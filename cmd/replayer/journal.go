package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"SlotReplay/internal/execution"
	"SlotReplay/internal/model"
	"SlotReplay/internal/storage"
)

func newJournalCmd(_ *app) *cobra.Command {
	var operation string

	cmd := &cobra.Command{
		Use:   "journal DB",
		Short: "Print the executed blocks recorded in a kept working copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := storage.OpenReadOnly(args[0])
			if err != nil {
				return fmt.Errorf("open %s:\n%w", args[0], err)
			}
			defer db.Close()

			if operation != "" {
				return findOperation(cmd.OutOrStdout(), db, operation)
			}

			return printJournal(cmd.OutOrStdout(), db)
		},
	}

	cmd.Flags().StringVar(&operation, "operation", "", "only print the slot that executed this operation id")

	return cmd
}

// printJournal prints one line per executed block in slot order.
func printJournal(out io.Writer, db *storage.Storage) error {
	n := 0

	err := execution.Records(db, func(r *execution.Record) error {
		n++
		fmt.Fprintf(out, "%s %s creator=%s operations=%d fees=%s storage=%s\n",
			r.Slot, r.BlockID, r.Creator, len(r.Operations), r.Fees, r.StorageCost)
		return nil
	})
	if err != nil {
		return err
	}

	if n == 0 {
		fmt.Fprintln(out, "no executed block")
	}

	return nil
}

// findOperation prints the slot that executed the operation.
func findOperation(out io.Writer, db *storage.Storage, text string) error {
	id, err := model.ParseOperationID(text)
	if err != nil {
		return err
	}

	slot, ok, err := execution.OperationSlot(db, id)
	if err != nil {
		return err
	}

	if !ok {
		fmt.Fprintf(out, "%s: not executed\n", id)
		return nil
	}

	fmt.Fprintf(out, "%s: executed at %s\n", id, slot)

	return nil
}
