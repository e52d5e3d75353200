package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"SlotReplay/internal/snapshot"
)

func newListSnapshotCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-snapshot",
		Short: "List db backups and display their last slot and hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listSnapshots(cmd.OutOrStdout(), a.cfg.DBPath)
		},
	}
}

// listSnapshots prints one line per backup under dbRoot.
func listSnapshots(out io.Writer, dbRoot string) error {
	infos, err := snapshot.List(dbRoot)
	if err != nil {
		return err
	}

	if len(infos) == 0 {
		fmt.Fprintf(out, "no backup matching %s\n", filepath.Join(dbRoot, snapshot.BackupPattern))
		return nil
	}

	for _, info := range infos {
		if info.Err != nil {
			fmt.Fprintf(out, "backup %s: error: %v\n", info.Path, info.Err)
			continue
		}

		fmt.Fprintf(out, "backup %s: hash: %s, last slot: %s, entries: %d\n",
			info.Path, info.Hash, info.LastSlot, info.Entries)
	}

	return nil
}
