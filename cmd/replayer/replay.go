package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"SlotReplay/internal/config"
	"SlotReplay/internal/dump"
	"SlotReplay/internal/execution"
	"SlotReplay/internal/logger"
	"SlotReplay/internal/metrics"
	"SlotReplay/internal/reconstruct"
	"SlotReplay/internal/replay"
	"SlotReplay/internal/snapshot"
	"SlotReplay/internal/storage"
	"SlotReplay/internal/workspace"
)

func newReplayCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay blocks from a db backup and dumped blocks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.ValidateReplay(); err != nil {
				return err
			}

			return runReplay(cmd.Context(), a.cfg, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringP(config.KeyBlocks, "b", "", "dump archive (directory of .bin files, or keyed store)")
	flags.String(config.KeyBackup, "", "db backup to start from")
	flags.String(config.KeyUntilSlot, "", "last slot to replay, inclusive, as PERIOD,THREAD")
	flags.String(config.KeyDumpBackend, dump.KindFile, "dump backend (file, keyed)")
	flags.String(config.KeyDumpEngine, dump.EnginePebble, "keyed dump engine (pebble, leveldb, badger)")
	flags.Bool(config.KeyVerifySignatures, false, "verify every signature")
	flags.Bool(config.KeyStrictDenunciations, false, "fail on headers carrying denunciations")
	flags.Bool(config.KeyKeepWorkdir, false, "keep the working copy after the run")
	flags.String(config.KeyWorkdir, "", "parent directory of the working copy")
	flags.Duration(config.KeyDrainTimeout, config.DefaultDrainTimeout, "bound on the final engine drain")
	flags.Int(config.KeyBufferSize, config.DefaultBufferSize, "execution engine queue capacity")

	return cmd
}

// runReplay stages the backup, replays the archive on top of it and prints a summary.
func runReplay(ctx context.Context, cfg *config.Config, out io.Writer) (err error) {
	start := time.Now()

	rolls, err := config.LoadInitialRolls(cfg.InitialRolls)
	if err != nil {
		return err
	}

	logger.Info("initial rolls loaded", "addresses", len(rolls), "rolls", rolls.Total())

	ws, err := workspace.Stage(workspace.Options{
		Backup:       cfg.Backup,
		InitialRolls: cfg.InitialRolls,
		Parent:       cfg.Workdir,
		Keep:         cfg.KeepWorkdir,
	})
	if err != nil {
		return fmt.Errorf("stage working copy:\n%w", err)
	}
	defer closeWith(&err, "remove working copy", ws.Close)

	db, err := storage.New(ws.DBPath())
	if err != nil {
		return fmt.Errorf("open state db:\n%w", err)
	}
	defer closeWith(&err, "close state db", db.Close)

	last, err := snapshot.LastSlot(db)
	if err != nil {
		return fmt.Errorf("read last slot:\n%w", err)
	}

	hash, entries, err := snapshot.ContentHash(db)
	if err != nil {
		return fmt.Errorf("hash state db:\n%w", err)
	}

	logger.Info("state restored", "lastSlot", last, "hash", hash, "entries", entries)

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	engine, err := execution.New(db, execution.Options{
		BufferSize:   cfg.BufferSize,
		StorageCosts: cfg.StorageCosts,
		Metrics:      m,
	})
	if err != nil {
		return fmt.Errorf("start execution engine:\n%w", err)
	}
	defer closeWith(&err, "stop execution engine", engine.Close)

	backend, err := dump.Open(cfg.DumpBackend, cfg.Blocks, dump.Options{Engine: cfg.DumpEngine})
	if err != nil {
		return fmt.Errorf("open dump archive:\n%w", err)
	}
	defer closeWith(&err, "close dump archive", backend.Close)

	rec := reconstruct.New(reconstruct.Options{
		ChainID:             cfg.ChainID,
		ThreadCount:         cfg.ThreadCount,
		StorageCosts:        cfg.StorageCosts,
		VerifySignatures:    cfg.VerifySignatures,
		StrictDenunciations: cfg.StrictDenunciations,
	})

	seq := replay.New(backend, rec, engine, replay.Options{
		ThreadCount:  cfg.ThreadCount,
		Until:        cfg.UntilSlot,
		DrainTimeout: cfg.DrainTimeout,
		Metrics:      m,
	})

	res, runErr := seq.Run(ctx, last)
	if res != nil {
		printResult(out, res, engine.Stats(), ws.Root())
	}

	if runErr != nil {
		return fmt.Errorf("replay:\n%w", runErr)
	}

	logger.Info("replay done", logger.Timed(start))

	return nil
}

// printResult writes the run summary.
func printResult(out io.Writer, res *replay.Result, stats execution.Stats, workdir string) {
	fmt.Fprintf(out, "state: %s\n", res.State)

	if res.Reason != replay.NoReason {
		fmt.Fprintf(out, "stopped: %s\n", res.Reason)
	}

	fmt.Fprintf(out, "resumed after: %s\n", res.Start)

	if res.Replayed > 0 {
		fmt.Fprintf(out, "replayed: %d slots (%s to %s), %d operations\n", res.Replayed, res.First, res.Last, res.Operations)
	} else {
		fmt.Fprintln(out, "replayed: 0 slots")
	}

	fmt.Fprintf(out, "executed: %d blocks, fees %s, storage cost %s, last slot %s\n",
		stats.Blocks, stats.Fees, stats.StorageCost, stats.LastSlot)
	fmt.Fprintf(out, "workdir: %s\n", workdir)
}

// closeWith runs fn and keeps its error when the command has none.
func closeWith(err *error, what string, fn func() error) {
	cerr := fn()
	if cerr == nil {
		return
	}

	if *err == nil {
		*err = fmt.Errorf("%s:\n%w", what, cerr)
		return
	}

	logger.Warn(what, "error", cerr)
}

// exitSlot extracts the failing slot and stage of a replay error, if any.
func exitSlot(err error) (*replay.SlotError, bool) {
	var se *replay.SlotError
	ok := errors.As(err, &se)

	return se, ok
}
