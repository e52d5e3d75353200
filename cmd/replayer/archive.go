package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"SlotReplay/internal/config"
	"SlotReplay/internal/dump"
	"SlotReplay/internal/logger"
	"SlotReplay/internal/model"
	"SlotReplay/internal/wire"
)

// slotWriter is the write side shared by the file-tree and keyed layouts.
type slotWriter interface {
	Put(slot model.Slot, frame []byte) error
	Close() error
}

func newArchiveCmd(a *app) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Summarize a dump archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Blocks == "" {
				return fmt.Errorf("%w: %s", config.ErrMissingSetting, config.KeyBlocks)
			}

			backend, err := dump.Open(a.cfg.DumpBackend, a.cfg.Blocks, dump.Options{Engine: a.cfg.DumpEngine})
			if err != nil {
				return err
			}
			defer backend.Close()

			return describeArchive(cmd.OutOrStdout(), backend, list)
		},
	}

	flags := cmd.Flags()
	flags.StringP(config.KeyBlocks, "b", "", "dump archive")
	flags.String(config.KeyDumpBackend, dump.KindFile, "dump backend (file, keyed)")
	flags.String(config.KeyDumpEngine, dump.EnginePebble, "keyed dump engine (pebble, leveldb, badger)")
	flags.BoolVar(&list, "list", false, "print every slot with its operation count")

	cmd.AddCommand(newArchiveConvertCmd(a))

	return cmd
}

// convertOptions selects the layout written by archive convert.
type convertOptions struct {
	out       string
	to        string
	toEngine  string
	compress  bool
	canonical bool
}

func newArchiveConvertCmd(a *app) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Copy a dump archive into another layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Blocks == "" {
				return fmt.Errorf("%w: %s", config.ErrMissingSetting, config.KeyBlocks)
			}
			if opts.out == "" {
				return fmt.Errorf("%w: out", config.ErrMissingSetting)
			}

			src, err := dump.Open(a.cfg.DumpBackend, a.cfg.Blocks, dump.Options{Engine: a.cfg.DumpEngine})
			if err != nil {
				return err
			}
			defer src.Close()

			dst, err := openSlotWriter(opts)
			if err != nil {
				return err
			}

			n, err := convertArchive(src, dst, opts.canonical)
			if cerr := dst.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("close output:\n%w", cerr)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "converted: %d entries to %s\n", n, opts.out)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringP(config.KeyBlocks, "b", "", "source dump archive")
	flags.String(config.KeyDumpBackend, dump.KindFile, "source dump backend (file, keyed)")
	flags.String(config.KeyDumpEngine, dump.EnginePebble, "source keyed dump engine (pebble, leveldb, badger)")
	flags.StringVarP(&opts.out, "out", "o", "", "output archive path")
	flags.StringVar(&opts.to, "to", dump.KindKeyed, "output backend (file, keyed)")
	flags.StringVar(&opts.toEngine, "to-engine", dump.EnginePebble, "output keyed engine (pebble, leveldb, badger)")
	flags.BoolVar(&opts.compress, "compress", false, "zstd-compress file output")
	flags.BoolVar(&opts.canonical, "canonical", false, "re-encode every block instead of copying its bytes")

	return cmd
}

func openSlotWriter(opts convertOptions) (slotWriter, error) {
	switch opts.to {
	case dump.KindFile:
		return dump.NewFileTreeWriter(opts.out, opts.compress)
	case dump.KindKeyed:
		if opts.compress {
			return nil, fmt.Errorf("%w: --compress applies to file output only", config.ErrInvalidSetting)
		}
		return dump.NewKeyedWriter(opts.toEngine, opts.out)
	default:
		return nil, fmt.Errorf("%w: output backend %q", config.ErrInvalidSetting, opts.to)
	}
}

// convertArchive copies every entry of src into dst in slot order. With
// canonical set each frame is decoded and re-encoded, so an entry that
// does not decode stops the copy.
func convertArchive(src dump.Backend, dst slotWriter, canonical bool) (int, error) {
	start := time.Now()

	slots, err := dump.Sorted(src)
	if err != nil {
		return 0, err
	}

	for i, slot := range slots {
		frame, err := src.Read(slot)
		if err != nil {
			return i, fmt.Errorf("read %s:\n%w", slot, err)
		}

		if canonical {
			fb, err := wire.DecodeFilledBlock(frame)
			if err != nil {
				return i, fmt.Errorf("decode %s:\n%w", slot, err)
			}
			frame = wire.Frame(fb.Marshal())
		}

		if err := dst.Put(slot, frame); err != nil {
			return i, fmt.Errorf("write %s:\n%w", slot, err)
		}
	}

	logger.Info("archive converted", "entries", len(slots), "canonical", canonical, logger.Timed(start))

	return len(slots), nil
}

// describeArchive prints the slot range of b and optionally each entry.
func describeArchive(out io.Writer, b dump.Backend, list bool) error {
	slots, err := dump.Sorted(b)
	if err != nil {
		return err
	}

	if len(slots) == 0 {
		fmt.Fprintln(out, "archive is empty")
		return nil
	}

	fmt.Fprintf(out, "entries: %d, first: %s, last: %s\n", len(slots), slots[0], slots[len(slots)-1])

	if !list {
		return nil
	}

	for _, slot := range slots {
		data, err := b.Read(slot)
		if err != nil {
			return fmt.Errorf("read %s:\n%w", slot, err)
		}

		fb, err := wire.DecodeFilledBlock(data)
		if err != nil {
			fmt.Fprintf(out, "%s: undecodable: %v\n", slot, err)
			continue
		}

		fmt.Fprintf(out, "%s: %d operations, %d bytes\n", slot, len(fb.Operations), len(data))
	}

	return nil
}
