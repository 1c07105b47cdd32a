package cmd

import (
	"errors"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentic-research/texmap/internal/journal"
	"github.com/agentic-research/texmap/internal/texture"
	"github.com/agentic-research/texmap/internal/vfs"
)

func newFilesCmd(opts *options) *cobra.Command {
	var flat bool
	cmd := &cobra.Command{
		Use:   "files",
		Short: "List texture files keyed by each node's canonical path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			files, err := s.mapper.TextureFiles(s.filter, s.tex)
			if err != nil {
				return err
			}
			if flat {
				return writeDoc(cmd.OutOrStdout(), opts.format, files.Reduce())
			}
			return writeDoc(cmd.OutOrStdout(), opts.format, files.Entries())
		},
	}
	cmd.Flags().BoolVar(&flat, "flat", false, "Print a flat sorted list")
	return cmd
}

func newMappingCmd(opts *options) *cobra.Command {
	var oldDir, out string
	cmd := &cobra.Command{
		Use:   "mapping [newdir]",
		Short: "Map texture files into a directory, keeping basenames",
		Long: `Maps every texture file into newdir under its own basename. Files sharing a
basename map to the same destination; use collect for collision-free names.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			files, err := s.mapper.TextureFiles(s.filter, s.tex)
			if err != nil {
				return err
			}
			m, err := s.mapper.Mapping(args[0], oldDir, files)
			if err != nil {
				return err
			}
			if collisions := len(m) - len(m.Values()); collisions > 0 {
				warningColor.Fprintf(cmd.ErrOrStderr(), "%d files share a destination with another file\n", collisions)
			}
			if out != "" {
				return writeMapping(out, m)
			}
			return writeDoc(cmd.OutOrStdout(), opts.format, m)
		},
	}
	cmd.Flags().StringVar(&oldDir, "from", "", "Only map files directly inside this directory")
	cmd.Flags().StringVar(&out, "out", "", "Write the mapping to this YAML file")
	return cmd
}

func newCollectCmd(opts *options) *cobra.Command {
	var (
		out   string
		remap bool
	)
	cmd := &cobra.Command{
		Use:   "collect [dest]",
		Short: "Copy every texture file into one directory with collision-free names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			dest, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			files, err := s.mapper.TextureFiles(s.filter, s.tex)
			if err != nil {
				return err
			}
			m, collectErr := s.mapper.Collect(dest, files)
			if errors.Is(collectErr, texture.ErrNotDirectory) {
				return collectErr
			}

			var total uint64
			for _, src := range m.Keys() {
				size := uint64(vfs.Size(s.fs, m[src]))
				total += size
				infoColor.Fprintf(cmd.ErrOrStderr(), "  %s -> %s (%s)\n", src, m[src], humanize.Bytes(size))
			}
			if collectErr != nil {
				errorColor.Fprintf(cmd.ErrOrStderr(), "Collected %d files before failing\n", len(m))
			} else {
				successColor.Fprintf(cmd.ErrOrStderr(), "Collected %d files (%s) into %s\n", len(m), humanize.Bytes(total), dest)
			}

			if remap && len(m) > 0 {
				if _, err := applyAndRecord(s, journal.OpCollect, "", m); err != nil {
					return errors.Join(collectErr, err)
				}
			}
			if out != "" {
				if err := writeMapping(out, m); err != nil {
					return errors.Join(collectErr, err)
				}
			} else if err := writeDoc(cmd.OutOrStdout(), opts.format, m); err != nil {
				return errors.Join(collectErr, err)
			}
			return collectErr
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write the mapping to this YAML file")
	cmd.Flags().BoolVar(&remap, "remap", false, "Point the texture nodes at the collected copies")
	return cmd
}

// applyAndRecord rewrites the scene through l, journals the rewrites and
// saves the scene. It returns the reverse mapping {new: old}. Rewrites made
// before a failure are journaled too. An undo is recorded even when it
// rewrote nothing so the run it reverts is no longer offered.
func applyAndRecord(s *session, op, undoes string, l texture.Lookup) (texture.Mapping, error) {
	reverse, mapErr := s.mapper.MapTextures(l, s.filter)
	if len(reverse) == 0 && undoes == "" {
		return reverse, mapErr
	}
	j, err := s.openJournal()
	if err != nil {
		return reverse, errors.Join(mapErr, err)
	}
	defer func() { _ = j.Close() }()

	run, err := j.Record(journal.Entry{Op: op, Undoes: undoes, Forward: reverse.Reverse(), Reverse: reverse})
	if err != nil {
		return reverse, errors.Join(mapErr, err)
	}
	s.log.Info("recorded run", zap.String("id", run.ID), zap.String("op", op), zap.Int("rewrites", len(reverse)))
	if err := s.save(); err != nil {
		return reverse, errors.Join(mapErr, err)
	}
	return reverse, mapErr
}
