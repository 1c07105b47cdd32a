package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/agentic-research/texmap/internal/journal"
	"github.com/agentic-research/texmap/internal/texture"
)

func newRemapCmd(opts *options) *cobra.Command {
	var templated, collapse bool
	cmd := &cobra.Command{
		Use:   "remap [mapping.yaml]",
		Short: "Point texture nodes at new files through a {source: destination} mapping",
		Long: `Rewrites every texture node whose path is a key of the mapping and records
the run in the journal so it can be undone. Prints the reverse mapping.

With --templated, keys and values may carry <f>, <udim>, ? or # tokens and a
single entry covers a whole sequence or tile set. With --collapse, a literal
entry such as a collected frame also covers the other frames of its sequence.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := readMapping(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			var l texture.Lookup = m
			switch {
			case collapse:
				l = texture.CollapseSequences(m)
			case templated:
				l = texture.NewPathTokenMap(m)
			}
			reverse, mapErr := applyAndRecord(s, journal.OpRemap, "", l)
			if len(reverse) == 0 && mapErr == nil {
				warningColor.Fprintln(cmd.ErrOrStderr(), "No texture node matched the mapping")
				return nil
			}
			successColor.Fprintf(cmd.ErrOrStderr(), "Remapped %d paths\n", len(reverse))
			if err := writeDoc(cmd.OutOrStdout(), opts.format, reverse); err != nil {
				return errors.Join(mapErr, err)
			}
			return mapErr
		},
	}
	cmd.Flags().BoolVar(&templated, "templated", false, "Match sequence and tile tokens in mapping keys")
	cmd.Flags().BoolVar(&collapse, "collapse", false, "Extend numbered entries to the rest of their sequence (implies --templated)")
	return cmd
}

func newUndoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "undo [run]",
		Short: "Revert a recorded run, the latest one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			run, err := runToUndo(s, args)
			if err != nil {
				return err
			}
			applied, err := applyAndRecord(s, journal.OpUndo, run.ID, texture.Mapping(run.Reverse))
			if err != nil {
				return err
			}
			successColor.Fprintf(cmd.ErrOrStderr(), "Undid %s run %s (%d of %d paths restored)\n",
				run.Op, run.ID, len(applied), len(run.Reverse))
			return nil
		},
	}
}

func runToUndo(s *session, args []string) (*journal.Run, error) {
	j, err := s.openJournal()
	if err != nil {
		return nil, err
	}
	defer func() { _ = j.Close() }()

	if len(args) == 0 {
		return j.LatestUndoable()
	}
	run, err := j.Get(args[0])
	if err != nil {
		return nil, err
	}
	if run.Op == journal.OpUndo {
		return nil, fmt.Errorf("run %s is itself an undo", run.ID)
	}
	undone, err := j.Undone(run.ID)
	if err != nil {
		return nil, err
	}
	if undone {
		return nil, fmt.Errorf("run %s is already undone", run.ID)
	}
	return run, nil
}

func newHistoryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournalOnly(opts)
			if err != nil {
				return err
			}
			defer func() { _ = j.Close() }()

			runs, err := j.Runs()
			if err != nil {
				return err
			}
			undone := make(map[string]bool)
			for _, r := range runs {
				if r.Undoes != "" {
					undone[r.Undoes] = true
				}
			}
			doc := make([]map[string]any, 0, len(runs))
			for _, r := range runs {
				entry := map[string]any{
					"id":      r.ID,
					"op":      r.Op,
					"paths":   len(r.Forward),
					"created": r.CreatedAt.Format(time.RFC3339),
					"age":     humanize.Time(r.CreatedAt),
				}
				if r.Undoes != "" {
					entry["undoes"] = r.Undoes
				}
				if undone[r.ID] {
					entry["undone"] = true
				}
				doc = append(doc, entry)
			}
			return writeDoc(cmd.OutOrStdout(), opts.format, doc)
		},
	}
}
