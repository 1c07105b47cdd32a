package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentic-research/texmap/internal/texindex"
)

func newIndexCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Persist and query texture file sets",
	}
	cmd.AddCommand(newIndexBuildCmd(opts), newIndexQueryCmd(opts), newIndexOwnersCmd(opts))
	return cmd
}

func newIndexBuildCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "build [index.db]",
		Short: "Resolve the scene's texture files and store them in an index",
		Args:  cobra.ExactArgs(1),
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
			x, err := texindex.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = x.Close() }()

			if err := x.Store(files); err != nil {
				return err
			}
			successColor.Fprintf(cmd.ErrOrStderr(), "Indexed %d keys, %d files into %s\n",
				files.Len(), len(files.Reduce()), x.Path())
			return nil
		},
	}
}

func newIndexQueryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "query [index.db] [glob]",
		Short: "Print the indexed sets whose key matches a glob",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := texindex.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = x.Close() }()

			glob := "*"
			if len(args) == 2 {
				glob = args[1]
			}
			files, err := x.Query(glob)
			if err != nil {
				return err
			}
			return writeDoc(cmd.OutOrStdout(), opts.format, files.Entries())
		},
	}
}

func newIndexOwnersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "owners [index.db] [file]",
		Short: "Print the canonical keys whose sets contain a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := texindex.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = x.Close() }()

			owners, err := x.Owners(args[1])
			if err != nil {
				return err
			}
			if len(owners) == 0 {
				warningColor.Fprintf(cmd.ErrOrStderr(), "%s is not indexed\n", args[1])
			}
			return writeDoc(cmd.OutOrStdout(), opts.format, owners)
		},
	}
}
