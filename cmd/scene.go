package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentic-research/texmap/internal/graph"
	"github.com/agentic-research/texmap/internal/ingest"
	"github.com/agentic-research/texmap/internal/vfs"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [scene] [scene.db]",
		Short: "Load an HCL or JSON scene into a scene database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			scene, err := ingest.LoadFile(vfs.OS(), src)
			if err != nil {
				return err
			}
			store, err := graph.OpenSQLiteStore(args[1])
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := ingest.Populate(store, scene); err != nil {
				return err
			}
			successColor.Fprintf(cmd.ErrOrStderr(), "Imported %d nodes into %s\n", len(scene.Nodes), args[1])
			return nil
		},
	}
}

func newExportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export [scene]",
		Short: "Write the current scene as HCL or JSON, chosen by extension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			dst, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			scene, err := ingest.Dump(s.store, s.workspace)
			if err != nil {
				return err
			}
			if err := ingest.SaveFile(s.fs, dst, scene); err != nil {
				return err
			}
			successColor.Fprintf(cmd.ErrOrStderr(), "Exported %d nodes to %s\n", len(scene.Nodes), dst)
			return nil
		},
	}
}
