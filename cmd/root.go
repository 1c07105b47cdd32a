// Package cmd holds the texmap command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

type options struct {
	configPath string
	scenePath  string
	dbPath     string
	selection  bool
	referenced bool
	format     string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "texmap",
		Short: "Resolve, collect and relocate the texture files of a scene",
		Long: `texmap finds every file a scene's texture nodes reference, including frame
sequences, UV tiles and optimized .tx/.tex companions, and relocates them.

Scenes are HCL or JSON documents (--scene) or scene databases (--db).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.format {
			case formatYAML, formatJSON:
				return nil
			}
			return fmt.Errorf("--format must be %s or %s, got: %s", formatYAML, formatJSON, opts.format)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Path to texmap.yaml")
	f.StringVarP(&opts.scenePath, "scene", "s", "", "Scene file (.hcl or .json)")
	f.StringVarP(&opts.dbPath, "db", "d", "", "Scene database")
	f.BoolVar(&opts.selection, "selection", false, "Only consider selected nodes")
	f.BoolVar(&opts.referenced, "referenced", false, "Include nodes from referenced scenes")
	f.StringVarP(&opts.format, "format", "o", formatYAML, "Output format (yaml or json)")

	root.AddCommand(
		newImportCmd(),
		newExportCmd(opts),
		newFilesCmd(opts),
		newMappingCmd(opts),
		newCollectCmd(opts),
		newRemapCmd(opts),
		newUndoCmd(opts),
		newHistoryCmd(opts),
		newIndexCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the texmap version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorColor.Sprint("Error:"), err)
		os.Exit(1)
	}
}
