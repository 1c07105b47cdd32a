package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentic-research/texmap/internal/mcptools"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the texture tools over MCP on stdio",
		Long: `Starts an MCP server on stdin/stdout exposing texture_files, texture_mapping,
collect_textures and map_textures. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			j, err := s.openJournal()
			if err != nil {
				return err
			}
			defer func() { _ = j.Close() }()

			tools := mcptools.New(s.mapper, j, s.tex, s.log)
			s.log.Info("serving mcp on stdio", zap.String("version", Version))
			if err := mcptools.ServeStdio(tools.Server(Version)); err != nil {
				return err
			}
			return s.save()
		},
	}
}
