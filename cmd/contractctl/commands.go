package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/contract-analyzer/internal/adapters/export"
	mcpadapter "github.com/kirillkom/contract-analyzer/internal/adapters/mcp"
	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

func (c *cli) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the interim analysis cache",
	}

	var language string
	show := &cobra.Command{
		Use:   "show <contract-id>",
		Short: "Print a cached analysis as YAML, translating from another language if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			language = domain.NormalizeLanguage(language)
			analysis, err := c.app.CacheUC.Resolve(cmd.Context(), args[0], language)
			if err != nil {
				return err
			}
			return export.WriteYAML(cmd.OutOrStdout(), export.NewReport(args[0], language, analysis))
		},
	}
	show.Flags().StringVar(&language, "lang", "en", "language code")

	languages := &cobra.Command{
		Use:   "languages <contract-id>",
		Short: "List the languages cached for a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			langs, err := c.app.CacheUC.Languages(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(langs) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no cached languages")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(langs, "\n"))
			return nil
		},
	}

	cmd.AddCommand(show, languages)
	return cmd
}

func (c *cli) exportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export cached analyses",
	}

	var language, output string
	xlsx := &cobra.Command{
		Use:   "xlsx <contract-id>",
		Short: "Write a cached analysis as an XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			language = domain.NormalizeLanguage(language)
			analysis, err := c.app.CacheUC.Resolve(cmd.Context(), args[0], language)
			if err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("%s-%s.xlsx", shortID(args[0]), language)
			}
			file, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := export.WriteXLSX(file, export.NewReport(args[0], language, analysis)); err != nil {
				_ = file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	xlsx.Flags().StringVar(&language, "lang", "en", "language code")
	xlsx.Flags().StringVarP(&output, "output", "o", "", "output file (default <id>-<lang>.xlsx)")

	cmd.AddCommand(xlsx)
	return cmd
}

func (c *cli) mcpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the analysis tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			tools := mcpadapter.NewTools(c.app.IngestUC, c.app.AnalyzeUC, c.app.CacheUC)
			return tools.ServeStdio(version)
		},
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
