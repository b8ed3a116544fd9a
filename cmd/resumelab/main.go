package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"resumelab/api/internal/document"
	"resumelab/api/internal/export"
	"resumelab/api/internal/fingerprint"
	"resumelab/api/internal/mutation"
	"resumelab/api/internal/scoring"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "resumelab",
		Short:        "Offline tools for résumé analyses and edits",
		SilenceUsage: true,
	}
	root.AddCommand(fingerprintCmd())
	root.AddCommand(applyCmd())
	root.AddCommand(scoreCmd())
	return root
}

func fingerprintCmd() *cobra.Command {
	var jobText, jobFile string
	cmd := &cobra.Command{
		Use:   "fingerprint <resume-file>",
		Short: "Print the cache key for a résumé and job description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobFile != "" {
				data, err := os.ReadFile(jobFile)
				if err != nil {
					return fmt.Errorf("read job description: %w", err)
				}
				jobText = string(data)
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open resume: %w", err)
			}
			defer f.Close()

			key, err := fingerprint.NewKey(f, jobText)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file_hash %s\n", key.File)
			fmt.Fprintf(out, "text_hash %s\n", key.Text)
			return nil
		},
	}
	cmd.Flags().StringVar(&jobText, "jd", "", "job description text")
	cmd.Flags().StringVar(&jobFile, "jd-file", "", "read the job description from a file")
	cmd.MarkFlagsMutuallyExclusive("jd", "jd-file")
	return cmd
}

func applyCmd() *cobra.Command {
	var format, output, title, pageSize string
	cmd := &cobra.Command{
		Use:   "apply <document.json> <edits.yaml>",
		Short: "Apply an edits file to a structured document and export the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			exportFormat, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			sheet, err := export.ParsePage(pageSize)
			if err != nil {
				return err
			}
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			ops, err := loadEdits(args[1])
			if err != nil {
				return err
			}

			updated, report := mutation.ApplyBatch(doc, ops)
			for _, outcome := range report.Skipped() {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped operation %d (%s): %s\n", outcome.Index, outcome.Kind, outcome.Reason)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "applied %d of %d edits\n", report.Applied(), len(report.Outcomes))

			if title == "" {
				title = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			result, err := export.Renderer{Page: sheet}.Render(context.Background(), updated, exportFormat, title)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(result.Data)
				return err
			}
			return os.WriteFile(output, result.Data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json, html, pdf or docx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	cmd.Flags().StringVar(&title, "title", "", "document title used for the export")
	cmd.Flags().StringVar(&pageSize, "page", "letter", "pdf page size: letter or a4")
	return cmd
}

func scoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score <analysis.json>",
		Short: "Recompute the weighted overall score of an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read analysis: %w", err)
			}
			analysis, err := scoring.Decode(data)
			if err != nil {
				return fmt.Errorf("decode analysis: %w", err)
			}
			reported := analysis.OverallScore
			overall := analysis.Finalize()

			out := cmd.OutOrStdout()
			categories := analysis.Breakdown.Map()
			names := make([]string, 0, len(categories))
			for name := range categories {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "%-9s %5.1f  weight %d%%\n", name, float64(categories[name].Score.Clamp()), scoring.Weights[name])
			}
			fmt.Fprintf(out, "overall   %d (reported %d, target %d)\n", overall, reported, scoring.Target(overall))
			return nil
		},
	}
}

func readDocument(path string) (document.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return document.Document{}, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	doc, err := document.Decode(f)
	if err != nil {
		return document.Document{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}
