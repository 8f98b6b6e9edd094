package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xxxsen/shoruichecker/internal/analysis"
	"github.com/xxxsen/shoruichecker/internal/event"
	"github.com/xxxsen/shoruichecker/internal/review"
	"github.com/xxxsen/shoruichecker/internal/settings"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		mode         string
		instruction  string
		analysisOnly bool
		htmlOut      string
	)
	cmd := &cobra.Command{
		Use:   "analyze <pdf>...",
		Short: "analyse one or more PDFs and print the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			paths := make([]string, 0, len(args))
			for _, p := range args {
				abs, err := filepath.Abs(p)
				if err != nil {
					return err
				}
				paths = append(paths, abs)
			}
			out := cmd.OutOrStdout()
			if len(paths) == 1 && mode != analysis.ModeCompare && htmlOut == "" && instruction == "" {
				if err := a.Pipeline().Headless(ctx, out, paths[0], !analysisOnly); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "解析エラー: %v\n", err)
					return err
				}
				return nil
			}
			report, err := a.Pipeline().Analyze(ctx, analysis.Job{
				Paths:       paths,
				Mode:        mode,
				Instruction: strings.TrimSpace(instruction),
				SkipEmbed:   analysisOnly,
			})
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "解析エラー: %v\n", err)
				return err
			}
			fmt.Fprintln(out, report.Text)
			if htmlOut != "" {
				page, err := analysis.RenderHTML(filepath.Base(paths[0]), report.Text)
				if err != nil {
					return err
				}
				if err := os.WriteFile(htmlOut, []byte(page), 0o644); err != nil {
					return fmt.Errorf("write html report: %w", err)
				}
			}
			if report.SuccessCount < report.Total {
				return fmt.Errorf("%d/%d files failed", report.Total-report.SuccessCount, report.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "set to \"compare\" to cross-check all files in one run")
	cmd.Flags().StringVar(&instruction, "instruction", "", "extra check items passed to the model")
	cmd.Flags().BoolVar(&analysisOnly, "analysis-only", false, "do not embed the result into the PDFs")
	cmd.Flags().StringVar(&htmlOut, "html", "", "also write the report as HTML to this file")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var results int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "list analysis history, or recent check results with --results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()
			if results > 0 {
				items, err := a.CheckResults(cmd.Context(), results)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "CHECKED_AT\tSTATUS\tFILE\tMESSAGE")
				for _, it := range items {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.CheckedAt, it.Status, it.FileName, it.Message)
				}
				return nil
			}
			fmt.Fprintln(w, "ANALYZED_AT\tTYPE\tFILE\tISSUES")
			for _, e := range a.History() {
				docType := "-"
				if e.DocumentType != nil {
					docType = *e.DocumentType
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", e.AnalyzedAt, docType, e.FileName, len(e.Issues))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&results, "results", 0, "show the N most recent check results instead")
	return cmd
}

func newPDFCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdf",
		Short: "read or write analysis results embedded in a PDF",
	}
	readCmd := &cobra.Command{
		Use:   "read <file>",
		Short: "print the embedded analysis result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			data, ok := a.ReadResult(args[0])
			if !ok {
				return fmt.Errorf("解析データがありません: %s", args[0])
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "解析日時: %s\n", data.Date)
			if data.Instruction != nil {
				fmt.Fprintf(out, "カスタム指示: %s\n", *data.Instruction)
			}
			fmt.Fprintf(out, "\n%s\n", data.Result)
			return nil
		},
	}
	var instruction string
	embedCmd := &cobra.Command{
		Use:   "embed <file> <text>",
		Short: "embed an analysis result into the PDF",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.EmbedResult(args[0], args[1], instruction); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ 結果をPDFに埋め込みました")
			return nil
		},
	}
	embedCmd.Flags().StringVar(&instruction, "instruction", "", "instruction stored alongside the result")
	cmd.AddCommand(readCmd, embedCmd)
	return cmd
}

func newGuidelinesCmd() *cobra.Command {
	var instruction string
	cmd := &cobra.Command{
		Use:   "guidelines <folder> [pdf...]",
		Short: "regenerate the folder guidelines from embedded results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			summary, err := a.GenerateGuidelines(cmd.Context(), args[0], args[1:], instruction)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&instruction, "instruction", "", "extra instruction for this regeneration")
	return cmd
}

func newReviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review <folder>",
		Short: "review changed source files in folder until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			r, err := newRunner(cfg)
			if err != nil {
				return err
			}
			store := settings.NewStore(cfg.SettingsPath, cfg.PolicyPath)
			bus := event.NewBus(0)
			events, cancel := bus.Subscribe()
			defer cancel()

			reviewer := review.New(r, bus, store.Model)
			if err := reviewer.Start(args[0]); err != nil {
				return err
			}
			defer reviewer.Stop()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "監視開始: %s\n", args[0])
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev := <-events:
					switch p := ev.Payload.(type) {
					case event.LogEvent:
						fmt.Fprintln(out, p.Message)
					case event.NotificationEvent:
						fmt.Fprintf(out, "[%s] %s\n", p.Title, p.Body)
					}
				}
			}
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "check that the configured model backend is usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			r, err := newRunner(cfg)
			if err != nil {
				return err
			}
			version, err := r.Probe(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", r.Name(), version)
			return nil
		},
	}
}
