// Command pflegedocs processes scanned German care documents: it
// rasterizes incoming PDFs, extracts structured data with a vision
// model, and tracks the results in a local SQLite database.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mkessler/pflegedocs/internal/common"
	"github.com/mkessler/pflegedocs/internal/export"
	"github.com/mkessler/pflegedocs/internal/ingest"
	"github.com/mkessler/pflegedocs/internal/linker"
	"github.com/mkessler/pflegedocs/internal/llm"
	"github.com/mkessler/pflegedocs/internal/llm/anthropic"
	"github.com/mkessler/pflegedocs/internal/pipeline"
	"github.com/mkessler/pflegedocs/internal/raster"
	"github.com/mkessler/pflegedocs/internal/store"
)

var baseDir string

func main() {
	rootCmd := &cobra.Command{
		Use:           "pflegedocs",
		Short:         "Track scanned German care documents with AI extraction",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&baseDir, "dir", "", "base directory (default $PFLEGEDOCS_DIR or .)")

	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(taskCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*common.Config, *slog.Logger, error) {
	if baseDir != "" {
		os.Setenv("PFLEGEDOCS_DIR", baseDir)
	}
	cfg := common.LoadConfig()
	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func openStore(cfg *common.Config) (*store.Store, error) {
	return store.Open(cfg.Paths.DBPath)
}

func newProcessor(cfg *common.Config, st *store.Store, logger *slog.Logger) *pipeline.Processor {
	r := raster.New(raster.Config{
		Pdftoppm:    cfg.Raster.Pdftoppm,
		DPI:         cfg.Raster.DPI,
		JPEGQuality: cfg.Raster.JPEGQuality,
		MaxPages:    cfg.Raster.MaxPages,
	}, logger)
	client := anthropic.NewClient(anthropic.Config{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		ExtractModel: cfg.LLM.ExtractModel,
		LinkModel:    cfg.LLM.LinkModel,
		Timeout:      cfg.LLM.Timeout,
		MaxRetries:   cfg.LLM.MaxRetries,
		Breaker:      cfg.LLM.Breaker,
	}, llm.BuildSystemPrompt(), logger)
	lk := linker.New(st, client, cfg.Link.MinConfidence, logger)
	return pipeline.NewProcessor(st, r, client, lk, cfg.Paths.ProcessedDir, logger)
}

func processCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "process [pdf]",
		Short: "Process one PDF, or every PDF in the inbox",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			proc := newProcessor(cfg, st, logger)
			ctx := cmd.Context()

			if len(args) == 1 {
				res, err := proc.Process(ctx, args[0], force)
				if err != nil {
					return err
				}
				switch {
				case res == nil:
					fmt.Println("Skipped.")
				case res.FromStore:
					fmt.Printf("Already processed: %s (doc %d)\n", res.Filename, res.DocID)
				default:
					fmt.Printf("Done: %s - %s\n", res.DocType, res.Subject)
				}
				return nil
			}

			results, failed, err := proc.ProcessDirectory(ctx, cfg.Paths.InboxDir, force)
			if err != nil {
				return err
			}
			fmt.Printf("Processed: %d, Failed: %d\n", len(results), len(failed))
			for _, name := range failed {
				fmt.Printf("  failed: %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "reprocess even if already done")
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the inbox and auto-process new PDFs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			proc := newProcessor(cfg, st, logger)
			w := ingest.NewWatcher(ingest.Config{
				InboxDir:      cfg.Paths.InboxDir,
				RetryAttempts: cfg.Watch.RetryAttempts,
				RetryCooldown: cfg.Watch.RetryCooldown,
				StablePoll:    cfg.Watch.StablePoll,
			}, proc, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Printf("Watching %s for new PDFs. Ctrl+C to stop.\n", cfg.Paths.InboxDir)
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export documents, actions and issues to an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			data, err := export.NewService(st, logger).ExportXLSX()
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Printf("Exported to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "pflegedocs_export.xlsx", "output file")
	return cmd
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify environment setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseDir != "" {
				os.Setenv("PFLEGEDOCS_DIR", baseDir)
			}
			cfg := common.LoadConfig()
			ok := true

			if cfg.LLM.APIKey == "" {
				fmt.Println("MISSING: ANTHROPIC_API_KEY is not set")
				ok = false
			} else {
				fmt.Println("ok: API key present")
			}
			if _, err := exec.LookPath(cfg.Raster.Pdftoppm); err != nil {
				fmt.Printf("MISSING: %s not found in PATH (install poppler-utils)\n", cfg.Raster.Pdftoppm)
				ok = false
			} else {
				fmt.Printf("ok: %s found\n", cfg.Raster.Pdftoppm)
			}
			if err := os.MkdirAll(cfg.Paths.InboxDir, 0o755); err != nil {
				fmt.Printf("ERROR: cannot create inbox %s: %v\n", cfg.Paths.InboxDir, err)
				ok = false
			} else {
				fmt.Printf("ok: inbox %s\n", cfg.Paths.InboxDir)
			}
			if err := os.MkdirAll(cfg.Paths.ProcessedDir, 0o755); err != nil {
				fmt.Printf("ERROR: cannot create processed dir %s: %v\n", cfg.Paths.ProcessedDir, err)
				ok = false
			} else {
				fmt.Printf("ok: processed dir %s\n", cfg.Paths.ProcessedDir)
			}
			st, err := store.Open(cfg.Paths.DBPath)
			if err != nil {
				fmt.Printf("ERROR: cannot open database %s: %v\n", cfg.Paths.DBPath, err)
				ok = false
			} else {
				st.Close()
				fmt.Printf("ok: database %s\n", cfg.Paths.DBPath)
			}

			if !ok {
				return fmt.Errorf("setup incomplete")
			}
			fmt.Println("All good.")
			return nil
		},
	}
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage personal tasks",
	}
	cmd.AddCommand(taskAddCmd(), taskDoneCmd(), taskListCmd(), taskRmCmd())
	return cmd
}

func taskStore() (*store.Store, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openStore(cfg)
}

func taskAddCmd() *cobra.Command {
	var deadline string

	cmd := &cobra.Command{
		Use:   "add [text]",
		Short: "Add a personal task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := taskStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var dl *string
			if deadline != "" {
				dl = &deadline
			}
			id, err := st.AddPersonalTask(args[0], dl)
			if err != nil {
				return err
			}
			fmt.Printf("Added task %d\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline (YYYY-MM-DD)")
	return cmd
}

func taskDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done [id]",
		Short: "Mark a task done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			st, err := taskStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.SetPersonalTaskDone(id, true); err != nil {
				return err
			}
			fmt.Printf("Task %d done\n", id)
			return nil
		},
	}
}

func taskListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List personal tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := taskStore()
			if err != nil {
				return err
			}
			defer st.Close()

			tasks, err := st.ListPersonalTasks(!all)
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Println("No tasks.")
				return nil
			}
			for _, t := range tasks {
				mark := " "
				if t.Done {
					mark = "x"
				}
				deadline := ""
				if t.Deadline != nil {
					deadline = "  due " + *t.Deadline
				}
				fmt.Printf("[%s] %3d  %s%s\n", mark, t.ID, t.Task, deadline)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include completed tasks")
	return cmd
}

func taskRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			st, err := taskStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.DeletePersonalTask(id); err != nil {
				return err
			}
			fmt.Printf("Task %d deleted\n", id)
			return nil
		},
	}
}
