package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/poiesic/tagger"
	"github.com/poiesic/tagger/ai"
	"github.com/poiesic/tagger/backup"
	"github.com/poiesic/tagger/config"
	"github.com/poiesic/tagger/core"
	"github.com/poiesic/tagger/tagging"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "tagger",
		Usage: "Label a food catalog with an LLM, batch by batch",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
				Value:   config.DefaultConfigPath(),
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Database path (overrides config)",
			},
			&cli.StringFlag{
				Name:  "driver",
				Usage: "Storage driver: badger or sqlite (overrides config)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Label every catalog record not yet processed",
				Action: runCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "Run mode (production, tuning)",
					},
					&cli.IntFlag{
						Name:  "skip",
						Usage: "Number of leading catalog records to skip",
					},
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Skip to the offset saved by the last run",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records per batch",
					},
					&cli.IntFlag{
						Name:  "max-epochs",
						Usage: "Maximum optimisation epochs per batch in tuning mode",
					},
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Judge score that accepts a batch in tuning mode",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum generation attempts per record",
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Delay between generation attempts",
					},
					&cli.StringFlag{
						Name:  "generator-host",
						Usage: "Generation service host URL",
					},
					&cli.StringFlag{
						Name:  "generator-model",
						Usage: "Generation model name",
					},
					&cli.StringFlag{
						Name:  "judge-host",
						Usage: "Judge service host URL",
					},
					&cli.StringFlag{
						Name:  "judge-model",
						Usage: "Judge model name",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Print progress to stderr",
						Value: true,
					},
				},
			},
			{
				Name:      "import",
				Usage:     "Load catalog records from an \"id, name\" text file or CSV",
				ArgsUsage: "<file>",
				Action:    importCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Input format (lines, csv); guessed from the extension when empty",
					},
				},
			},
			{
				Name:   "backup",
				Usage:  "Export record tags to JSON with a digest manifest",
				Action: backupCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Backup file path",
						Value:   "food_tags_backup.json",
					},
					&cli.StringFlag{
						Name:  "catalog-output",
						Usage: "Also write the catalog as \"id, name\" lines to this path",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent tag reads",
						Value: 8,
					},
				},
			},
			{
				Name:      "restore",
				Usage:     "Re-link tags from a backup file",
				ArgsUsage: "<file>",
				Action:    restoreCommand,
			},
			{
				Name:  "prompt",
				Usage: "Inspect or replace the stored instruction template",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Print the stored template",
						Action: promptShowCommand,
					},
					{
						Name:   "reset",
						Usage:  "Replace the stored template with the built-in default",
						Action: promptResetCommand,
					},
					{
						Name:      "set",
						Usage:     "Replace the stored template with the contents of a file",
						ArgsUsage: "<file>",
						Action:    promptSetCommand,
					},
				},
			},
			{
				Name:  "tags",
				Usage: "Inspect or remove the tags of a record",
				Subcommands: []*cli.Command{
					{
						Name:      "show",
						Usage:     "Print the tags linked to a record",
						ArgsUsage: "<record-id>",
						Action:    tagsShowCommand,
					},
					{
						Name:      "remove",
						Usage:     "Unlink tags from a record; all tags when none are named",
						ArgsUsage: "<record-id> [tag...]",
						Action:    tagsRemoveCommand,
					},
				},
			},
		},
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if c.IsSet("db") {
		cfg.Storage.Path = config.ExpandPath(c.String("db"))
	}
	if c.IsSet("driver") {
		cfg.Storage.Driver = c.String("driver")
	}
	if c.IsSet("mode") {
		cfg.Run.Mode = c.String("mode")
	}
	if c.IsSet("skip") {
		cfg.Run.Skip = c.Int("skip")
	}
	if c.IsSet("batch-size") {
		cfg.Run.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("max-epochs") {
		cfg.Run.MaxEpochs = c.Int("max-epochs")
	}
	if c.IsSet("min-score") {
		cfg.Run.MinScore = c.Float64("min-score")
	}
	if c.IsSet("max-retries") {
		cfg.Run.MaxRetries = c.Int("max-retries")
	}
	if c.IsSet("retry-delay") {
		cfg.Run.RetryDelay = config.Duration{Duration: c.Duration("retry-delay")}
	}
	if c.IsSet("generator-host") {
		cfg.Generator.Host = c.String("generator-host")
	}
	if c.IsSet("generator-model") {
		cfg.Generator.Model = c.String("generator-model")
	}
	if c.IsSet("judge-host") {
		cfg.Judge.Host = c.String("judge-host")
	}
	if c.IsSet("judge-model") {
		cfg.Judge.Model = c.String("judge-model")
	}
	return cfg, nil
}

func openDatabase(c *cli.Context) (*tagger.Database, *config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	db, err := tagger.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, cfg, nil
}

func runCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	if c.Bool("resume") && !c.IsSet("skip") {
		offset, err := checkpointOffset(ctx, cfg)
		if err != nil {
			return err
		}
		cfg.Run.Skip = offset
	}

	db, err := tagger.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	var console io.Writer
	if c.Bool("progress") {
		console = os.Stderr
	}
	runner, err := db.NewRunner(console)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Database: %s (%s)\n", cfg.Storage.Path, cfg.Storage.Driver)
	fmt.Fprintf(os.Stderr, "Mode: %s\n", cfg.Run.Mode)
	fmt.Fprintf(os.Stderr, "Generator: %s @ %s\n", cfg.Generator.Model, cfg.Generator.Host)
	if cfg.Run.Mode == string(tagging.ModeTuning) {
		fmt.Fprintf(os.Stderr, "Judge: %s @ %s\n", cfg.Judge.Model, cfg.Judge.Host)
	}
	fmt.Fprintln(os.Stderr)

	summary, runErr := runner.Run(ctx)
	if summary != nil {
		printSummary(summary)
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("run interrupted: %w", runErr)
		}
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}

// checkpointOffset opens the database only long enough to read the last
// saved offset.
func checkpointOffset(ctx context.Context, cfg *config.Config) (int, error) {
	db, err := tagger.Open(cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	repo := db.CheckpointRepository()
	if repo == nil {
		return 0, fmt.Errorf("the %s driver does not keep checkpoints; pass --skip", cfg.Storage.Driver)
	}
	checkpoint, err := repo.LoadCheckpoint(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if checkpoint == nil {
		return 0, nil
	}
	slog.Info("resuming from checkpoint", "run_id", checkpoint.RunID, "offset", checkpoint.Offset,
		"saved_at", checkpoint.UpdatedAt.Format(time.RFC3339))
	return checkpoint.Offset, nil
}

func printSummary(s *tagging.RunSummary) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "Run %s (%s)\n", s.RunID, s.Mode)
	fmt.Fprintf(os.Stderr, "  batches:   %d\n", s.Batches)
	fmt.Fprintf(os.Stderr, "  processed: %s/%s\n", humanize.Comma(int64(s.Processed)), humanize.Comma(int64(s.Total)))
	fmt.Fprintf(os.Stderr, "  labelled:  %s\n", humanize.Comma(int64(s.Succeeded)))
	fmt.Fprintf(os.Stderr, "  failed:    %d\n", len(s.Failed))
	fmt.Fprintf(os.Stderr, "  template:  v%d\n", s.Template.Version)
	fmt.Fprintf(os.Stderr, "  elapsed:   %s\n", s.Elapsed.Round(time.Second))
	if s.PersistErrors != nil {
		fmt.Fprintf(os.Stderr, "  persistence errors:\n    %s\n",
			strings.ReplaceAll(s.PersistErrors.Error(), "\n", "\n    "))
	}
	if s.ResumeOffset < s.Total {
		fmt.Fprintf(os.Stderr, "Restart with --skip %d to continue.\n", s.ResumeOffset)
	}
}

func importCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("import file is required")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := readRecords(f, path, c.String("format"))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := importRecords(c.Context, db.CatalogRepository(), records); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	total, err := db.CatalogRepository().Count(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Imported %s records; catalog holds %s\n",
		humanize.Comma(int64(len(records))), humanize.Comma(int64(total)))
	return nil
}

func backupCommand(c *cli.Context) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	exporter, err := db.NewExporter(backup.WithPoolSize(c.Int("workers")))
	if err != nil {
		return err
	}
	defer exporter.Release()

	output := c.String("output")
	manifest, err := exporter.Export(c.Context, output)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s: %d records, %d tagged, sha256 %s\n",
		output, manifest.Records, manifest.Tagged, manifest.Digest)

	if path := c.String("catalog-output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		n, err := exporter.WriteCatalog(c.Context, f)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("catalog export failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s: %d records\n", path, n)
	}
	return nil
}

func restoreCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("backup file is required")
	}

	snapshot, err := backup.Load(afero.NewOsFs(), path)
	if err != nil {
		return fmt.Errorf("failed to load backup: %w", err)
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	restored, missing, err := backup.Restore(c.Context, db.TagRepository(), snapshot)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Restored tags for %d records (%d not in catalog)\n", restored, missing)
	return nil
}

func promptShowCommand(c *cli.Context) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	tmpl, err := db.TemplateRepository().LoadTemplate(c.Context)
	if err != nil {
		return err
	}
	if tmpl == nil {
		fmt.Fprintln(os.Stderr, "No stored template; runs start from the built-in default:")
		fmt.Print(tagging.DefaultTemplate + "\n")
		return nil
	}
	fmt.Fprintf(os.Stderr, "Version %d, score %.1f, updated %s\n",
		tmpl.Version, tmpl.Score, tmpl.UpdatedAt.Format(time.RFC3339))
	fmt.Println(tmpl.Text)
	return nil
}

func promptResetCommand(c *cli.Context) error {
	return replaceTemplate(c, tagging.DefaultTemplate)
}

func promptSetCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("template file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return replaceTemplate(c, string(data))
}

// replaceTemplate stores text as the next template version.
func replaceTemplate(c *cli.Context, text string) error {
	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := db.TemplateRepository()
	current, err := repo.LoadTemplate(c.Context)
	if err != nil {
		return err
	}
	next := &core.Template{Text: text, UpdatedAt: time.Now().UTC()}
	if current != nil {
		next.Version = current.Version + 1
	}
	if err := core.ValidateTemplate(next, ai.NameSlot); err != nil {
		return err
	}
	if err := ai.CheckTemplate(text); err != nil {
		return err
	}
	if err := repo.SaveTemplate(c.Context, next); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Stored template version %d\n", next.Version)
	return nil
}

func tagsShowCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("record id is required")
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := db.CatalogRepository().GetRecord(c.Context, id)
	if err != nil {
		return err
	}
	names, err := db.TagRepository().GetRecordTags(c.Context, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s, %s: %s\n", rec.ID, rec.Name, strings.Join(names, ", "))
	return nil
}

func tagsRemoveCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("record id is required")
	}

	db, _, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	labels := c.Args().Tail()
	if err := db.TagRepository().RemoveRecordTags(c.Context, id, labels...); err != nil {
		return err
	}
	if len(labels) == 0 {
		fmt.Fprintf(os.Stderr, "Removed all tags from %s\n", id)
	} else {
		fmt.Fprintf(os.Stderr, "Removed %d tags from %s\n", len(labels), id)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
