package app

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"reviewbench/internal/config"
	"reviewbench/internal/domain"
	"reviewbench/internal/evaluation"
	"reviewbench/internal/httpx"
	"reviewbench/internal/integrations/llm"
	slackbot "reviewbench/internal/integrations/slack"
	"reviewbench/internal/report"
	"reviewbench/internal/schedule"
	"reviewbench/internal/storage/sqlite"
)

const usage = `usage: reviewbench <command> [flags]

commands:
  evaluate   evaluate a scored dataset and write a Markdown report (default)
  score      score a dataset's reviews with the configured LLM
  history    list stored evaluation runs, or show one with -run
  schedule   evaluate every matching dataset on eval_schedule until interrupted
`

const fallbackCandidateName = "LLM_Output"

type notifier interface {
	PublishReport(r slackbot.Report) error
}

type app struct {
	cfg      config.Config
	out      io.Writer
	errOut   io.Writer
	notifier notifier
	now      func() time.Time

	db *sql.DB
}

func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// Run executes one command and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := "evaluate"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}
	if cmd == "help" {
		fmt.Fprint(stdout, usage)
		return 0
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf("Config loaded. ReferenceKey=%s CandidateKey=%s ConfidenceLevel=%.3f Provider=%s Timezone=%s ExternalHTTPTimeout=%s",
		cfg.ReferenceKey, cfg.CandidateKey, cfg.ConfidenceLevel, cfg.LLMProvider, cfg.Timezone, appliedHTTPTimeout)

	a := &app{cfg: cfg, out: stdout, errOut: stderr, now: time.Now}
	if cfg.SlackConfigured() {
		a.notifier = slackbot.NewNotifier(cfg.SlackBotToken, cfg.ReportChannelID)
	}
	defer a.close()

	switch cmd {
	case "evaluate":
		err = a.cmdEvaluate(args)
	case "score":
		err = a.cmdScore(ctx, args)
	case "history":
		err = a.cmdHistory(args)
	case "schedule":
		err = a.cmdSchedule(ctx, args)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) openDB() (*sql.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	if dir := filepath.Dir(a.cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sqlite.InitDB(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	log.Printf("Database initialized at %s", a.cfg.DBPath)
	a.db = db
	return db, nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func (a *app) cmdEvaluate(args []string) error {
	fs := a.newFlagSet("evaluate")
	dataPath := fs.String("data", a.cfg.DataPath, "dataset to evaluate (.json, .jsonl)")
	candidate := fs.String("candidate", "", "candidate name shown in the report")
	noReport := fs.Bool("no-report", false, "skip writing the Markdown report")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*dataPath); err != nil {
		return fmt.Errorf("data file not found at %s", *dataPath)
	}
	_, err := a.evaluate(*dataPath, *candidate, !*noReport)
	return err
}

// evaluationRun is what one evaluate pass produced.
type evaluationRun struct {
	RunID      string
	Results    []domain.EvaluationResult
	ReportPath string
}

func (a *app) evaluate(dataPath, candidateFlag string, writeReport bool) (evaluationRun, error) {
	candidate := candidateName(candidateFlag, a.cfg.CandidateName, dataPath)
	fmt.Fprintf(a.out, "Starting evaluation for data: %s\n", dataPath)

	records := evaluation.LoadRecords(dataPath, a.cfg.RecordsPath)
	results := evaluation.Evaluate(records, evaluation.Options{
		ReferenceKey:    a.cfg.ReferenceKey,
		CandidateKey:    a.cfg.CandidateKey,
		ConfidenceLevel: a.cfg.ConfidenceLevel,
	})
	run := evaluationRun{Results: results}

	summary := report.SummaryLines(results)
	fmt.Fprintln(a.out, "\nEvaluation Results by Sentiment Bin (Summary):")
	for _, line := range summary {
		fmt.Fprintf(a.out, "  %s\n", line)
	}
	if evaluation.ValidRecords(results) == 0 {
		fmt.Fprintln(a.out, "No valid records were found. Please check the input file and keys.")
	}

	db, err := a.openDB()
	if err != nil {
		log.Printf("evaluate history disabled: %v", err)
	} else {
		run.RunID, err = sqlite.InsertRun(db, sqlite.Run{
			Dataset:         dataPath,
			Candidate:       candidate,
			ReferenceKey:    a.cfg.ReferenceKey,
			CandidateKey:    a.cfg.CandidateKey,
			ConfidenceLevel: a.cfg.ConfidenceLevel,
			CreatedAt:       a.now(),
			Results:         results,
		})
		if err != nil {
			log.Printf("evaluate store run failed: %v", err)
		} else {
			log.Printf("evaluate stored run=%s", run.RunID)
		}
	}

	if !writeReport {
		return run, nil
	}

	rendered := report.Render(results, filepath.Base(dataPath), candidate, report.Options{
		ConfidenceLevel: a.cfg.ConfidenceLevel,
		Thresholds:      report.Thresholds{Stable: a.cfg.StableLowerBound, Unstable: a.cfg.UnstableUpperBound},
		Extension:       a.cfg.ReportExtension,
		Now:             func() time.Time { return a.now().In(a.cfg.Location) },
	})
	path, err := report.WriteReportFile(rendered.Text, a.cfg.ReportOutputDir, rendered.FileName)
	if err != nil {
		fmt.Fprintln(a.out, "\nFailed to generate markdown report.")
		return run, fmt.Errorf("write report: %w", err)
	}
	run.ReportPath = path
	fmt.Fprintf(a.out, "\nMarkdown report successfully generated at: %s\n", path)

	if run.RunID != "" {
		if err := sqlite.SetReportPath(a.db, run.RunID, path); err != nil {
			log.Printf("evaluate set report path failed run=%s: %v", run.RunID, err)
		}
	}

	if a.notifier != nil {
		err := a.notifier.PublishReport(slackbot.Report{
			Title:        fmt.Sprintf("%s evaluation report for %s", candidate, filepath.Base(dataPath)),
			FilePath:     path,
			SummaryLines: summary,
		})
		if err != nil {
			log.Printf("evaluate slack notify failed: %v", err)
		}
	}
	return run, nil
}

// candidateName prefers an explicit name, then the configured one, then the
// dataset's base name. Placeholder datasets get a generic label.
func candidateName(flagValue, configured, dataPath string) string {
	if name := strings.TrimSpace(flagValue); name != "" {
		return name
	}
	if name := strings.TrimSpace(configured); name != "" {
		return name
	}
	base := report.DatasetBase(dataPath)
	switch strings.ToLower(base) {
	case "sample", "dummy", "":
		return fallbackCandidateName
	}
	return base
}

func (a *app) cmdScore(ctx context.Context, args []string) error {
	fs := a.newFlagSet("score")
	dataPath := fs.String("data", a.cfg.DataPath, "dataset to score (.json, .jsonl)")
	outPath := fs.String("out", "", "output path (default <data>_scored.<ext>)")
	modelKey := fs.String("model", "", "model preset from config models")
	if err := fs.Parse(args); err != nil {
		return err
	}

	model, err := a.cfg.ModelFor(*modelKey)
	if err != nil {
		return err
	}
	scorer, err := llm.NewScorer(model, a.cfg.LLMConcurrency, a.cfg.LLMMaxRetries)
	if err != nil {
		return err
	}

	ds, err := evaluation.ReadDataset(*dataPath, a.cfg.RecordsPath)
	if err != nil {
		return err
	}
	summary, err := scorer.ScoreRecords(ctx, ds.Records, a.cfg.TextKey, a.cfg.CandidateKey)
	if err != nil {
		return fmt.Errorf("scoring interrupted: %w", err)
	}

	if *outPath == "" {
		*outPath = llm.ScoredFileName(*dataPath)
	}
	if err := llm.WriteScoredDataset(ds, a.cfg.CandidateKey, *outPath); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Scored %d of %d records with %s/%s (skipped %d, failed %d, tokens %d)\nWrote %s\n",
		summary.Scored, summary.Total, model.Provider, model.Model, summary.Skipped, summary.Failed, summary.Usage.TotalTokens(), *outPath)
	return nil
}

func (a *app) cmdHistory(args []string) error {
	fs := a.newFlagSet("history")
	limit := fs.Int("limit", 20, "number of runs to list")
	runID := fs.String("run", "", "show the results of one run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := a.openDB()
	if err != nil {
		return err
	}

	if *runID != "" {
		run, err := sqlite.GetRun(db, *runID)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Run %s  %s  dataset=%s candidate=%s records=%d\n",
			run.ID, run.CreatedAt.In(a.cfg.Location).Format("2006-01-02 15:04:05"), run.Dataset, run.Candidate, run.TotalRecords)
		if run.ReportPath != "" {
			fmt.Fprintf(a.out, "Report: %s\n", run.ReportPath)
		}
		for _, line := range report.SummaryLines(run.Results) {
			fmt.Fprintf(a.out, "  %s\n", line)
		}
		return nil
	}

	runs, err := sqlite.ListRuns(db, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.out, "No evaluation runs recorded yet.")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(a.out, "%s  %s  %-30s %-20s records=%d\n",
			run.ID, run.CreatedAt.In(a.cfg.Location).Format("2006-01-02 15:04"), run.Dataset, run.Candidate, run.TotalRecords)
	}
	return nil
}

func (a *app) cmdSchedule(ctx context.Context, args []string) error {
	fs := a.newFlagSet("schedule")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(a.cfg.EvalSchedule) == "" {
		return errors.New("eval_schedule is not set")
	}
	if a.cfg.DatasetDir == "" {
		return errors.New("dataset_dir is not set")
	}
	runner, err := schedule.NewRunner(a.cfg.EvalSchedule, a.cfg.Location)
	if err != nil {
		return err
	}
	runner.Run(ctx, func(context.Context, time.Time) {
		a.evaluateDirectory()
	})
	return nil
}

// evaluateDirectory runs one evaluation per matching dataset. A failing
// dataset is logged and does not stop the others.
func (a *app) evaluateDirectory() int {
	paths, err := schedule.MatchDatasets(a.cfg.DatasetDir, a.cfg.DatasetPattern)
	if err != nil {
		log.Printf("schedule list datasets failed dir=%s: %v", a.cfg.DatasetDir, err)
		return 0
	}
	if len(paths) == 0 {
		log.Printf("schedule no datasets matched dir=%s pattern=%s", a.cfg.DatasetDir, a.cfg.DatasetPattern)
		return 0
	}
	done := 0
	for _, path := range paths {
		if _, err := a.evaluate(path, "", true); err != nil {
			log.Printf("schedule evaluate failed path=%s: %v", path, err)
			continue
		}
		done++
	}
	log.Printf("schedule evaluated datasets=%d of %d", done, len(paths))
	return done
}
