// Package schedule runs periodic evaluations of a dataset directory.
package schedule

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tidwall/match"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Job is called once per tick with the tick time.
type Job func(ctx context.Context, now time.Time)

type Runner struct {
	expr     string
	schedule cron.Schedule
	location *time.Location

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NewRunner parses a five-field cron expression.
func NewRunner(expr string, loc *time.Location) (*Runner, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty schedule")
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid eval_schedule '%s': %w", expr, err)
	}
	if loc == nil {
		loc = time.Local
	}
	if sched.Next(time.Now().In(loc)).IsZero() {
		return nil, fmt.Errorf("eval_schedule '%s' never fires", expr)
	}
	return &Runner{
		expr:     expr,
		schedule: sched,
		location: loc,
		now:      time.Now,
		after:    time.After,
	}, nil
}

// Next is the first tick strictly after t.
func (r *Runner) Next(t time.Time) time.Time {
	return r.schedule.Next(t.In(r.location))
}

// Run blocks, calling job on every tick, until ctx is done.
func (r *Runner) Run(ctx context.Context, job Job) {
	log.Printf("Evaluation scheduled (cron: %s, tz: %s)", r.expr, r.location)
	for {
		now := r.now().In(r.location)
		next := r.schedule.Next(now)
		if next.IsZero() {
			log.Printf("Evaluation scheduler stopped: no future run for cron %s", r.expr)
			return
		}
		wait := next.Sub(now)
		log.Printf("Next evaluation at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

		select {
		case <-ctx.Done():
			log.Printf("Evaluation scheduler stopped: %v", ctx.Err())
			return
		case <-r.after(wait):
		}
		job(ctx, next)
	}
}

// MatchDatasets lists the regular files in dir whose base name matches the
// wildcard pattern (* and ?), sorted by name.
func MatchDatasets(dir, pattern string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dataset dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !e.Type().IsRegular() {
			continue
		}
		if match.Match(e.Name(), pattern) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
