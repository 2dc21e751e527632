// Package scheduler repeats raffle draws on a clock-aligned schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// DrawFunc runs one draw. Its error is logged; the schedule continues.
type DrawFunc func(ctx context.Context) error

// Config holds scheduler configuration.
type Config struct {
	Interval       string         // duration ("5m") or cron expression ("*/5 * * * *")
	Timezone       *time.Location // defaults to UTC
	RunImmediately bool
	Logger         *slog.Logger
}

// Scheduler wraps a gocron scheduler holding a single draw job. A draw
// that is still running when the next tick fires is not overlapped: the
// tick is rescheduled.
type Scheduler struct {
	cron           gocron.Scheduler
	job            gocron.Job
	interval       string
	timezone       *time.Location
	runImmediately bool
	logger         *slog.Logger
}

var (
	cronPattern = regexp.MustCompile(`^(\S+\s+){4,5}\S+$`)

	// intervals that divide a minute, an hour or a day evenly
	validSecondIntervals = divisorsOf(60, false)
	validMinuteIntervals = divisorsOf(60, false)
	validHourIntervals   = divisorsOf(24, true)
)

func divisorsOf(n int, inclusive bool) map[int]bool {
	out := make(map[int]bool)
	for i := 1; i < n; i++ {
		if n%i == 0 {
			out[i] = true
		}
	}
	if inclusive {
		out[n] = true
	}
	return out
}

// New creates a scheduler that calls draw on every tick.
func New(ctx context.Context, cfg Config, draw DrawFunc) (*Scheduler, error) {
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	expr, withSeconds, err := cronFor(cfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("invalid interval: %w", err)
	}

	cron, err := gocron.NewScheduler(
		gocron.WithLocation(cfg.Timezone),
		gocron.WithLogger(gocronLogger{cfg.Logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	s := &Scheduler{
		cron:           cron,
		interval:       cfg.Interval,
		timezone:       cfg.Timezone,
		runImmediately: cfg.RunImmediately,
		logger:         cfg.Logger,
	}

	s.logger.Info("Draw schedule configured", "schedule", DescribeSchedule(cfg.Interval, cfg.Timezone))

	job, err := cron.NewJob(
		gocron.CronJob(expr, withSeconds),
		gocron.NewTask(func() {
			started := time.Now()
			if err := draw(ctx); err != nil {
				s.logger.Error("Draw failed", "error", err, "duration", time.Since(started))
				return
			}
			s.logger.Debug("Draw completed", "duration", time.Since(started))
		}),
		gocron.WithName("raffle-draw"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = cron.Shutdown()
		return nil, fmt.Errorf("failed to create draw job: %w", err)
	}
	s.job = job

	return s, nil
}

// cronFor turns an interval into the cron expression gocron runs.
func cronFor(interval string) (string, bool, error) {
	if isCronExpression(interval) {
		return interval, len(strings.Fields(interval)) == 6, nil
	}
	expr, err := durationToCron(interval)
	if err != nil {
		return "", false, err
	}
	return expr, len(strings.Fields(expr)) == 6, nil
}

// Start runs a draw right away when configured, then starts ticking.
func (s *Scheduler) Start() {
	if s.runImmediately {
		s.logger.Info("Running first draw immediately")
		if err := s.job.RunNow(); err != nil {
			s.logger.Error("Immediate draw failed to start", "error", err)
		}
	}

	s.cron.Start()

	if next, err := s.NextRun(); err == nil {
		s.logger.Info("Scheduler started", "next_run", next.Format(time.RFC3339), "timezone", s.timezone.String())
	} else {
		s.logger.Info("Scheduler started")
	}
}

// Stop waits for a running draw and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.cron.Shutdown()
}

// NextRun returns the next scheduled draw.
func (s *Scheduler) NextRun() (time.Time, error) {
	next, err := s.job.NextRun()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get next run: %w", err)
	}
	return next, nil
}

// ExpectedInterval is the spacing between draws, used for staleness
// checks. Cron expressions may be irregular; they report a conservative
// five minutes.
func ExpectedInterval(interval string) time.Duration {
	if interval == "" {
		return 0
	}
	if d, err := time.ParseDuration(interval); err == nil {
		return d
	}
	return 5 * time.Minute
}

func isCronExpression(s string) bool {
	return cronPattern.MatchString(s)
}

// IsCronExpression reports whether interval is a 5 or 6 field cron
// expression rather than a duration.
func IsCronExpression(interval string) bool {
	return isCronExpression(interval)
}

// durationToCron converts a duration to a clock-aligned cron expression:
//
//	"5m"  -> "*/5 * * * *"
//	"1h"  -> "0 */1 * * *"
//	"30s" -> "*/30 * * * * *"
func durationToCron(durationStr string) (string, error) {
	duration, err := time.ParseDuration(durationStr)
	if err != nil {
		return "", fmt.Errorf("invalid duration format: %w", err)
	}

	switch {
	case duration <= 0:
		return "", fmt.Errorf("duration must be positive (got %s)", durationStr)

	case duration < time.Minute:
		if duration%time.Second != 0 {
			return "", fmt.Errorf("duration must be whole seconds, minutes, or hours (got %s)", durationStr)
		}
		seconds := int(duration.Seconds())
		if !validSecondIntervals[seconds] {
			return "", fmt.Errorf("second interval %ds does not divide evenly into 60", seconds)
		}
		return fmt.Sprintf("*/%d * * * * *", seconds), nil

	case duration < time.Hour:
		if duration%time.Minute != 0 {
			return "", fmt.Errorf("duration must be whole seconds, minutes, or hours (got %s)", durationStr)
		}
		minutes := int(duration.Minutes())
		if !validMinuteIntervals[minutes] {
			return "", fmt.Errorf("minute interval %dm does not divide evenly into 60", minutes)
		}
		return fmt.Sprintf("*/%d * * * *", minutes), nil

	case duration%time.Hour == 0:
		hours := int(duration.Hours())
		if !validHourIntervals[hours] {
			return "", fmt.Errorf("hour interval %dh does not divide evenly into 24", hours)
		}
		return fmt.Sprintf("0 */%d * * *", hours), nil

	default:
		return "", fmt.Errorf("duration must be whole seconds, minutes, or hours (got %s)", durationStr)
	}
}

// ValidateScheduleInterval accepts an empty interval (single draw), an
// aligned duration or a cron expression.
func ValidateScheduleInterval(interval string) error {
	if interval == "" {
		return nil
	}
	if isCronExpression(interval) {
		if n := len(strings.Fields(interval)); n != 5 && n != 6 {
			return errors.New("cron expression must have 5 or 6 fields")
		}
		return nil
	}
	_, err := durationToCron(interval)
	return err
}

// DescribeSchedule renders the schedule for logs.
func DescribeSchedule(interval string, timezone *time.Location) string {
	if timezone == nil {
		timezone = time.UTC
	}

	if isCronExpression(interval) {
		return fmt.Sprintf("cron: %s (%s)", interval, timezone.String())
	}

	duration, err := time.ParseDuration(interval)
	if err != nil {
		return fmt.Sprintf("invalid: %s", interval)
	}

	cronExpr, err := durationToCron(interval)
	if err != nil {
		return fmt.Sprintf("duration: %s (non-aligned)", interval)
	}

	return fmt.Sprintf("every %s (aligned to clock, cron: %s, %s)", duration, cronExpr, timezone.String())
}

// gocronLogger routes gocron's own messages to slog.
type gocronLogger struct {
	logger *slog.Logger
}

func (a gocronLogger) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }
func (a gocronLogger) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a gocronLogger) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a gocronLogger) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
