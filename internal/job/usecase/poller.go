// Package usecase implements the submit-then-poll protocol shared by every server job.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/allisson/cecsync/internal/errors"
	"github.com/allisson/cecsync/internal/job/domain"
)

// Poller defaults.
const (
	DefaultPollInterval  = 5 * time.Second
	DefaultMaxIterations = 720
)

// StatusClient reads the current status of a submitted job.
type StatusClient interface {
	GetJobStatus(ctx context.Context, handle domain.Handle) (*domain.Job, error)
}

// SubmitFunc issues the call that creates a job and returns its server id.
type SubmitFunc func(ctx context.Context) (string, error)

// PollerConfig holds the default cadence used by Run.
type PollerConfig struct {
	Interval      time.Duration
	MaxIterations int
}

// Poller submits jobs and waits for them to reach a terminal status. It never retries:
// submit and transport failures surface to the caller immediately.
type Poller struct {
	config PollerConfig
	client StatusClient
	logger *slog.Logger
}

// NewPoller creates a new Poller.
func NewPoller(config PollerConfig, client StatusClient, logger *slog.Logger) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultMaxIterations
	}
	return &Poller{
		config: config,
		client: client,
		logger: logger,
	}
}

// Submit runs submit and returns the handle of the created job. Failures wrap ErrSubmit.
func (p *Poller) Submit(ctx context.Context, kind domain.Kind, submit SubmitFunc) (domain.Handle, error) {
	jobID, err := submit(ctx)
	if err != nil {
		return domain.Handle{}, errors.Join(domain.ErrSubmit, err)
	}
	if jobID == "" {
		return domain.Handle{}, errors.Wrapf(domain.ErrSubmit, "%s job submitted without an id", kind)
	}

	p.logger.Info("job submitted", slog.String("job_id", jobID), slog.String("kind", string(kind)))
	return domain.Handle{ID: jobID, Kind: kind}, nil
}

// AwaitTerminal polls the job once per interval. It returns the job on success, the job together
// with ErrJobFailed on failure, ErrTransient when a status request fails and ErrTimedOut after
// exactly maxIterations non-terminal polls. A non-positive interval or maxIterations falls back
// to the poller configuration.
func (p *Poller) AwaitTerminal(
	ctx context.Context,
	handle domain.Handle,
	interval time.Duration,
	maxIterations int,
) (*domain.Job, error) {
	if interval <= 0 {
		interval = p.config.Interval
	}
	if maxIterations <= 0 {
		maxIterations = p.config.MaxIterations
	}

	logger := p.logger.With(slog.String("job_id", handle.ID), slog.String("kind", string(handle.Kind)))

	// Drain the initial burst so the first status request also waits one interval.
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	limiter.Allow()

	for iteration := 1; iteration <= maxIterations; iteration++ {
		if err := limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, errors.Wrap(err, "job poll wait failed")
		}

		job, err := p.client.GetJobStatus(ctx, handle)
		if err != nil {
			return nil, errors.Join(domain.ErrTransient, err)
		}

		level := slog.LevelDebug
		if job.Status.IsTerminal() {
			level = slog.LevelInfo
		}
		logger.Log(ctx, level, "job status",
			slog.Int("iteration", iteration),
			slog.String("status", string(job.Status)),
			slog.Int("progress", job.Progress),
		)

		switch job.Status {
		case domain.StatusSuccess:
			return job, nil
		case domain.StatusFailed:
			detail := job.ErrorDescription
			if detail == "" {
				detail = "no error description"
			}
			return job, errors.Wrapf(domain.ErrJobFailed, "%s job %s: %s", handle.Kind, handle.ID, detail)
		}
	}

	logger.Warn("job did not reach a terminal status", slog.Int("iterations", maxIterations))
	return nil, errors.Wrapf(domain.ErrTimedOut, "%s job %s after %d polls", handle.Kind, handle.ID, maxIterations)
}

// Run submits a job and waits for it with the configured cadence.
func (p *Poller) Run(ctx context.Context, kind domain.Kind, submit SubmitFunc) (*domain.Job, error) {
	handle, err := p.Submit(ctx, kind, submit)
	if err != nil {
		return nil, err
	}
	return p.AwaitTerminal(ctx, handle, p.config.Interval, p.config.MaxIterations)
}
