package usecase

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/cecsync/internal/errors"
	eventDomain "github.com/allisson/cecsync/internal/event/domain"
	jobDomain "github.com/allisson/cecsync/internal/job/domain"
	jobUsecase "github.com/allisson/cecsync/internal/job/usecase"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockSourceServer struct {
	mock.Mock
}

func (m *mockSourceServer) SubmitExportJob(ctx context.Context, itemID string) (string, error) {
	args := m.Called(ctx, itemID)
	return args.String(0), args.Error(1)
}

func (m *mockSourceServer) DownloadArtifact(ctx context.Context, link string) (io.ReadCloser, error) {
	args := m.Called(ctx, link)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return io.NopCloser(strings.NewReader(args.String(0))), args.Error(1)
}

// mockDestinationServer receives uploaded content as a string so expectations can match it.
type mockDestinationServer struct {
	mock.Mock
}

func (m *mockDestinationServer) UploadArtifact(ctx context.Context, name string, content io.Reader) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	args := m.Called(ctx, name, string(data))
	return args.String(0), args.Error(1)
}

func (m *mockDestinationServer) SubmitImportJob(ctx context.Context, fileID, repositoryID string) (string, error) {
	args := m.Called(ctx, fileID, repositoryID)
	return args.String(0), args.Error(1)
}

func (m *mockDestinationServer) DeleteArtifact(ctx context.Context, fileID string) error {
	args := m.Called(ctx, fileID)
	return args.Error(0)
}

func (m *mockDestinationServer) DeleteItem(ctx context.Context, itemID string) error {
	args := m.Called(ctx, itemID)
	return args.Error(0)
}

func (m *mockDestinationServer) PublishItems(ctx context.Context, channelID string, itemIDs []string) (string, error) {
	args := m.Called(ctx, channelID, itemIDs)
	return args.String(0), args.Error(1)
}

func (m *mockDestinationServer) UnpublishItems(
	ctx context.Context,
	channelID string,
	itemIDs []string,
) (string, error) {
	args := m.Called(ctx, channelID, itemIDs)
	return args.String(0), args.Error(1)
}

// stubJobRunner invokes the submit function and then resolves the job with a scripted terminal
// result per kind, skipping the polling.
type stubJobRunner struct {
	mu    sync.Mutex
	jobs  map[jobDomain.Kind]*jobDomain.Job
	errs  map[jobDomain.Kind]error
	kinds []jobDomain.Kind
}

func newStubJobRunner() *stubJobRunner {
	return &stubJobRunner{
		jobs: make(map[jobDomain.Kind]*jobDomain.Job),
		errs: make(map[jobDomain.Kind]error),
	}
}

func (s *stubJobRunner) resolve(kind jobDomain.Kind, job *jobDomain.Job, err error) *stubJobRunner {
	s.jobs[kind] = job
	s.errs[kind] = err
	return s
}

func (s *stubJobRunner) Run(
	ctx context.Context,
	kind jobDomain.Kind,
	submit jobUsecase.SubmitFunc,
) (*jobDomain.Job, error) {
	s.mu.Lock()
	s.kinds = append(s.kinds, kind)
	job, err := s.jobs[kind], s.errs[kind]
	s.mu.Unlock()

	jobID, submitErr := submit(ctx)
	if submitErr != nil {
		return nil, errors.Join(jobDomain.ErrSubmit, submitErr)
	}
	if job != nil && job.ID == "" {
		job.ID = jobID
	}
	return job, err
}

func (s *stubJobRunner) ranKinds() []jobDomain.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]jobDomain.Kind(nil), s.kinds...)
}

type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

type stubHandler struct {
	outcome eventDomain.Outcome
	events  []*eventDomain.Event
}

func (s *stubHandler) Handle(ctx context.Context, event *eventDomain.Event) eventDomain.Outcome {
	s.events = append(s.events, event)
	return s.outcome
}
