// Package jobs submits programs for execution and tracks them to
// completion: submission, status polling, and the two result fetches.
package jobs

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	qi "github.com/quantum-inspire/qi-go"
	"github.com/quantum-inspire/qi-go/api"
)

const (
	// DefaultPollInterval matches the service's suggested polling rate.
	DefaultPollInterval = 5 * time.Second

	DefaultPollTimeout = 15 * time.Minute
)

// ProjectCreator creates the implicit project a submission lands in
// when the caller did not name one.
type ProjectCreator interface {
	Create(ctx context.Context, name, description string) (qi.Project, error)
}

// Manager coordinates job submission, polling, and result retrieval.
type Manager struct {
	client   *api.Client
	projects ProjectCreator
	nowTime  func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) { m.nowTime = nowFunc }
}

// NewManager creates a job manager driving client, creating implicit
// projects through projects.
func NewManager(client *api.Client, projects ProjectCreator, options ...ManagerOption) *Manager {
	m := &Manager{
		client:   client,
		projects: projects,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// SubmitRequest describes one program submission. Shots is optional;
// when nil the backend's default applies.
type SubmitRequest struct {
	Program        string
	BackendID      string
	ProjectID      string
	Name           string
	Type           qi.AlgorithmType
	Shots          *int
	RawDataEnabled bool
}

// jobIn is the submission payload the service expects.
type jobIn struct {
	BackendID      string `json:"backend_id"`
	ProjectID      string `json:"project_id"`
	Name           string `json:"name,omitempty"`
	AlgorithmType  string `json:"algorithm_type,omitempty"`
	Content        string `json:"content"`
	NumberOfShots  *int   `json:"number_of_shots,omitempty"`
	RawDataEnabled bool   `json:"raw_data_enabled,omitempty"`
}

// Submit validates the request and uploads the program. When no
// project is given, one is created first and the job lands in it.
// Submission is deliberately not idempotent: every call creates a
// fresh job with a server-assigned id.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (qi.Job, error) {
	if strings.TrimSpace(req.Program) == "" {
		return qi.Job{}, &ValidationError{Field: "program", Reason: "payload is empty"}
	}
	if req.BackendID == "" {
		return qi.Job{}, &ValidationError{Field: "backend_id", Reason: "no backend given"}
	}
	if req.Shots != nil && *req.Shots <= 0 {
		return qi.Job{}, &ValidationError{Field: "number_of_shots", Reason: "must be a positive integer"}
	}

	projectID := req.ProjectID
	if projectID == "" {
		name := req.Name
		if name == "" {
			name = "qi-project-" + uuid.NewString()[:8]
		}
		project, err := m.projects.Create(ctx, name, "created by job submission")
		if err != nil {
			return qi.Job{}, errors.Wrap(err, "[Submit] failed to create implicit project")
		}
		projectID = project.ID
	}

	payload := jobIn{
		BackendID:      req.BackendID,
		ProjectID:      projectID,
		Name:           req.Name,
		AlgorithmType:  string(req.Type),
		Content:        req.Program,
		NumberOfShots:  req.Shots,
		RawDataEnabled: req.RawDataEnabled,
	}
	var job qi.Job
	if err := m.client.Post(ctx, "/jobs", payload, &job); err != nil {
		return qi.Job{}, err
	}
	if err := validateJob(job); err != nil {
		return qi.Job{}, err
	}
	return job, nil
}

// Get reads the job's current state. A side-effect-free read; repeated
// calls with the same id observe, never mutate.
func (m *Manager) Get(ctx context.Context, jobID string) (qi.Job, error) {
	if jobID == "" {
		return qi.Job{}, &ValidationError{Field: "job_id", Reason: "no job id given"}
	}
	var job qi.Job
	if err := m.client.Get(ctx, "/jobs/"+jobID, &job); err != nil {
		return qi.Job{}, err
	}
	if err := validateJob(job); err != nil {
		return qi.Job{}, err
	}
	return job, nil
}

// PollConfig bounds one AwaitResult call.
type PollConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// AwaitResult polls the job until a terminal state or the timeout
// elapses, then fetches the result on COMPLETE. Transient network
// failures during a poll are tolerated until the deadline; a state
// regression reported by the service aborts immediately. On timeout
// the job keeps running server-side.
func (m *Manager) AwaitResult(ctx context.Context, jobID string, cfg PollConfig) (qi.Result, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPollTimeout
	}
	deadline := m.nowTime().Add(cfg.Timeout)

	var last qi.JobStatus
	for {
		job, err := m.Get(ctx, jobID)
		switch {
		case err == nil:
			if last != "" && job.Status.Precedes(last) {
				return qi.Result{}, &StateRegressionError{From: last, To: job.Status}
			}
			last = job.Status
			switch job.Status {
			case qi.JobStatusComplete:
				return m.fetchResult(ctx, jobID)
			case qi.JobStatusFailed, qi.JobStatusCancelled:
				return qi.Result{}, &JobFailedError{Status: job.Status, Diagnostic: job.Message}
			}
		case isTransient(err):
			// Retries are exhausted inside the client already; keep
			// polling until the deadline decides.
		default:
			return qi.Result{}, err
		}

		if !m.nowTime().Add(cfg.Interval).Before(deadline) {
			return qi.Result{}, &PollTimeoutError{LastStatus: last}
		}
		if err := sleep(ctx, cfg.Interval); err != nil {
			return qi.Result{}, err
		}
	}
}

// FetchResult retrieves the result of an already-completed job without
// polling. It fails with ErrResultNotReady until the job reaches
// COMPLETE.
func (m *Manager) FetchResult(ctx context.Context, jobID string) (qi.Result, error) {
	job, err := m.Get(ctx, jobID)
	if err != nil {
		return qi.Result{}, err
	}
	if job.Status != qi.JobStatusComplete {
		return qi.Result{}, errors.Wrapf(ErrResultNotReady, "job is %s", job.Status)
	}
	return m.fetchResult(ctx, jobID)
}

// FetchFinalResult retrieves the finalize-step artifact. It is
// independent of AwaitResult and fails with ErrResultNotReady until
// the job reaches COMPLETE.
func (m *Manager) FetchFinalResult(ctx context.Context, jobID string) (qi.FinalResult, error) {
	job, err := m.Get(ctx, jobID)
	if err != nil {
		return qi.FinalResult{}, err
	}
	if job.Status != qi.JobStatusComplete {
		return qi.FinalResult{}, errors.Wrapf(ErrResultNotReady, "job is %s", job.Status)
	}

	var final qi.FinalResult
	if err := m.client.Get(ctx, "/jobs/"+jobID+"/final_result", &final); err != nil {
		return qi.FinalResult{}, err
	}
	if len(final.Data) == 0 {
		return qi.FinalResult{}, api.Malformedf("final result for job %s carries no data", jobID)
	}
	return final, nil
}

func (m *Manager) fetchResult(ctx context.Context, jobID string) (qi.Result, error) {
	var result qi.Result
	if err := m.client.Get(ctx, "/jobs/"+jobID+"/result", &result); err != nil {
		return qi.Result{}, err
	}
	if result.JobID == "" {
		return qi.Result{}, api.Malformedf("result is missing job_id")
	}
	return result, nil
}

func validateJob(job qi.Job) error {
	if job.ID == "" {
		return api.Malformedf("job record is missing id")
	}
	if !job.Status.Known() {
		return api.Malformedf("job %s reports unknown status %q", job.ID, job.Status)
	}
	return nil
}

func isTransient(err error) bool {
	var netErr *api.NetworkError
	return errors.As(err, &netErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
