// Package qi defines the record types exchanged with the Quantum
// Inspire compute API. The schemas are owned by the remote service;
// every type here is parsed defensively, ignoring unknown fields.
package qi

import (
	"encoding/json"
	"time"
)

// JobStatus is the server-driven lifecycle state of a job. The client
// only ever observes these values, it never sets them.
type JobStatus string

const (
	JobStatusCreated   JobStatus = "CREATED"
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusComplete  JobStatus = "COMPLETE"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// statusRank orders statuses along the server's state machine so that
// a regression (e.g. RUNNING back to QUEUED) can be detected.
var statusRank = map[JobStatus]int{
	JobStatusCreated:   0,
	JobStatusQueued:    1,
	JobStatusRunning:   2,
	JobStatusComplete:  3,
	JobStatusFailed:    3,
	JobStatusCancelled: 3,
}

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed || s == JobStatusCancelled
}

// Known reports whether the status is one the client understands.
func (s JobStatus) Known() bool {
	_, ok := statusRank[s]
	return ok
}

// Precedes reports whether s comes strictly before other in the job
// state machine. Unknown statuses never precede anything.
func (s JobStatus) Precedes(other JobStatus) bool {
	a, okA := statusRank[s]
	b, okB := statusRank[other]
	return okA && okB && a < b
}

// AlgorithmType distinguishes purely quantum circuits from hybrid
// quantum/classical programs.
type AlgorithmType string

const (
	AlgorithmTypeQuantum AlgorithmType = "quantum"
	AlgorithmTypeHybrid  AlgorithmType = "hybrid"
)

// Job is one server-tracked execution of a program on a backend.
type Job struct {
	ID        string        `json:"id"`
	BackendID string        `json:"backend_id"`
	ProjectID string        `json:"project_id"`
	Status    JobStatus     `json:"status"`
	Type      AlgorithmType `json:"algorithm_type,omitempty"`
	Message   string        `json:"message,omitempty"`
	CreatedAt time.Time     `json:"created_at,omitzero"`
}

// Result is the raw output of a completed job: a histogram keyed by
// measured bit-string, or free-form text when no histogram was
// produced.
type Result struct {
	JobID     string             `json:"job_id"`
	Histogram map[string]float64 `json:"histogram,omitempty"`
	RawText   string             `json:"raw_text,omitempty"`
}

// FinalResult is the always-present artifact of a job's finalize
// step. For quantum jobs it mirrors Result; for hybrid jobs its shape
// is caller-defined, so the payload stays an opaque JSON tree.
type FinalResult struct {
	JobID string          `json:"job_id"`
	Data  json.RawMessage `json:"data"`
}

// Project is a logical grouping of jobs.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// BackendStatus is the operational availability of a backend.
type BackendStatus string

const (
	BackendStatusAvailable   BackendStatus = "available"
	BackendStatusUnavailable BackendStatus = "unavailable"
)

// Backend is a named execution target, simulator or hardware.
type Backend struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Type   string        `json:"type,omitempty"`
	Status BackendStatus `json:"status"`
}

// Page is the service's list envelope.
type Page[T any] struct {
	Items []T `json:"items"`
}
