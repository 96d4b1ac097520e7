package domain

import "time"

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailed  RunStatus = "failed"
)

// IsValid checks if the run status is a valid value.
func (s RunStatus) IsValid() bool {
	switch s {
	case RunRunning, RunSuccess, RunPartial, RunFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends the run lifecycle.
func (s RunStatus) IsTerminal() bool {
	return s == RunSuccess || s == RunPartial || s == RunFailed
}

// RunCounters tracks item flow through the pipeline stages.
type RunCounters struct {
	RawCollected    int
	AfterNormalize  int
	AfterDedup      int
	AnalyzedSuccess int
	AnalyzedFailed  int
	Delivered       int
}

// PipelineRun is one orchestrator execution.
// Corresponds to the pipeline_runs table.
type PipelineRun struct {
	RunID      string // uuid
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     RunStatus
	Counters   RunCounters
	ErrorLog   string
}

// DeliveryStatus is the lifecycle state of one channel delivery.
type DeliveryStatus string

const (
	DeliveryPending  DeliveryStatus = "pending"
	DeliverySuccess  DeliveryStatus = "success"
	DeliveryFailed   DeliveryStatus = "failed"
	DeliveryRetrying DeliveryStatus = "retrying"
)

// DeliveryLog records one attempt to push a digest to a channel.
// Created pending when a delivery begins; mutated to a terminal status once.
type DeliveryLog struct {
	ID           int64
	RunID        string
	Channel      string
	Status       DeliveryStatus
	ErrorMessage string
	RetryCount   int
	ChannelRef   string // channel-specific reference, e.g. a page id
	CreatedAt    time.Time
}
