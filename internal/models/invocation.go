package models

import "time"

// InvocationRecord describes one nested build invocation.
type InvocationRecord struct {
	Build       string           `json:"build"`
	Dir         string           `json:"dir"`
	Tasks       []TaskPath       `json:"tasks"`
	GitCommitID *string          `json:"git_commit_id"`
	StartedAt   time.Time        `json:"started_at"`
	EndedAt     time.Time        `json:"ended_at"`
	DurationSec float64          `json:"duration_sec"`
	Error       *InvocationError `json:"error"`
}

type InvocationError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// SessionResult summarizes one composite build session.
type SessionResult struct {
	SessionID        string             `json:"session_id"`
	Name             string             `json:"name"`
	Cancelled        bool               `json:"cancelled"`
	TotalRequests    int                `json:"total_requests"`
	Invocations      []InvocationRecord `json:"invocations"`
	FailedBuilds     int                `json:"failed_builds"`
	TasksExecuted    int                `json:"tasks_executed"`
	TotalDurationSec float64            `json:"total_duration_sec"`
	StartedAt        time.Time          `json:"started_at"`
	EndedAt          time.Time          `json:"ended_at"`
	Error            *InvocationError   `json:"error"`
}
