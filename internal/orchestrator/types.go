package orchestrator

import (
	"errors"
	"time"
)

// Status is the terminal state of one agent's task.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
)

// ReportStatus is the outcome of a whole round.
type ReportStatus string

const (
	ReportOK    ReportStatus = "ok"
	ReportError ReportStatus = "error"
)

var (
	// ErrInvalidInput rejects a round before any task starts.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAssembly reports that the merged artifact could not be written.
	ErrAssembly = errors.New("artifact assembly failed")
)

// TimeoutError marks a task that exceeded its budget.
type TimeoutError struct {
	Agent   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return "agent " + e.Agent + " timed out after " + e.Timeout.String()
}

// Task binds one agent to one prompt for one round. Owned by the Dispatcher.
type Task struct {
	ID        string
	Agent     string
	Model     string
	Prompt    string
	CreatedAt time.Time
	StartedAt time.Time
}

// Result is the immutable outcome of one Task. Output and digests are set
// only when Status is StatusSuccess; Error only otherwise.
type Result struct {
	Agent           string        `json:"agent"`
	Model           string        `json:"model,omitempty"`
	Output          string        `json:"output,omitempty"`
	DigestPrimary   string        `json:"digest_primary,omitempty"`
	DigestSecondary string        `json:"digest_secondary,omitempty"`
	Status          Status        `json:"status"`
	Error           string        `json:"error,omitempty"`
	ObservedAt      time.Time     `json:"timestamp"`
	Duration        time.Duration `json:"-"`
	DurationMS      int64         `json:"duration_ms"`
}

// Succeeded reports whether the result carries output.
func (r Result) Succeeded() bool { return r.Status == StatusSuccess }

// Summary counts results by outcome.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	TimedOut  int `json:"timed_out"`
}

// Summarize tallies a result set. Timeouts count as failed too.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			s.Succeeded++
		case StatusTimeout:
			s.TimedOut++
			s.Failed++
		default:
			s.Failed++
		}
	}
	return s
}

// Report is the terminal output of one round.
type Report struct {
	RoundID      string       `json:"round_id,omitempty"`
	Status       ReportStatus `json:"status"`
	Prompt       string       `json:"prompt,omitempty"`
	Agents       []Result     `json:"agents"`
	ArtifactPath *string      `json:"html_output"`
	Error        string       `json:"error,omitempty"`
	Summary      Summary      `json:"summary"`
	StartedAt    time.Time    `json:"started_at"`
	DurationMS   int64        `json:"duration_ms"`
}
