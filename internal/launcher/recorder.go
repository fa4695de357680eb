package launcher

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/spachava753/composite/internal/models"
)

// Recorder wraps a Launcher and keeps one InvocationRecord per instance.
type Recorder struct {
	Launcher Launcher

	mu      sync.Mutex
	records []*models.InvocationRecord
}

// NewRecorder creates a recorder around l.
func NewRecorder(l Launcher) *Recorder {
	return &Recorder{Launcher: l}
}

// NewInstance creates an instance through the wrapped launcher. A failure to
// create one is recorded as a finished invocation.
func (r *Recorder) NewInstance(ctx context.Context, req Request) (Instance, error) {
	rec := &models.InvocationRecord{
		Build:     req.Build.String(),
		Dir:       req.Dir,
		Tasks:     slices.Clone(req.Tasks),
		StartedAt: time.Now(),
	}
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()

	inst, err := r.Launcher.NewInstance(ctx, req)
	if err != nil {
		r.finish(rec, err)
		return nil, err
	}
	if src, ok := inst.(interface{ GitCommitID() *string }); ok {
		r.mu.Lock()
		rec.GitCommitID = src.GitCommitID()
		r.mu.Unlock()
	}
	return &recordedInstance{Instance: inst, r: r, rec: rec}, nil
}

// Records returns a snapshot of the recorded invocations in start order.
func (r *Recorder) Records() []models.InvocationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.InvocationRecord, len(r.records))
	for i, rec := range r.records {
		out[i] = *rec
	}
	return out
}

func (r *Recorder) finish(rec *models.InvocationRecord, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !rec.EndedAt.IsZero() {
		return
	}
	rec.EndedAt = time.Now()
	rec.DurationSec = rec.EndedAt.Sub(rec.StartedAt).Seconds()
	if err != nil {
		rec.Error = invocationError(err)
	}
}

// fail marks a finished record as failed unless it already carries an error.
func (r *Recorder) fail(rec *models.InvocationRecord, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.Error == nil {
		rec.Error = invocationError(err)
	}
}

func invocationError(err error) *models.InvocationError {
	// Errors from the wrapped launcher are not wrapped by the coordinator yet.
	typ := models.ErrorTypeOf(err)
	if typ == models.ErrInternalError {
		typ = models.ErrNestedExecutionFailed
	}
	return &models.InvocationError{Type: typ, Message: err.Error()}
}

type recordedInstance struct {
	Instance
	r   *Recorder
	rec *models.InvocationRecord
}

func (i *recordedInstance) Run(ctx context.Context) error {
	err := i.Instance.Run(ctx)
	i.r.finish(i.rec, err)
	return err
}

func (i *recordedInstance) Stop(ctx context.Context) error {
	err := i.Instance.Stop(ctx)
	if err != nil {
		i.r.finish(i.rec, nil)
		i.r.fail(i.rec, fmt.Errorf("stopping nested build: %w", err))
	}
	return err
}
