// Package submit flattens session images, sends them to the tenant service
// and follows the resulting task until it reaches a terminal state.
package submit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"garment-studio/internal/config"
	studioimage "garment-studio/internal/image"
	"garment-studio/internal/mask"
	"garment-studio/internal/taskstore"
	"garment-studio/internal/tenant"

	"github.com/sirupsen/logrus"
)

// MaxImages is the primary image plus the three secondary references the
// remote workflow accepts.
const MaxImages = 4

// Source is an image the orchestrator can flatten and describe.
type Source interface {
	mask.Target
	Annotation() string
}

// Service is the subset of the tenant client the orchestrator needs.
type Service interface {
	Submit(ctx context.Context, req tenant.SubmitRequest) (*tenant.SubmitResponse, error)
	Status(ctx context.Context, taskID string) (*tenant.StatusResponse, error)
	Complete(ctx context.Context, taskID string) ([]string, error)
}

// Options tune submission and polling.
type Options struct {
	PollInterval  time.Duration
	MaxAttempts   int
	OutputWidth   int
	OutputHeight  int
	RequirePrompt bool
}

// OptionsFromConfig converts the submit section of the config.
func OptionsFromConfig(c config.SubmitConfig) Options {
	return Options{
		PollInterval:  c.PollInterval,
		MaxAttempts:   c.MaxAttempts,
		OutputWidth:   c.OutputWidth,
		OutputHeight:  c.OutputHeight,
		RequirePrompt: c.RequirePrompt,
	}
}

func (o Options) withDefaults() Options {
	d := config.DefaultConfig().Submit
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.OutputWidth <= 0 || o.OutputHeight <= 0 {
		o.OutputWidth, o.OutputHeight = d.OutputWidth, d.OutputHeight
	}
	return o
}

// Update is sent to the observer on every phase change and poll result.
type Update struct {
	Phase    Phase
	TaskID   string
	Status   tenant.TaskStatus
	Attempt  int
	Progress float64 // percent, reported by the service or estimated
	Message  string
	Outputs  []string
	Err      error
}

// Job is a submission whose rasters were flattened when it was prepared.
// Later edits to the session do not change it.
type Job struct {
	Request tenant.SubmitRequest
	Images  int // images included
	Skipped int // images beyond MaxImages
}

// Result is a finished task.
type Result struct {
	TaskID  string
	Outputs []string
}

// Orchestrator runs one submission at a time. Starting a new run cancels
// the one in flight.
type Orchestrator struct {
	svc   Service
	store taskstore.Store

	mu       sync.Mutex
	opts     Options
	phase    Phase
	run      uint64
	cancel   context.CancelFunc
	onUpdate func(Update)
}

// New creates an orchestrator. store may be nil.
func New(svc Service, store taskstore.Store, opts Options) *Orchestrator {
	return &Orchestrator{
		svc:   svc,
		store: store,
		opts:  opts.withDefaults(),
	}
}

// SetOptions replaces the options for subsequent runs.
func (o *Orchestrator) SetOptions(opts Options) {
	o.mu.Lock()
	o.opts = opts.withDefaults()
	o.mu.Unlock()
}

// Options returns the options in effect.
func (o *Orchestrator) Options() Options {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opts
}

// OnUpdate sets the observer. It is called from the goroutine running the
// submission.
func (o *Orchestrator) OnUpdate(fn func(Update)) {
	o.mu.Lock()
	o.onUpdate = fn
	o.mu.Unlock()
}

// Phase returns the phase of the latest run.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Prepare validates the sources and flattens them at the configured output
// size. Validation errors are returned before anything is flattened.
func (o *Orchestrator) Prepare(sources []Source) (*Job, error) {
	if len(sources) == 0 {
		return nil, ErrNoImages
	}
	opts := o.Options()

	annotations := make([]string, len(sources))
	for i, s := range sources {
		annotations[i] = s.Annotation()
	}
	prompt := BuildPrompt(annotations)
	if opts.RequirePrompt && prompt == "" {
		return nil, ErrEmptyPrompt
	}

	job := &Job{Request: tenant.SubmitRequest{Prompt: prompt}}
	if len(sources) > MaxImages {
		job.Skipped = len(sources) - MaxImages
		logrus.WithFields(logrus.Fields{
			"images":  len(sources),
			"skipped": job.Skipped,
		}).Warn("Only the first images are sent; extra images ignored")
		sources = sources[:MaxImages]
	}

	for i, s := range sources {
		flat, err := mask.Merge(s, opts.OutputWidth, opts.OutputHeight)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		data, err := studioimage.PNGBytes(flat)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		img := tenant.Image{Name: fmt.Sprintf("image_%d.png", i+1), Data: data}
		if i == 0 {
			job.Request.Primary = img
		} else {
			job.Request.Secondary = append(job.Request.Secondary, img)
		}
	}
	job.Images = len(sources)
	return job, nil
}

// Submit prepares the sources and runs the job to completion.
func (o *Orchestrator) Submit(ctx context.Context, sources []Source) (*Result, error) {
	job, err := o.Prepare(sources)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, job)
}

// Cancel aborts the run in flight, if any.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

// Run sends job and polls it to a terminal state. A run started while
// another is in flight supersedes it; the older run ends with
// context.Canceled and its updates are no longer delivered.
func (o *Orchestrator) Run(ctx context.Context, job *Job) (*Result, error) {
	ctx, run := o.begin(ctx)
	defer o.end(run)

	rec := &taskstore.Record{Prompt: job.Request.Prompt, Images: job.Images, Phase: PhaseSubmitting.String()}
	o.record(ctx, rec, true)

	o.transition(run, Update{Phase: PhaseSubmitting})
	resp, err := o.svc.Submit(ctx, job.Request)
	if err != nil {
		return nil, o.fail(run, rec, "", err)
	}
	rec.TaskID = resp.TaskID

	log := logrus.WithField("task_id", resp.TaskID)
	log.WithField("images", job.Images).Info("Submission accepted, polling")
	o.transition(run, Update{Phase: PhasePolling, TaskID: resp.TaskID, Status: resp.Status, Message: resp.Message})
	rec.Phase = PhasePolling.String()
	o.record(ctx, rec, false)

	res, err := o.poll(ctx, run, resp.TaskID)
	if err != nil {
		return nil, o.fail(run, rec, resp.TaskID, err)
	}

	rec.Phase = PhaseSucceeded.String()
	rec.Outputs = res.Outputs
	o.record(context.WithoutCancel(ctx), rec, false)
	o.transition(run, Update{Phase: PhaseSucceeded, TaskID: res.TaskID, Status: tenant.StatusSuccess, Progress: 100, Outputs: res.Outputs})
	log.WithField("outputs", len(res.Outputs)).Info("Task succeeded")
	return res, nil
}

// PollUntilTerminal polls taskID without touching the orchestrator phase,
// then fetches the outputs of a succeeded task.
func (o *Orchestrator) PollUntilTerminal(ctx context.Context, taskID string) (*Result, error) {
	return o.poll(ctx, 0, taskID)
}

func (o *Orchestrator) poll(ctx context.Context, run uint64, taskID string) (*Result, error) {
	opts := o.Options()
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		st, err := o.svc.Status(ctx, taskID)
		if err != nil {
			return nil, err
		}

		progress := float64(attempt) / float64(opts.MaxAttempts) * 100
		if st.Progress != nil {
			progress = *st.Progress
		}
		if run != 0 {
			o.emit(run, Update{Phase: PhasePolling, TaskID: taskID, Status: st.Status, Attempt: attempt, Progress: progress, Message: st.Message})
		}

		switch st.Status {
		case tenant.StatusSuccess:
			outputs, err := o.svc.Complete(ctx, taskID)
			if err != nil {
				return nil, fmt.Errorf("complete task %s: %w", taskID, err)
			}
			return &Result{TaskID: taskID, Outputs: outputs}, nil
		case tenant.StatusFailed:
			return nil, &TaskError{TaskID: taskID, Message: st.Message}
		}

		if attempt == opts.MaxAttempts {
			break
		}
		wait := time.NewTimer(opts.PollInterval)
		select {
		case <-ctx.Done():
			wait.Stop()
			return nil, ctx.Err()
		case <-wait.C:
		}
	}
	return nil, fmt.Errorf("%w: task %s not finished after %d checks", ErrTimeout, taskID, opts.MaxAttempts)
}

func (o *Orchestrator) begin(parent context.Context) (context.Context, uint64) {
	ctx, cancel := context.WithCancel(parent)
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
		logrus.Info("Previous submission superseded")
	}
	o.run++
	o.cancel = cancel
	return ctx, o.run
}

func (o *Orchestrator) end(run uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run == run && o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

// transition sets the phase and notifies, unless run was superseded.
func (o *Orchestrator) transition(run uint64, u Update) {
	o.mu.Lock()
	if o.run != run {
		o.mu.Unlock()
		return
	}
	o.phase = u.Phase
	o.mu.Unlock()
	o.emit(run, u)
}

func (o *Orchestrator) emit(run uint64, u Update) {
	o.mu.Lock()
	current := o.run == run
	fn := o.onUpdate
	o.mu.Unlock()
	if current && fn != nil {
		fn(u)
	}
}

func (o *Orchestrator) fail(run uint64, rec *taskstore.Record, taskID string, err error) error {
	phase := PhaseFailed
	if errors.Is(err, ErrTimeout) {
		phase = PhaseTimedOut
	}
	rec.Phase = phase.String()
	rec.Error = err.Error()
	o.record(context.Background(), rec, false)

	logrus.WithFields(logrus.Fields{"task_id": taskID, "phase": phase}).WithError(err).Warn("Submission did not succeed")
	o.transition(run, Update{Phase: phase, TaskID: taskID, Err: err, Message: UserMessage(err)})
	return err
}

// record persists rec; store failures are logged and otherwise ignored.
func (o *Orchestrator) record(ctx context.Context, rec *taskstore.Record, create bool) {
	if o.store == nil {
		return
	}
	var err error
	if create {
		_, err = o.store.Create(ctx, rec)
	} else if rec.ID != "" {
		err = o.store.Update(ctx, rec)
	}
	if err != nil {
		logrus.WithError(err).Debug("Failed to record task")
	}
}
