package purchase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultCompletionDelay is how long the success step is shown before the
// completion callback fires.
const DefaultCompletionDelay = 5 * time.Second

// Recorder observes flow activity.
type Recorder interface {
	FlowStarted()
	StepEntered(step string)
	OrchestrationFinished(outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) FlowStarted()                                {}
func (nopRecorder) StepEntered(string)                          {}
func (nopRecorder) OrchestrationFinished(string, time.Duration) {}

// FlowOptions configures a Flow.
type FlowOptions struct {
	ID              string
	JourneyID       string
	Initial         FormData
	CompletionDelay time.Duration

	// OnComplete is called once with the result, CompletionDelay after success.
	OnComplete func(Result)
	// OnClose is called when the flow is closed before success.
	OnClose func()

	Notifier Notifier
	Recorder Recorder
	Logger   *slog.Logger
}

// Flow is one buyer's purchase in progress. It is safe for concurrent use.
type Flow struct {
	id              string
	journeyID       string
	machine         *Machine
	orchestrator    *Orchestrator
	notifier        Notifier
	recorder        Recorder
	logger          *slog.Logger
	completionDelay time.Duration
	onComplete      func(Result)
	onClose         func()

	mu         sync.Mutex
	state      State
	closed     bool
	lastActive time.Time
	done       chan struct{}
	once       sync.Once
}

// NewFlow starts a flow at the payment type step.
func NewFlow(machine *Machine, orchestrator *Orchestrator, opts FlowOptions) *Flow {
	f := &Flow{
		id:              opts.ID,
		journeyID:       opts.JourneyID,
		machine:         machine,
		orchestrator:    orchestrator,
		notifier:        opts.Notifier,
		recorder:        opts.Recorder,
		logger:          opts.Logger,
		completionDelay: opts.CompletionDelay,
		onComplete:      opts.OnComplete,
		onClose:         opts.OnClose,
		state:           machine.Start(opts.Initial),
		lastActive:      time.Now(),
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.notifier == nil {
		f.notifier = LogNotifier{Logger: f.logger}
	}
	if f.recorder == nil {
		f.recorder = nopRecorder{}
	}
	if f.completionDelay <= 0 {
		f.completionDelay = DefaultCompletionDelay
	}
	f.logger = f.logger.With("flow_id", f.id, "property_id", machine.Property.ID)

	f.recorder.FlowStarted()
	f.recorder.StepEntered(string(f.state.Step))
	return f
}

// ID returns the flow identifier.
func (f *Flow) ID() string { return f.id }

// Machine returns the machine that computes the flow's transitions.
func (f *Flow) Machine() *Machine { return f.machine }

// State returns a snapshot of the flow.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Apply feeds an event to the flow. Leaving confirmation switches the flow to
// processing before Apply returns and runs the payment in the background;
// use Wait to block until it settles.
func (f *Flow) Apply(ctx context.Context, ev Event) (State, error) {
	switch ev.(type) {
	case PaymentSucceeded, PaymentFailed:
		return f.State(), ErrUnexpectedEvent
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return f.state, ErrFlowClosed
	}
	f.lastActive = time.Now()

	prev := f.state.Step
	next, cmd, err := f.machine.Apply(f.state, ev)
	f.state = next
	if next.Step != prev {
		f.recorder.StepEntered(string(next.Step))
	}
	if err != nil {
		if errors.Is(err, ErrStepInvalid) {
			f.logger.Debug("step validation failed", "step", next.Step, "reason", next.Error)
		}
		return f.state, err
	}

	if cmd == CommandSubmit {
		f.submitLocked(ctx)
	}

	return f.state, nil
}

// LastActive returns when the buyer last changed the flow.
func (f *Flow) LastActive() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastActive
}

// Next is shorthand for Apply(ctx, Next{}).
func (f *Flow) Next(ctx context.Context) (State, error) {
	return f.Apply(ctx, Next{})
}

// Back is shorthand for Apply(ctx, Back{}).
func (f *Flow) Back(ctx context.Context) (State, error) {
	return f.Apply(ctx, Back{})
}

func (f *Flow) submitLocked(ctx context.Context) {
	done := make(chan struct{})
	f.done = done

	sub := Submission{
		Property:  f.machine.Property,
		Config:    f.machine.Config,
		Form:      f.state.Form,
		Amount:    f.state.Amount,
		JourneyID: f.journeyID,
	}

	f.logger.Info("submitting payment", "amount_minor", sub.Amount.AmountMinor, "payment_type", sub.Form.PaymentType)

	// The payment runs to completion even if the caller goes away.
	go f.run(context.WithoutCancel(ctx), sub, done)
}

func (f *Flow) run(ctx context.Context, sub Submission, done chan struct{}) {
	defer close(done)

	start := time.Now()
	result, runErr := f.orchestrator.Run(ctx, sub)
	elapsed := time.Since(start)

	f.mu.Lock()
	var (
		notification Notification
		err          error
	)
	if runErr != nil {
		message := runErr.Error()
		var perr *PaymentError
		if errors.As(runErr, &perr) {
			message = perr.Message
		}
		f.logger.Warn("payment failed", "error", runErr)
		f.state, _, err = f.machine.Apply(f.state, PaymentFailed{Message: message})
		notification = failureNotification(f.id, f.state.Error)
		f.recorder.OrchestrationFinished("failed", elapsed)
	} else {
		f.state, _, err = f.machine.Apply(f.state, PaymentSucceeded{Result: *result})
		notification = successNotification(f.id, *result)
		f.recorder.OrchestrationFinished("succeeded", elapsed)
		f.scheduleCompletionLocked(*result)
	}
	if err == nil {
		f.recorder.StepEntered(string(f.state.Step))
	}
	f.mu.Unlock()

	if err != nil {
		f.logger.Error("failed to record payment outcome", "error", err)
		return
	}

	if err := f.notifier.Notify(ctx, notification); err != nil {
		f.logger.Warn("failed to deliver notification", "title", notification.Title, "error", err)
	}
}

func (f *Flow) scheduleCompletionLocked(result Result) {
	if f.onComplete == nil {
		return
	}
	time.AfterFunc(f.completionDelay, func() {
		f.once.Do(func() { f.onComplete(result) })
	})
}

// Wait blocks until the current payment attempt has settled. It returns
// immediately when no payment has been submitted.
func (f *Flow) Wait(ctx context.Context) error {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the flow. The close callback runs when the flow had not yet
// succeeded. A pending completion callback still fires.
func (f *Flow) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	step := f.state.Step
	f.mu.Unlock()

	f.logger.Info("purchase flow closed", "step", step)

	if step != StepSuccess && f.onClose != nil {
		f.onClose()
	}
}
