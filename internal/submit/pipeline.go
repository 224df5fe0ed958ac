package submit

import (
	"context"
	"sync"

	"neurolink/internal/validate"
	"neurolink/internal/wire"
	"neurolink/pkg/types"

	"github.com/sirupsen/logrus"
)

type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateInvalid    State = "invalid"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
	StateFailure    State = "failure"
)

// FormSource is the part of the form state store the pipeline reads and
// resets.
type FormSource interface {
	Get() types.FormState
	Reset()
}

// Outcome is what the caller renders after a submission.
type Outcome struct {
	State    State
	Result   *Result
	Messages []string
	// Navigate is set on success: where the caller should go next.
	Navigate string
}

// SuccessTarget is the navigation target after a successful submission.
const SuccessTarget = "home"

// Pipeline runs validate, map and submit for one form at a time.
type Pipeline struct {
	form      FormSource
	submitter Submitter
	variant   types.WireVariant
	logger    logrus.FieldLogger

	mu    sync.Mutex
	state State
	last  error
}

func NewPipeline(form FormSource, submitter Submitter, variant types.WireVariant, logger logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		form:      form,
		submitter: submitter,
		variant:   variant,
		logger:    logger,
		state:     StateIdle,
	}
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastError is the error that moved the pipeline to invalid or failure.
func (p *Pipeline) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Submit validates the current form and sends it. A second call while one
// is running returns ErrSubmissionInProgress and touches nothing.
func (p *Pipeline) Submit(ctx context.Context) (*Outcome, error) {
	if !p.begin() {
		return nil, ErrSubmissionInProgress
	}

	state := p.form.Get()

	if messages := validate.Validate(state); len(messages) > 0 {
		err := &ValidationError{Messages: messages}
		p.finish(StateInvalid, err)
		return &Outcome{State: StateInvalid, Messages: messages}, err
	}

	p.transition(StateSubmitting)

	payload := wire.ToWireFormat(state, p.variant)

	result, err := p.submitter.Submit(ctx, payload, state.Attachments())
	if err != nil {
		p.finish(StateFailure, err)
		return &Outcome{State: StateFailure, Messages: []string{UserMessage(err)}}, err
	}

	p.form.Reset()
	p.finish(StateSuccess, nil)

	p.logger.WithField("form_id", result.FormID).Info("intake form accepted, form reset")

	return &Outcome{State: StateSuccess, Result: result, Navigate: SuccessTarget}, nil
}

// Acknowledge returns a finished pipeline to idle.
func (p *Pipeline) Acknowledge() {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateInvalid, StateSuccess, StateFailure:
		p.state = StateIdle
		p.last = nil
	}
}

func (p *Pipeline) begin() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateValidating || p.state == StateSubmitting {
		return false
	}

	p.state = StateValidating
	p.last = nil
	return true
}

func (p *Pipeline) transition(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

func (p *Pipeline) finish(s State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
	p.last = err
}
