// Package executor decodes inbound door commands, resolves their target and
// runs the actuation sequence, one message at a time.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/micro-ha/pod-door-controller/internal/command"
	"github.com/micro-ha/pod-door-controller/internal/model"
	"github.com/micro-ha/pod-door-controller/internal/router"
)

const defaultQueueSize = 64

// Sink receives the record of every handled message.
type Sink interface {
	Record(ctx context.Context, a model.Actuation) error
}

// Executor owns the inbound queue. Messages are handled strictly in order,
// each one to completion before the next, so an open dwell is never
// interrupted and no two sequences race on the same lines.
type Executor struct {
	router *router.Router
	sinks  []Sink
	inbox  chan model.Inbound
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes an Executor.
type Option func(*Executor)

func WithSinks(sinks ...Sink) Option {
	return func(e *Executor) {
		for _, sink := range sinks {
			if sink != nil {
				e.sinks = append(e.sinks, sink)
			}
		}
	}
}

func WithQueueSize(size int) Option {
	return func(e *Executor) {
		if size > 0 {
			e.inbox = make(chan model.Inbound, size)
		}
	}
}

func New(r *router.Router, logger *slog.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		router: r,
		inbox:  make(chan model.Inbound, defaultQueueSize),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit enqueues msg behind everything already queued. It blocks while the
// queue is full.
func (e *Executor) Submit(ctx context.Context, msg model.Inbound) error {
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = e.now()
	}
	select {
	case e.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued messages.
func (e *Executor) Pending() int {
	return len(e.inbox)
}

// Run handles queued messages until ctx is cancelled. A message already being
// handled runs to completion first.
func (e *Executor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if pending := len(e.inbox); pending > 0 {
				e.logger.Warn("executor stopped with queued messages", "pending", pending)
			}
			return
		case msg := <-e.inbox:
			e.Handle(ctx, msg)
		}
	}
}

// Handle processes one message synchronously and returns its record. It
// never panics; every failure is logged and reflected in the outcome.
func (e *Executor) Handle(ctx context.Context, msg model.Inbound) (rec model.Actuation) {
	rec = model.Actuation{
		ID:         uuid.NewString(),
		Topic:      msg.Topic,
		Source:     msg.Source,
		ReceivedAt: msg.ReceivedAt,
		StartedAt:  e.now(),
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			rec.Outcome = model.OutcomeFailed
			rec.Error = fmt.Sprintf("panic: %v", recovered)
		}
		rec.FinishedAt = e.now()
		e.finish(ctx, rec)
	}()

	err := e.process(&rec, msg)
	rec.Outcome = classify(err)
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

func (e *Executor) process(rec *model.Actuation, msg model.Inbound) error {
	binding, err := e.router.Resolve(msg.Topic)
	if err != nil {
		return err
	}
	rec.Family = binding.Family

	cmd, err := binding.Decoder.Decode(msg.Payload)
	if err != nil {
		return err
	}
	target, err := binding.Target(cmd)
	if err != nil {
		return err
	}
	rec.Action = cmd.Action.String()
	rec.DoorKey = target.Identity().Key()

	switch cmd.Action {
	case command.ActionOpen:
		err = target.Open()
	case command.ActionClose:
		err = target.Close()
	default:
		err = fmt.Errorf("%w: %s", command.ErrInvalidAction, cmd.Action)
	}
	if err != nil && !errors.Is(err, command.ErrInvalidAction) {
		return &ActuationError{Door: rec.DoorKey, Err: err}
	}
	return err
}

func (e *Executor) finish(ctx context.Context, rec model.Actuation) {
	logger := e.logger.With(
		"id", rec.ID,
		"topic", rec.Topic,
		"source", rec.Source,
		"outcome", string(rec.Outcome),
		"duration_ms", rec.Duration().Milliseconds(),
	)
	if rec.DoorKey != "" {
		logger = logger.With("door", rec.DoorKey, "action", rec.Action)
	}
	switch rec.Outcome {
	case model.OutcomeExecuted:
		logger.Info("door command executed")
	case model.OutcomeFailed:
		logger.Error("door command failed", "err", rec.Error)
	default:
		logger.Warn("door command rejected", "err", rec.Error)
	}

	recordCtx := context.WithoutCancel(ctx)
	for _, sink := range e.sinks {
		if err := sink.Record(recordCtx, rec); err != nil {
			e.logger.Warn("actuation sink failed", "id", rec.ID, "err", err)
		}
	}
}

func classify(err error) model.Outcome {
	switch {
	case err == nil:
		return model.OutcomeExecuted
	case errors.Is(err, router.ErrUnknownTopic):
		return model.OutcomeUnknownTopic
	case errors.Is(err, command.ErrMalformedPayload):
		return model.OutcomeMalformedPayload
	case errors.Is(err, command.ErrUnrecognizedMessageType):
		return model.OutcomeUnrecognizedType
	case errors.Is(err, command.ErrInvalidAction):
		return model.OutcomeInvalidAction
	default:
		return model.OutcomeFailed
	}
}
