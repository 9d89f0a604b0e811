// Package pipeline implements the validated save used by every domain
// service: authorize for create or edit, validate, stamp audit fields,
// persist, then log and publish.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/ehrcore/internal/platform/apperr"
	"github.com/ehr/ehrcore/internal/platform/auth"
	"github.com/ehr/ehrcore/internal/platform/events"
	"github.com/ehr/ehrcore/internal/platform/metrics"
)

// Entity is anything the pipeline can save. IsNew reports whether the
// surrogate identifier is still unset.
type Entity interface {
	IsNew() bool
	GlobalID() string
}

// Auditable entities receive creator and changer stamps from the actor.
// SnapshotAudit returns a func that puts the audit fields back as they were
// when it was called; the pipeline uses it when the store rejects a save.
type Auditable interface {
	StampCreated(by string, at time.Time)
	StampChanged(by string, at time.Time)
	SnapshotAudit() (restore func())
}

// Store persists an entity and returns the canonical stored instance.
type Store[T Entity] interface {
	Save(ctx context.Context, entity T) (T, error)
}

// StoreFunc adapts a function to Store.
type StoreFunc[T Entity] func(ctx context.Context, entity T) (T, error)

func (f StoreFunc[T]) Save(ctx context.Context, entity T) (T, error) { return f(ctx, entity) }

// Validator returns the first problem with entity, or nil.
type Validator[T Entity] func(entity T) error

// Config wires a Pipeline. Metrics and Events are optional.
type Config[T Entity] struct {
	Kind       string
	Create     auth.Capability
	Edit       auth.Capability
	Authorizer auth.Authorizer
	Validate   Validator[T]
	Store      Store[T]
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	Events     events.Publisher
}

type Pipeline[T Entity] struct {
	cfg Config[T]
}

func New[T Entity](cfg Config[T]) *Pipeline[T] {
	return &Pipeline[T]{cfg: cfg}
}

// Kind returns the entity kind the pipeline saves.
func (p *Pipeline[T]) Kind() string { return p.cfg.Kind }

// Save runs the pipeline for entity on behalf of actor.
func (p *Pipeline[T]) Save(ctx context.Context, actor auth.Actor, entity T) (T, error) {
	var zero T
	start := time.Now()

	creating := entity.IsNew()
	op, capability := "update", p.cfg.Edit
	if creating {
		op, capability = "create", p.cfg.Create
	}

	if err := p.cfg.Authorizer.RequireCapability(ctx, actor, capability); err != nil {
		p.cfg.Metrics.ObserveSave(p.cfg.Kind, op, "unauthorized", time.Since(start))
		return zero, err
	}

	if p.cfg.Validate != nil {
		if err := p.cfg.Validate(entity); err != nil {
			p.cfg.Metrics.ObserveSave(p.cfg.Kind, op, "invalid", time.Since(start))
			return zero, err
		}
	}

	restore := func() {}
	if a, ok := any(entity).(Auditable); ok {
		restore = a.SnapshotAudit()
		if creating {
			a.StampCreated(actor.UserID, actor.At)
		} else {
			a.StampChanged(actor.UserID, actor.At)
		}
	}

	saved, err := p.cfg.Store.Save(ctx, entity)
	if err != nil {
		restore()
		p.cfg.Metrics.ObserveSave(p.cfg.Kind, op, outcome(err), time.Since(start))
		return zero, err
	}

	p.cfg.Metrics.ObserveSave(p.cfg.Kind, op, "ok", time.Since(start))
	p.cfg.Logger.Info().
		Str("kind", p.cfg.Kind).
		Str("op", op).
		Str("global_id", saved.GlobalID()).
		Str("actor", actor.UserID).
		Msg("entity saved")

	p.Emit(ctx, actor, op+"d", saved.GlobalID())
	return saved, nil
}

// Emit publishes a lifecycle event for the pipeline's kind. Failures are
// logged and swallowed.
func (p *Pipeline[T]) Emit(ctx context.Context, actor auth.Actor, eventType, globalID string) {
	if p.cfg.Events == nil {
		return
	}
	err := events.Emit(ctx, p.cfg.Events, events.Event{
		Type:     eventType,
		Kind:     p.cfg.Kind,
		GlobalID: globalID,
		ActorID:  actor.UserID,
		At:       actor.At,
	})
	if err != nil {
		p.cfg.Logger.Warn().Err(err).Str("kind", p.cfg.Kind).Str("event", eventType).Msg("publish event")
	}
}

func outcome(err error) string {
	if apperr.IsStorage(err) {
		return "storage_error"
	}
	return "error"
}
