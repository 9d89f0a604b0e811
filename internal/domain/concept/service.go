package concept

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ehr/ehrcore/internal/platform/apperr"
	"github.com/ehr/ehrcore/internal/platform/auth"
	"github.com/ehr/ehrcore/internal/platform/events"
	"github.com/ehr/ehrcore/internal/platform/metrics"
	"github.com/ehr/ehrcore/internal/platform/pipeline"
)

// Service manages the answers a question concept accepts.
type Service struct {
	repo     Repository
	authz    auth.Authorizer
	pipeline *pipeline.Pipeline[*ConceptAnswer]
	logger   zerolog.Logger
}

// NewService wires the concept answer save pipeline. m and pub may be nil.
func NewService(repo Repository, authz auth.Authorizer, logger zerolog.Logger, m *metrics.Metrics, pub events.Publisher) *Service {
	logger = logger.With().Str("component", "concept").Logger()
	return &Service{
		repo:   repo,
		authz:  authz,
		logger: logger,
		pipeline: pipeline.New(pipeline.Config[*ConceptAnswer]{
			Kind:       "concept_answer",
			Create:     auth.CapManageConcepts,
			Edit:       auth.CapManageConcepts,
			Authorizer: authz,
			Validate:   Validate,
			Store:      repo,
			Logger:     logger,
			Metrics:    m,
			Events:     pub,
		}),
	}
}

// SaveConcept registers or updates a concept in the catalog.
func (s *Service) SaveConcept(ctx context.Context, actor auth.Actor, c *Concept) (*Concept, error) {
	if err := s.authz.RequireCapability(ctx, actor, auth.CapManageConcepts); err != nil {
		return nil, err
	}
	if err := validateConcept(c); err != nil {
		return nil, err
	}
	return s.repo.SaveConcept(ctx, c)
}

// SaveDrug registers or updates a drug in the catalog.
func (s *Service) SaveDrug(ctx context.Context, actor auth.Actor, d *Drug) (*Drug, error) {
	if err := s.authz.RequireCapability(ctx, actor, auth.CapManageConcepts); err != nil {
		return nil, err
	}
	if err := validateDrug(d); err != nil {
		return nil, err
	}
	return s.repo.SaveDrug(ctx, d)
}

func (s *Service) GetConcept(ctx context.Context, id int) (*Concept, error) {
	return s.repo.GetConcept(ctx, id)
}

func (s *Service) GetDrug(ctx context.Context, id int) (*Drug, error) {
	return s.repo.GetDrug(ctx, id)
}

// SaveAnswer creates or updates a concept answer.
func (s *Service) SaveAnswer(ctx context.Context, actor auth.Actor, a *ConceptAnswer) (*ConceptAnswer, error) {
	return s.pipeline.Save(ctx, actor, a)
}

// AddAnswers attaches answers to the question concept conceptID. Every
// answer is validated first; then any duplicating an answer the question
// already has, or an earlier one in the call, is skipped. It returns the
// answers actually stored.
func (s *Service) AddAnswers(ctx context.Context, actor auth.Actor, conceptID int, answers ...*ConceptAnswer) ([]*ConceptAnswer, error) {
	if err := s.authz.RequireCapability(ctx, actor, auth.CapManageConcepts); err != nil {
		return nil, err
	}
	question, err := s.repo.GetConcept(ctx, conceptID)
	if err != nil {
		return nil, err
	}
	for _, a := range answers {
		if a == nil {
			return nil, apperr.Required("answer", KeyAnswerRequired)
		}
		a.Concept = question
		if err := Validate(a); err != nil {
			return nil, err
		}
	}
	existing, err := s.repo.ListByConcept(ctx, conceptID)
	if err != nil {
		return nil, err
	}

	// Stored answers join the set in their transient form so a resubmitted
	// answer matches the row it duplicates.
	set := NewAnswerSet()
	for _, e := range existing {
		set.Add(e.transient())
	}
	added := []*ConceptAnswer{}
	for _, a := range answers {
		if !set.Add(a) {
			s.logger.Debug().Int("concept_id", conceptID).Msg("skipping duplicate answer")
			continue
		}
		saved, err := s.SaveAnswer(ctx, actor, a)
		if err != nil {
			return added, err
		}
		added = append(added, saved)
	}
	return added, nil
}

// PurgeAnswer deletes a permanently.
func (s *Service) PurgeAnswer(ctx context.Context, actor auth.Actor, a *ConceptAnswer) (*ConceptAnswer, error) {
	if err := s.authz.RequireCapability(ctx, actor, auth.CapPurgeConcepts); err != nil {
		return nil, err
	}
	deleted, err := s.repo.Delete(ctx, a)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("global_id", deleted.UUID).Str("actor", actor.UserID).Msg("concept answer purged")
	s.pipeline.Emit(ctx, actor, "purged", deleted.UUID)
	return deleted, nil
}

func (s *Service) GetAnswer(ctx context.Context, id int) (*ConceptAnswer, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetAnswerByUUID(ctx context.Context, uid string) (*ConceptAnswer, error) {
	return s.repo.GetByUUID(ctx, uid)
}

// ListAnswers returns the answers of conceptID in insertion order.
func (s *Service) ListAnswers(ctx context.Context, conceptID int) ([]*ConceptAnswer, error) {
	return s.repo.ListByConcept(ctx, conceptID)
}
