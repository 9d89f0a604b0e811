package cohort

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ehr/ehrcore/internal/platform/apperr"
	"github.com/ehr/ehrcore/internal/platform/auth"
	"github.com/ehr/ehrcore/internal/platform/events"
	"github.com/ehr/ehrcore/internal/platform/metrics"
	"github.com/ehr/ehrcore/internal/platform/pipeline"
)

// Service manages cohorts. Every mutation takes the acting user explicitly;
// reads are plain pass-throughs and are gated at the route level.
type Service struct {
	repo     Repository
	authz    auth.Authorizer
	pipeline *pipeline.Pipeline[*Cohort]
	logger   zerolog.Logger
}

// NewService wires the cohort save pipeline. m and pub may be nil.
func NewService(repo Repository, authz auth.Authorizer, logger zerolog.Logger, m *metrics.Metrics, pub events.Publisher) *Service {
	logger = logger.With().Str("component", "cohort").Logger()
	return &Service{
		repo:   repo,
		authz:  authz,
		logger: logger,
		pipeline: pipeline.New(pipeline.Config[*Cohort]{
			Kind:       "cohort",
			Create:     auth.CapAddCohorts,
			Edit:       auth.CapEditCohorts,
			Authorizer: authz,
			Validate:   Validate,
			Store:      repo,
			Logger:     logger,
			Metrics:    m,
			Events:     pub,
		}),
	}
}

// SaveCohort creates or updates c and returns the stored cohort.
func (s *Service) SaveCohort(ctx context.Context, actor auth.Actor, c *Cohort) (*Cohort, error) {
	return s.pipeline.Save(ctx, actor, c)
}

// Deprecated: use SaveCohort.
func (s *Service) CreateCohort(ctx context.Context, actor auth.Actor, c *Cohort) (*Cohort, error) {
	return s.SaveCohort(ctx, actor, c)
}

// Deprecated: use SaveCohort.
func (s *Service) UpdateCohort(ctx context.Context, actor auth.Actor, c *Cohort) (*Cohort, error) {
	return s.SaveCohort(ctx, actor, c)
}

// VoidCohort marks c inactive with reason and saves it. On failure c is left
// as it was. Only stored cohorts can be voided.
func (s *Service) VoidCohort(ctx context.Context, actor auth.Actor, c *Cohort, reason string) (*Cohort, error) {
	if err := s.authz.RequireCapability(ctx, actor, auth.CapDeleteCohorts); err != nil {
		return nil, err
	}
	if c.IsNew() {
		return nil, unsaved(c)
	}
	prev := c.voidState()
	c.Voided = true
	c.VoidedBy = &actor.UserID
	c.DateVoided = &actor.At
	c.VoidReason = &reason

	saved, err := s.SaveCohort(ctx, actor, c)
	if err != nil {
		c.restoreVoidState(prev)
		return nil, err
	}
	s.pipeline.Emit(ctx, actor, "voided", saved.UUID)
	return saved, nil
}

// UnvoidCohort reverses VoidCohort and clears the void fields.
func (s *Service) UnvoidCohort(ctx context.Context, actor auth.Actor, c *Cohort) (*Cohort, error) {
	if err := s.authz.RequireCapability(ctx, actor, auth.CapDeleteCohorts); err != nil {
		return nil, err
	}
	if c.IsNew() {
		return nil, unsaved(c)
	}
	if !c.Voided {
		return c, nil
	}
	prev := c.voidState()
	c.restoreVoidState(voidState{})

	saved, err := s.SaveCohort(ctx, actor, c)
	if err != nil {
		c.restoreVoidState(prev)
		return nil, err
	}
	s.pipeline.Emit(ctx, actor, "unvoided", saved.UUID)
	return saved, nil
}

// AddMember adds subjectID to c and saves it. Adding a present member
// returns c untouched without saving.
func (s *Service) AddMember(ctx context.Context, actor auth.Actor, c *Cohort, subjectID int) (*Cohort, error) {
	if !c.addMember(subjectID) {
		return c, nil
	}
	saved, err := s.SaveCohort(ctx, actor, c)
	if err != nil {
		c.removeMember(subjectID)
		return nil, err
	}
	return saved, nil
}

// RemoveMember removes subjectID from c and saves it. Removing an absent
// member returns c untouched without saving.
func (s *Service) RemoveMember(ctx context.Context, actor auth.Actor, c *Cohort, subjectID int) (*Cohort, error) {
	if !c.removeMember(subjectID) {
		return c, nil
	}
	saved, err := s.SaveCohort(ctx, actor, c)
	if err != nil {
		c.addMember(subjectID)
		return nil, err
	}
	return saved, nil
}

// PurgeCohort deletes c permanently. It needs the purge capability, which
// editing does not imply.
func (s *Service) PurgeCohort(ctx context.Context, actor auth.Actor, c *Cohort) (*Cohort, error) {
	if err := s.authz.RequireCapability(ctx, actor, auth.CapPurgeCohorts); err != nil {
		return nil, err
	}
	deleted, err := s.repo.Delete(ctx, c)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("global_id", deleted.UUID).Str("actor", actor.UserID).Msg("cohort purged")
	s.pipeline.Emit(ctx, actor, "purged", deleted.UUID)
	return deleted, nil
}

func (s *Service) GetCohort(ctx context.Context, id int) (*Cohort, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetCohortByUUID(ctx context.Context, uid string) (*Cohort, error) {
	return s.repo.GetByUUID(ctx, uid)
}

// GetCohortByName returns the non-voided cohort named name.
func (s *Service) GetCohortByName(ctx context.Context, name string) (*Cohort, error) {
	return s.repo.GetByName(ctx, name)
}

// SearchCohorts returns cohorts whose name contains nameFragment, ignoring
// case, voided ones included.
func (s *Service) SearchCohorts(ctx context.Context, nameFragment string) ([]*Cohort, error) {
	return s.repo.Search(ctx, nameFragment)
}

// GetAllCohorts returns the non-voided cohorts.
func (s *Service) GetAllCohorts(ctx context.Context) ([]*Cohort, error) {
	return s.GetAllCohortsIncludingVoided(ctx, false)
}

func (s *Service) GetAllCohortsIncludingVoided(ctx context.Context, includeVoided bool) ([]*Cohort, error) {
	return s.repo.ListAll(ctx, includeVoided)
}

// Deprecated: use GetAllCohorts.
func (s *Service) GetCohorts(ctx context.Context) ([]*Cohort, error) {
	return s.GetAllCohorts(ctx)
}

func (s *Service) GetCohortsContaining(ctx context.Context, subjectID int) ([]*Cohort, error) {
	return s.repo.ListContaining(ctx, subjectID)
}

func unsaved(c *Cohort) error {
	return fmt.Errorf("cohort %q is not stored: %w", c.Name, apperr.ErrNotFound)
}
