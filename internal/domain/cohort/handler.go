package cohort

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ehrcore/internal/platform/apperr"
	"github.com/ehr/ehrcore/internal/platform/auth"
	"github.com/ehr/ehrcore/internal/platform/fhir"
	"github.com/ehr/ehrcore/pkg/pagination"
)

type Handler struct {
	svc   *Service
	authz auth.Authorizer
	now   func() time.Time
}

func NewHandler(svc *Service, authz auth.Authorizer) *Handler {
	return &Handler{svc: svc, authz: authz, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	read := api.Group("", auth.RequireCapability(h.authz, auth.CapViewCohorts))
	read.GET("/cohorts", h.ListCohorts)
	read.GET("/cohorts/:id", h.GetCohort)
	read.GET("/subjects/:subject_id/cohorts", h.ListCohortsContaining)

	// Mutations are authorized by the service.
	api.POST("/cohorts", h.CreateCohort)
	api.PUT("/cohorts/:id", h.UpdateCohort)
	api.POST("/cohorts/:id/void", h.VoidCohort)
	api.POST("/cohorts/:id/unvoid", h.UnvoidCohort)
	api.PUT("/cohorts/:id/members/:subject_id", h.AddMember)
	api.DELETE("/cohorts/:id/members/:subject_id", h.RemoveMember)
	api.DELETE("/cohorts/:id", h.PurgeCohort)

	fhirRead := fhirGroup.Group("", auth.RequireCapability(h.authz, auth.CapViewCohorts))
	fhirRead.GET("/Group", h.SearchGroupsFHIR)
	fhirRead.GET("/Group/:id", h.GetGroupFHIR)
}

type cohortRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Members     []int  `json:"members"`
}

type voidRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) actor(c echo.Context) auth.Actor {
	return auth.ActorFromContext(c.Request().Context(), h.now())
}

func respondError(c echo.Context, err error) error {
	return c.JSON(apperr.HTTPStatus(err), fhir.OutcomeFor(err))
}

// lookup resolves the :id path parameter as a numeric id or a uuid.
func (h *Handler) lookup(c echo.Context) (*Cohort, error) {
	ref := c.Param("id")
	if id, err := strconv.Atoi(ref); err == nil {
		return h.svc.GetCohort(c.Request().Context(), id)
	}
	return h.svc.GetCohortByUUID(c.Request().Context(), ref)
}

func subjectParam(c echo.Context) (int, error) {
	return strconv.Atoi(c.Param("subject_id"))
}

// -- Operational Handlers --

func (h *Handler) CreateCohort(c echo.Context) error {
	var req cohortRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome(err.Error()))
	}
	saved, err := h.svc.SaveCohort(c.Request().Context(), h.actor(c), New(req.Name, req.Description, req.Members...))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, saved)
}

func (h *Handler) GetCohort(c echo.Context) error {
	cohort, err := h.lookup(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cohort)
}

// ListCohorts serves ?name= as a fragment search, otherwise all cohorts;
// ?include_voided=true adds voided ones to the full listing.
func (h *Handler) ListCohorts(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		cohorts []*Cohort
		err     error
	)
	if name := c.QueryParam("name"); name != "" {
		cohorts, err = h.svc.SearchCohorts(ctx, name)
	} else {
		includeVoided, _ := strconv.ParseBool(c.QueryParam("include_voided"))
		cohorts, err = h.svc.GetAllCohortsIncludingVoided(ctx, includeVoided)
	}
	if err != nil {
		return respondError(c, err)
	}
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Slice(cohorts, pg), len(cohorts), pg.Limit, pg.Offset))
}

func (h *Handler) ListCohortsContaining(c echo.Context) error {
	subjectID, err := subjectParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid subject id"))
	}
	cohorts, err := h.svc.GetCohortsContaining(c.Request().Context(), subjectID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cohorts)
}

func (h *Handler) UpdateCohort(c echo.Context) error {
	var req cohortRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome(err.Error()))
	}
	existing, err := h.lookup(c)
	if err != nil {
		return respondError(c, err)
	}
	existing.Name = req.Name
	existing.Description = req.Description
	if req.Members != nil {
		existing.Members = NewMemberSet(req.Members...)
	}
	saved, err := h.svc.SaveCohort(c.Request().Context(), h.actor(c), existing)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (h *Handler) VoidCohort(c echo.Context) error {
	var req voidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome(err.Error()))
	}
	existing, err := h.lookup(c)
	if err != nil {
		return respondError(c, err)
	}
	saved, err := h.svc.VoidCohort(c.Request().Context(), h.actor(c), existing, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (h *Handler) UnvoidCohort(c echo.Context) error {
	existing, err := h.lookup(c)
	if err != nil {
		return respondError(c, err)
	}
	saved, err := h.svc.UnvoidCohort(c.Request().Context(), h.actor(c), existing)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (h *Handler) AddMember(c echo.Context) error {
	subjectID, err := subjectParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid subject id"))
	}
	existing, err := h.lookup(c)
	if err != nil {
		return respondError(c, err)
	}
	saved, err := h.svc.AddMember(c.Request().Context(), h.actor(c), existing, subjectID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (h *Handler) RemoveMember(c echo.Context) error {
	subjectID, err := subjectParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid subject id"))
	}
	existing, err := h.lookup(c)
	if err != nil {
		return respondError(c, err)
	}
	saved, err := h.svc.RemoveMember(c.Request().Context(), h.actor(c), existing, subjectID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (h *Handler) PurgeCohort(c echo.Context) error {
	existing, err := h.lookup(c)
	if err != nil {
		return respondError(c, err)
	}
	if _, err := h.svc.PurgeCohort(c.Request().Context(), h.actor(c), existing); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- FHIR Handlers --

func (h *Handler) GetGroupFHIR(c echo.Context) error {
	cohort, err := h.lookup(c)
	if err != nil {
		if apperr.HTTPStatus(err) == http.StatusNotFound {
			return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Group", c.Param("id")))
		}
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cohort.ToFHIR())
}

func (h *Handler) SearchGroupsFHIR(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		cohorts []*Cohort
		err     error
	)
	if name := c.QueryParam("name"); name != "" {
		cohorts, err = h.svc.SearchCohorts(ctx, name)
	} else {
		cohorts, err = h.svc.GetAllCohorts(ctx)
	}
	if err != nil {
		return respondError(c, err)
	}

	pg := pagination.FromContext(c)
	page := pagination.Slice(cohorts, pg)
	resources := make([]map[string]interface{}, len(page))
	for i, cohort := range page {
		resources[i] = cohort.ToFHIR()
	}
	bundle := fhir.NewSearchBundle(resources, len(cohorts), "/fhir/Group")
	bundle.Link = bundle.Link[:0]
	for _, l := range pg.FHIRLinks("/fhir/Group", len(cohorts)) {
		bundle.Link = append(bundle.Link, fhir.BundleLink{Relation: l.Relation, URL: l.URL})
	}
	return c.JSON(http.StatusOK, bundle)
}
