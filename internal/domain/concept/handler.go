package concept

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ehrcore/internal/platform/apperr"
	"github.com/ehr/ehrcore/internal/platform/auth"
	"github.com/ehr/ehrcore/internal/platform/fhir"
)

type Handler struct {
	svc   *Service
	authz auth.Authorizer
	now   func() time.Time
}

func NewHandler(svc *Service, authz auth.Authorizer) *Handler {
	return &Handler{svc: svc, authz: authz, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireCapability(h.authz, auth.CapViewConcepts))
	read.GET("/concepts/:id", h.GetConcept)
	read.GET("/concepts/:id/answers", h.ListAnswers)
	read.GET("/concepts/:id/answers/coding", h.AnswerOptions)
	read.GET("/concepts/:id/answers/:answer", h.GetAnswer)

	api.POST("/concepts", h.CreateConcept)
	api.POST("/drugs", h.CreateDrug)
	api.POST("/concepts/:id/answers", h.AddAnswers)
	api.DELETE("/concepts/:id/answers/:answer", h.PurgeAnswer)
}

type conceptRequest struct {
	Name   string `json:"name"`
	Code   string `json:"code"`
	System string `json:"system"`
}

type drugRequest struct {
	Name      string `json:"name"`
	ConceptID *int   `json:"concept_id"`
}

type answerRequest struct {
	AnswerConcept *int `json:"answer_concept"`
	AnswerDrug    *int `json:"answer_drug"`
}

type addAnswersRequest struct {
	Answers []answerRequest `json:"answers"`
}

func (h *Handler) actor(c echo.Context) auth.Actor {
	return auth.ActorFromContext(c.Request().Context(), h.now())
}

func respondError(c echo.Context, err error) error {
	return c.JSON(apperr.HTTPStatus(err), fhir.OutcomeFor(err))
}

func conceptParam(c echo.Context) (int, error) {
	return strconv.Atoi(c.Param("id"))
}

// lookupAnswer resolves :answer as an id or uuid and checks it belongs to
// the concept in the path.
func (h *Handler) lookupAnswer(c echo.Context, conceptID int) (*ConceptAnswer, error) {
	ctx := c.Request().Context()
	ref := c.Param("answer")

	var (
		a   *ConceptAnswer
		err error
	)
	if id, convErr := strconv.Atoi(ref); convErr == nil {
		a, err = h.svc.GetAnswer(ctx, id)
	} else {
		a, err = h.svc.GetAnswerByUUID(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if a.Concept == nil || a.Concept.ID != conceptID {
		return nil, apperr.ErrNotFound
	}
	return a, nil
}

func (h *Handler) CreateConcept(c echo.Context) error {
	var req conceptRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome(err.Error()))
	}
	saved, err := h.svc.SaveConcept(c.Request().Context(), h.actor(c),
		&Concept{Name: req.Name, Code: req.Code, System: req.System})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, saved)
}

func (h *Handler) GetConcept(c echo.Context) error {
	id, err := conceptParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid concept id"))
	}
	concept, err := h.svc.GetConcept(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, concept)
}

func (h *Handler) CreateDrug(c echo.Context) error {
	var req drugRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome(err.Error()))
	}
	saved, err := h.svc.SaveDrug(c.Request().Context(), h.actor(c), &Drug{Name: req.Name, ConceptID: req.ConceptID})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, saved)
}

func (h *Handler) ListAnswers(c echo.Context) error {
	id, err := conceptParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid concept id"))
	}
	answers, err := h.svc.ListAnswers(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, answers)
}

// AnswerOptions renders the answers as an R4 CodeableConcept.
func (h *Handler) AnswerOptions(c echo.Context) error {
	id, err := conceptParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid concept id"))
	}
	ctx := c.Request().Context()
	question, err := h.svc.GetConcept(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	answers, err := h.svc.ListAnswers(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, AnswerOptions(question, answers))
}

func (h *Handler) GetAnswer(c echo.Context) error {
	id, err := conceptParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid concept id"))
	}
	a, err := h.lookupAnswer(c, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) AddAnswers(c echo.Context) error {
	id, err := conceptParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid concept id"))
	}
	var req addAnswersRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome(err.Error()))
	}

	ctx := c.Request().Context()
	answers := make([]*ConceptAnswer, 0, len(req.Answers))
	for _, r := range req.Answers {
		a := &ConceptAnswer{}
		if r.AnswerConcept != nil {
			if a.AnswerConcept, err = h.svc.GetConcept(ctx, *r.AnswerConcept); err != nil {
				return respondError(c, err)
			}
		}
		if r.AnswerDrug != nil {
			if a.AnswerDrug, err = h.svc.GetDrug(ctx, *r.AnswerDrug); err != nil {
				return respondError(c, err)
			}
		}
		answers = append(answers, a)
	}

	added, err := h.svc.AddAnswers(ctx, h.actor(c), id, answers...)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, added)
}

func (h *Handler) PurgeAnswer(c echo.Context) error {
	id, err := conceptParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("invalid concept id"))
	}
	a, err := h.lookupAnswer(c, id)
	if err != nil {
		return respondError(c, err)
	}
	if _, err := h.svc.PurgeAnswer(c.Request().Context(), h.actor(c), a); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
