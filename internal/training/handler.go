package training

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kwai-club/kwai/internal/web/query"
	"github.com/kwai-club/kwai/internal/web/resource"
	"github.com/kwai-club/kwai/internal/web/response"
	"github.com/kwai-club/kwai/internal/web/router"
)

// Handler serves the /trainings endpoints.
type Handler struct {
	repo   Repository
	render *resource.Renderer
}

func NewHandler(repo Repository, render *resource.Renderer) *Handler {
	return &Handler{repo: repo, render: render}
}

// Routes registers the training routes on r.
func (h *Handler) Routes(r *router.Router) {
	r.Route("/trainings", func(r *router.Router) {
		r.Get("/", h.render.Handle(h.list)).
			Named("trainings.list").
			WithResource(TrainingType, router.OpList)
		r.Get("/coaches", h.render.Handle(h.listCoaches)).
			Named("trainings.coaches.list").
			WithResource(CoachType, router.OpList)
		r.Get("/{id}", h.render.Handle(h.get)).
			Named("trainings.show").
			WithResource(TrainingType, router.OpShow)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) error {
	page, err := query.ParsePage(r, query.DefaultPageLimit, query.MaxPageLimit)
	if err != nil {
		return err
	}
	var filter Filter
	if err := query.Decode(r, &filter); err != nil {
		return err
	}

	trainings, total, err := h.repo.List(r.Context(), filter, page.Offset, page.Limit)
	if err != nil {
		return err
	}
	return h.render.Many(w, r, TrainingType, trainings, &resource.Page{
		Offset: page.Offset,
		Limit:  page.Limit,
		Total:  total,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) error {
	id, err := router.GetPathParamInt(r, "id")
	if err != nil {
		return err
	}
	training, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, ErrTrainingNotFound) {
		return response.NotFound(fmt.Sprintf("training %d does not exist", id)).Wrap(err)
	}
	if err != nil {
		return err
	}
	return h.render.One(w, r, http.StatusOK, TrainingType, training)
}

func (h *Handler) listCoaches(w http.ResponseWriter, r *http.Request) error {
	coaches, err := h.repo.Coaches(r.Context())
	if err != nil {
		return err
	}
	return h.render.Many(w, r, CoachType, coaches, nil)
}
