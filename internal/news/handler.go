package news

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	webcontext "github.com/kwai-club/kwai/internal/web/context"
	"github.com/kwai-club/kwai/internal/web/middleware"
	"github.com/kwai-club/kwai/internal/web/query"
	"github.com/kwai-club/kwai/internal/web/resource"
	"github.com/kwai-club/kwai/internal/web/response"
	"github.com/kwai-club/kwai/internal/web/router"
)

const defaultPageLimit = 10

// Handler serves the /news_items endpoints.
type Handler struct {
	repo   Repository
	render *resource.Renderer
	now    func() time.Time
}

func NewHandler(repo Repository, render *resource.Renderer) *Handler {
	return &Handler{repo: repo, render: render, now: time.Now}
}

// Routes registers the news routes on r. Anyone can read published news;
// other items need a user, identified by the optional auth middleware.
func (h *Handler) Routes(r *router.Router, optionalAuth middleware.Middleware) {
	r.Route("/news_items", func(r *router.Router) {
		r = r.With("optional_auth", optionalAuth)
		r.Get("/", h.render.Handle(h.list)).
			Named("news.list").
			WithResource(NewsItemType, router.OpList)
		r.Get("/{id}", h.render.Handle(h.get)).
			Named("news.show").
			WithResource(NewsItemType, router.OpShow)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) error {
	page, err := query.ParsePage(r, defaultPageLimit, query.MaxPageLimit)
	if err != nil {
		return err
	}
	var filter Filter
	if err := query.Decode(r, &filter); err != nil {
		return err
	}
	if !filter.PublishedOnly() && !authenticated(r) {
		return response.Forbidden("only users can list disabled news items").
			WithParameter("filter[enabled]")
	}

	items, total, err := h.repo.List(r.Context(), filter, page.Offset, page.Limit)
	if err != nil {
		return err
	}
	return h.render.Many(w, r, NewsItemType, items, &resource.Page{
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
	item, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, ErrNewsItemNotFound) {
		return response.NotFound(fmt.Sprintf("news item %d does not exist", id)).Wrap(err)
	}
	if err != nil {
		return err
	}
	if !authenticated(r) && !item.Published(h.now()) {
		return response.Forbidden(fmt.Sprintf("news item %d is not published", id))
	}
	return h.render.One(w, r, http.StatusOK, NewsItemType, item)
}

func authenticated(r *http.Request) bool {
	return webcontext.GetCurrentUser(r.Context()) != ""
}
