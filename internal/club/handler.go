package club

import (
	"errors"
	"net/http"

	"github.com/kwai-club/kwai/internal/web/query"
	"github.com/kwai-club/kwai/internal/web/resource"
	"github.com/kwai-club/kwai/internal/web/response"
	"github.com/kwai-club/kwai/internal/web/router"
)

// Handler serves the /club endpoints.
type Handler struct {
	countries CountryRepository
	members   MemberRepository
	render    *resource.Renderer
}

func NewHandler(countries CountryRepository, members MemberRepository, render *resource.Renderer) *Handler {
	return &Handler{countries: countries, members: members, render: render}
}

// Routes registers the club routes on r.
func (h *Handler) Routes(r *router.Router) {
	r.Route("/club", func(r *router.Router) {
		r.Get("/countries", h.render.Handle(h.listCountries)).
			Named("club.countries.list").
			WithResource(CountryType, router.OpList)
		r.Get("/members", h.render.Handle(h.listMembers)).
			Named("club.members.list").
			WithResource(MemberType, router.OpList)
		r.Get("/members/{uuid}", h.render.Handle(h.getMember)).
			Named("club.members.show").
			WithResource(MemberType, router.OpShow)
	})
}

func (h *Handler) listCountries(w http.ResponseWriter, r *http.Request) error {
	countries, err := h.countries.List(r.Context())
	if err != nil {
		return err
	}
	return h.render.Many(w, r, CountryType, countries, nil)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) error {
	page, err := query.ParsePage(r, query.DefaultPageLimit, query.MaxPageLimit)
	if err != nil {
		return err
	}
	var filter MemberFilter
	if err := query.Decode(r, &filter); err != nil {
		return err
	}
	filter.Sort = query.ParseSort(r)
	if err := filter.checkSort(); err != nil {
		return err
	}

	members, total, err := h.members.List(r.Context(), filter, page.Offset, page.Limit)
	if err != nil {
		return err
	}
	return h.render.Many(w, r, MemberType, members, &resource.Page{
		Offset: page.Offset,
		Limit:  page.Limit,
		Total:  total,
	})
}

func (h *Handler) getMember(w http.ResponseWriter, r *http.Request) error {
	id, err := router.GetPathParamUUID(r, "uuid")
	if err != nil {
		return err
	}
	member, err := h.members.Get(r.Context(), id)
	if errors.Is(err, ErrMemberNotFound) {
		return response.NotFound("member " + id.String() + " does not exist").Wrap(err)
	}
	if err != nil {
		return err
	}
	return h.render.One(w, r, http.StatusOK, MemberType, member)
}
