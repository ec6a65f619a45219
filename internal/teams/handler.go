package teams

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/kwai-club/kwai/internal/web/middleware"
	"github.com/kwai-club/kwai/internal/web/request"
	"github.com/kwai-club/kwai/internal/web/resource"
	"github.com/kwai-club/kwai/internal/web/response"
	"github.com/kwai-club/kwai/internal/web/router"
)

// Handler serves the /teams endpoints.
type Handler struct {
	repo   Repository
	render *resource.Renderer
	parser *request.Parser
}

func NewHandler(repo Repository, render *resource.Renderer, parser *request.Parser) *Handler {
	return &Handler{repo: repo, render: render, parser: parser}
}

// Routes registers the team routes on r. Adding a member requires the auth
// middleware.
func (h *Handler) Routes(r *router.Router, auth middleware.Middleware) {
	r.Route("/teams", func(r *router.Router) {
		r.Get("/", h.render.Handle(h.list)).
			Named("teams.list").
			WithResource(TeamType, router.OpList)
		r.Get("/{id}", h.render.Handle(h.get)).
			Named("teams.show").
			WithResource(TeamType, router.OpShow)
		r.Get("/{id}/members", h.render.Handle(h.listMembers)).
			Named("teams.members.list").
			WithResource(TeamMemberType, router.OpList)
		r.With("auth", auth).Post("/{id}/members", h.render.Handle(h.addMember)).
			Named("teams.members.create").
			WithResource(TeamMemberType, router.OpCreate)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) error {
	teams, err := h.repo.List(r.Context())
	if err != nil {
		return err
	}
	return h.render.Many(w, r, TeamType, teams, nil)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) error {
	team, err := h.team(r)
	if err != nil {
		return err
	}
	return h.render.One(w, r, http.StatusOK, TeamType, team)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) error {
	team, err := h.team(r)
	if err != nil {
		return err
	}
	return h.render.Many(w, r, TeamMemberType, team.Members, nil)
}

// addMember adds a club member to the team. The body is a team_members
// resource whose id is the UUID of the member:
//
//	{"data": {"type": "team_members", "id": "<uuid>", "attributes": {"active": true}}}
func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) error {
	team, err := h.team(r)
	if err != nil {
		return err
	}

	res, err := h.parser.ParseResource(w, r, TeamMemberType)
	if err != nil {
		return err
	}
	memberID, err := uuid.Parse(res.ID)
	if err != nil {
		return response.BadRequest("id must be the UUID of a member").
			WithPointer("/data/id").
			Wrap(err)
	}
	active := true
	if _, err := res.Attribute("active", &active); err != nil {
		return err
	}

	if team.HasMember(memberID) {
		return response.Conflict(fmt.Sprintf("member %s is already part of team %d", memberID, team.ID))
	}
	member, err := h.repo.FindMember(r.Context(), memberID)
	if errors.Is(err, ErrMemberNotFound) {
		return response.NotFound(fmt.Sprintf("member %s does not exist", memberID)).Wrap(err)
	}
	if err != nil {
		return err
	}
	member.Active = active

	err = h.repo.AddMember(r.Context(), team, member)
	if errors.Is(err, ErrTeamMemberExists) {
		return response.Conflict(fmt.Sprintf("member %s is already part of team %d", memberID, team.ID)).Wrap(err)
	}
	if err != nil {
		return err
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%s", r.URL.Path, memberID))
	return h.render.One(w, r, http.StatusCreated, TeamMemberType, team.Members[len(team.Members)-1])
}

func (h *Handler) team(r *http.Request) (*Team, error) {
	id, err := router.GetPathParamInt(r, "id")
	if err != nil {
		return nil, err
	}
	team, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, ErrTeamNotFound) {
		return nil, response.NotFound(fmt.Sprintf("team %d does not exist", id)).Wrap(err)
	}
	return team, err
}
