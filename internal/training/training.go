// Package training serves the trainings of the club and the coaches giving
// them.
package training

import (
	"errors"
	"time"

	"github.com/kwai-club/kwai/internal/club"
	"github.com/kwai-club/kwai/internal/teams"
	"github.com/kwai-club/kwai/pkg/jsonapi"
)

// Resource type names.
const (
	CoachType    = "coaches"
	TrainingType = "trainings"
)

var ErrTrainingNotFound = errors.New("training not found")

// Coach is a member coaching trainings, optionally attached to a team.
type Coach struct {
	ID          int
	Name        string
	Active      bool
	Description string      `jsonapi:"-"`
	Member      club.Member `jsonapi:"member,rel"`
	Team        *teams.Team `jsonapi:"team,rel"`
}

// Training is one training session. Coaches is nil when the coaches were not
// loaded and rendered as null; Teams always renders as a list.
type Training struct {
	ID        int
	Title     string
	Summary   string
	StartDate time.Time
	EndDate   time.Time
	Cancelled bool
	Location  string
	Coaches   *[]Coach
	Teams     []*teams.Team
}

// Resources declares the training read models. Coaches are inferred from
// their fields; trainings are declared explicitly.
func Resources() []jsonapi.Declaration {
	return []jsonapi.Declaration{
		jsonapi.Infer[Coach](CoachType),
		jsonapi.Define(TrainingType,
			jsonapi.ID(func(t Training) int { return t.ID }),
			jsonapi.Attr("title", func(t Training) string { return t.Title }),
			jsonapi.Attr("summary", func(t Training) string { return t.Summary }),
			jsonapi.Attr("start_date", func(t Training) time.Time { return t.StartDate }),
			jsonapi.Attr("end_date", func(t Training) time.Time { return t.EndDate }),
			jsonapi.Attr("cancelled", func(t Training) bool { return t.Cancelled }),
			jsonapi.Attr("location", func(t Training) string { return t.Location }),
			jsonapi.Rel("coaches", func(t Training) *[]Coach { return t.Coaches }),
			jsonapi.Rel("teams", func(t Training) []*teams.Team { return t.Teams }),
		),
	}
}
