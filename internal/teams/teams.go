// Package teams serves the teams of the club and their members.
package teams

import (
	"errors"

	"github.com/google/uuid"

	"github.com/kwai-club/kwai/internal/club"
	"github.com/kwai-club/kwai/pkg/jsonapi"
)

// Resource type names.
const (
	TeamType       = "teams"
	TeamMemberType = "team_members"
)

var (
	ErrTeamNotFound     = errors.New("team not found")
	ErrMemberNotFound   = errors.New("member not found")
	ErrTeamMemberExists = errors.New("member is already part of the team")
)

// Team is a group of members training together.
type Team struct {
	ID      int
	Name    string
	Active  bool
	Remark  string
	Members []TeamMember `jsonapi:"members,rel"`
}

// HasMember reports whether the member with the given UUID is part of the team.
func (t *Team) HasMember(id uuid.UUID) bool {
	for _, m := range t.Members {
		if m.UUID == id {
			return true
		}
	}
	return false
}

// TeamMember is a club member as seen from a team. Active tells whether the
// member is active in the team, ActiveInClub whether the membership of the
// club is.
type TeamMember struct {
	MemberID       int       `jsonapi:"-"`
	UUID           uuid.UUID `jsonapi:"id"`
	Active         bool
	FirstName      string
	LastName       string
	Gender         int
	Birthdate      club.Date
	LicenseNumber  string
	LicenseEndDate club.Date
	ActiveInClub   bool
	Nationality    club.Country `jsonapi:"nationality,rel"`
	Team           *Team        `jsonapi:"team,rel"`
}

// NewTeamMember creates the team view of a club member.
func NewTeamMember(m club.Member, active bool) TeamMember {
	return TeamMember{
		MemberID:       m.ID,
		UUID:           m.UUID,
		Active:         active,
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		Gender:         m.Gender,
		Birthdate:      m.Birthdate,
		LicenseNumber:  m.LicenseNumber,
		LicenseEndDate: m.LicenseEndDate,
		ActiveInClub:   m.Active,
		Nationality:    m.Nationality,
	}
}

// Resources declares the team read models. Teams and team members refer to
// each other; the relationships are tagged so the registration order does not
// matter.
func Resources() []jsonapi.Declaration {
	return []jsonapi.Declaration{
		jsonapi.Infer[TeamMember](TeamMemberType),
		jsonapi.Infer[Team](TeamType),
	}
}
