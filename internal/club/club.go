// Package club serves the countries and members of the club.
package club

import (
	"errors"

	"github.com/google/uuid"

	"github.com/kwai-club/kwai/pkg/jsonapi"
)

// Resource type names.
const (
	CountryType = "countries"
	MemberType  = "members"
)

// Gender of a member, as stored in the database.
const (
	GenderUnknown = 0
	GenderMale    = 1
	GenderFemale  = 2
)

var (
	ErrCountryNotFound = errors.New("country not found")
	ErrMemberNotFound  = errors.New("member not found")
)

// Country is a nationality a member can have.
type Country struct {
	ID   int
	ISO2 string
	ISO3 string
	Name string
}

// Member is a licensed member of the club. Members are identified by their
// UUID; the database id never leaves the server.
type Member struct {
	ID             int       `jsonapi:"-"`
	UUID           uuid.UUID `jsonapi:"id"`
	FirstName      string
	LastName       string
	LicenseNumber  string
	LicenseEndDate Date
	Gender         int
	Birthdate      Date
	Active         bool
	Remark         string `jsonapi:"-"`
	Nationality    Country
}

// Name returns the full name of the member.
func (m Member) Name() string {
	return m.FirstName + " " + m.LastName
}

// Resources declares the club read models. Countries must be registered
// before members so the nationality is recognized as a relationship.
func Resources() []jsonapi.Declaration {
	return []jsonapi.Declaration{
		jsonapi.Infer[Country](CountryType),
		jsonapi.Infer[Member](MemberType),
	}
}
