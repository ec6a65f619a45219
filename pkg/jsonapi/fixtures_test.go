package jsonapi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Test read models, loosely modelled on the club domain.

type country struct {
	ID   int
	ISO2 string `jsonapi:"iso_2"`
	ISO3 string `jsonapi:"iso_3"`
	Name string
}

type member struct {
	UUID        string `jsonapi:"id"`
	FirstName   string
	LastName    string
	Nationality country
}

type team struct {
	ID      int
	Name    string
	Members []member
}

type coach struct {
	id          int
	name        string
	yearOfBirth int
	team        *team
}

type training struct {
	ID      int
	Title   string
	Coaches *[]coach
	Teams   []*team
}

type person struct {
	ID      int
	Name    string
	Partner *person
}

type left struct {
	ID    int
	Right *right `jsonapi:",rel"`
}

type right struct {
	ID   int
	Left *left
}

type empty struct {
	ID string
}

type unregistered struct {
	ID int
}

func coachDeclaration() Declaration {
	return Define("coaches",
		ID(func(c coach) int { return c.id }),
		Attr("name", func(c coach) string { return c.name }),
		Attr("year_of_birth", func(c coach) int { return c.yearOfBirth }),
		Rel("team", func(c coach) *team { return c.team }),
	)
}

// newTestRegistry registers every fixture type and seals the registry.
func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	r := NewRegistry()
	r.MustRegister(
		Infer[country]("countries"),
		Infer[member]("members"),
		Infer[team]("teams"),
		coachDeclaration(),
		Infer[training]("trainings", Rel("coaches", func(t training) *[]coach { return t.Coaches })),
		Infer[person]("people"),
		Infer[left]("lefts"),
		Infer[right]("rights"),
		Infer[empty]("empties"),
	)
	require.NoError(t, r.Seal())
	return r
}

func japan() country {
	return country{ID: 1, ISO2: "JP", ISO3: "JPN", Name: "Japan"}
}

func u11() team {
	return team{
		ID:   1,
		Name: "U11",
		Members: []member{
			{UUID: "abc-123", FirstName: "Jigoro", LastName: "Kano", Nationality: japan()},
		},
	}
}
