package jsonapi

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func includedKeys(doc *Document) []ResourceIdentifier {
	var keys []ResourceIdentifier
	for _, r := range doc.Included() {
		keys = append(keys, r.Identifier())
	}
	return keys
}

func TestSerializeTeam(t *testing.T) {
	s := NewSerializer(newTestRegistry(t))

	doc, err := s.Serialize(u11())
	require.NoError(t, err)

	data, ok := doc.Resource()
	require.True(t, ok)
	assert.Equal(t, "teams", data.Type)
	assert.Equal(t, "1", data.ID)
	assert.Equal(t, "U11", data.Attributes["name"])

	members := data.Relationships["members"]
	assert.True(t, members.IsList())
	assert.Equal(t, []ResourceIdentifier{{ID: "abc-123", Type: "members"}}, members.Identifiers())

	assert.Equal(t, []ResourceIdentifier{
		{ID: "abc-123", Type: "members"},
		{ID: "1", Type: "countries"},
	}, includedKeys(doc))

	included := doc.Included()
	assert.Equal(t, "Japan", included[1].Attributes["name"])
	assert.Equal(t, "JP", included[1].Attributes["iso_2"])
	assert.Equal(t, "JPN", included[1].Attributes["iso_3"])
	nationality, ok := included[0].Relationships["nationality"].Identifier()
	require.True(t, ok)
	assert.Equal(t, ResourceIdentifier{ID: "1", Type: "countries"}, nationality)
}

func TestSerializeWireFormat(t *testing.T) {
	s := NewSerializer(newTestRegistry(t))

	doc, err := s.Serialize(u11())
	require.NoError(t, err)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))

	data := wire["data"].(map[string]any)
	assert.Equal(t, "teams", data["type"])
	assert.Equal(t, "1", data["id"])
	assert.Equal(t, map[string]any{"name": "U11"}, data["attributes"])
	assert.Equal(t, map[string]any{
		"members": map[string]any{
			"data": []any{map[string]any{"id": "abc-123", "type": "members"}},
		},
	}, data["relationships"])

	included := wire["included"].([]any)
	require.Len(t, included, 2)
	country := included[1].(map[string]any)
	assert.Equal(t, "countries", country["type"])
	assert.NotContains(t, country, "relationships", "a type without relationships must not render an empty relationships object")
	assert.NotContains(t, wire, "meta")
}

func TestSerializeIDStringification(t *testing.T) {
	s := NewSerializer(newTestRegistry(t))

	tests := []struct {
		name   string
		entity any
		want   string
	}{
		{name: "int id", entity: japan(), want: "1"},
		{name: "string id", entity: member{UUID: "x-1", Nationality: japan()}, want: "x-1"},
		{name: "pointer entity", entity: &country{ID: 42}, want: "42"},
		{name: "explicit accessor", entity: coach{id: 7, name: "Kano"}, want: "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := s.Serialize(tt.entity)
			require.NoError(t, err)
			data, _ := doc.Resource()
			assert.Equal(t, tt.want, data.ID)
		})
	}
}

func TestSerializeAttributeCompleteness(t *testing.T) {
	r := newTestRegistry(t)
	s := NewSerializer(r)

	entities := []any{japan(), u11(), coach{id: 1, name: "Kano"}, person{ID: 1}, empty{ID: "e"}}
	for _, entity := range entities {
		desc, err := r.Lookup(entity)
		require.NoError(t, err)

		doc, err := s.Serialize(entity)
		require.NoError(t, err)
		data, _ := doc.Resource()
		for _, a := range desc.Attributes() {
			assert.Contains(t, data.Attributes, a.Name, "%s should render attribute %s", desc.TypeName(), a.Name)
		}
	}
}

func TestSerializeRelationshipShapes(t *testing.T) {
	s := NewSerializer(newTestRegistry(t))

	t.Run("nil optional to-one is null", func(t *testing.T) {
		doc, err := s.Serialize(coach{id: 1, name: "Kano"})
		require.NoError(t, err)
		data, _ := doc.Resource()
		assert.True(t, data.Relationships["team"].IsNull())
		assert.Empty(t, doc.Included())

		raw, err := json.Marshal(data.Relationships["team"])
		require.NoError(t, err)
		assert.JSONEq(t, `{"data":null}`, string(raw))
	})

	t.Run("empty list is an array", func(t *testing.T) {
		doc, err := s.Serialize(team{ID: 2, Name: "U13"})
		require.NoError(t, err)
		data, _ := doc.Resource()
		assert.True(t, data.Relationships["members"].IsList())

		raw, err := json.Marshal(data.Relationships["members"])
		require.NoError(t, err)
		assert.JSONEq(t, `{"data":[]}`, string(raw))
	})

	t.Run("nil optional list is null", func(t *testing.T) {
		doc, err := s.Serialize(training{ID: 1, Title: "Randori"})
		require.NoError(t, err)
		data, _ := doc.Resource()
		assert.True(t, data.Relationships["coaches"].IsNull())
		assert.True(t, data.Relationships["teams"].IsList())
	})

	t.Run("list of pointers skips nil elements", func(t *testing.T) {
		u := u11()
		doc, err := s.Serialize(training{ID: 1, Teams: []*team{&u, nil}})
		require.NoError(t, err)
		data, _ := doc.Resource()
		assert.Equal(t, []ResourceIdentifier{{ID: "1", Type: "teams"}}, data.Relationships["teams"].Identifiers())
	})
}

func TestSerializeDeduplication(t *testing.T) {
	s := NewSerializer(newTestRegistry(t))

	shared := u11()
	coaches := []coach{
		{id: 1, name: "Kano", team: &shared},
		{id: 2, name: "Mifune", team: &shared},
	}

	t.Run("shared resource through list members", func(t *testing.T) {
		doc, err := s.Serialize(training{ID: 1, Coaches: &coaches, Teams: []*team{&shared}})
		require.NoError(t, err)

		assert.Equal(t, []ResourceIdentifier{
			{ID: "1", Type: "coaches"},
			{ID: "1", Type: "teams"},
			{ID: "abc-123", Type: "members"},
			{ID: "1", Type: "countries"},
			{ID: "2", Type: "coaches"},
		}, includedKeys(doc))
	})

	t.Run("two roots sharing a resource", func(t *testing.T) {
		for _, c := range coaches {
			doc, err := s.Serialize(c)
			require.NoError(t, err)

			count := 0
			for _, key := range includedKeys(doc) {
				if key == (ResourceIdentifier{ID: "1", Type: "teams"}) {
					count++
				}
			}
			assert.Equal(t, 1, count)
		}
	})

	t.Run("same country reached by two members", func(t *testing.T) {
		u := u11()
		u.Members = append(u.Members, member{UUID: "def-456", FirstName: "Kyuzo", Nationality: japan()})

		doc, err := s.Serialize(u)
		require.NoError(t, err)
		assert.Equal(t, []ResourceIdentifier{
			{ID: "abc-123", Type: "members"},
			{ID: "1", Type: "countries"},
			{ID: "def-456", Type: "members"},
		}, includedKeys(doc))
	})
}

func TestSerializeNoSelfInclusion(t *testing.T) {
	s := NewSerializer(newTestRegistry(t))

	a := &person{ID: 1, Name: "Jigoro"}
	a.Partner = a

	doc, err := s.Serialize(a)
	require.NoError(t, err)
	data, _ := doc.Resource()
	partner, ok := data.Relationships["partner"].Identifier()
	require.True(t, ok)
	assert.Equal(t, data.Identifier(), partner)
	assert.Empty(t, doc.Included())
}

func TestSerializeCycle(t *testing.T) {
	s := NewSerializer(newTestRegistry(t))

	t.Run("same type", func(t *testing.T) {
		a := &person{ID: 1, Name: "a"}
		b := &person{ID: 2, Name: "b", Partner: a}
		a.Partner = b

		doc, err := s.Serialize(a)
		require.NoError(t, err)
		assert.Equal(t, []ResourceIdentifier{{ID: "2", Type: "people"}}, includedKeys(doc))
	})

	t.Run("two types", func(t *testing.T) {
		l := &left{ID: 1}
		r := &right{ID: 1, Left: l}
		l.Right = r

		doc, err := s.Serialize(l)
		require.NoError(t, err)
		assert.Equal(t, []ResourceIdentifier{{ID: "1", Type: "rights"}}, includedKeys(doc))
	})
}

func TestSerializeIdempotent(t *testing.T) {
	s := NewSerializer(newTestRegistry(t))
	u := u11()

	first, err := s.Serialize(u)
	require.NoError(t, err)
	second, err := s.Serialize(u)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestSerializeErrors(t *testing.T) {
	s := NewSerializer(newTestRegistry(t))

	t.Run("unregistered root", func(t *testing.T) {
		_, err := s.Serialize(unregistered{ID: 1})
		assert.ErrorIs(t, err, ErrResourceNotRegistered)
	})

	t.Run("nil root", func(t *testing.T) {
		_, err := s.Serialize(nil)
		assert.ErrorIs(t, err, ErrResourceNotRegistered)
	})

	t.Run("missing identifier", func(t *testing.T) {
		_, err := s.Serialize(country{Name: "Nowhere"})
		assert.ErrorIs(t, err, ErrMissingIdentifier)
	})

	t.Run("missing identifier in related resource", func(t *testing.T) {
		u := u11()
		u.Members[0].Nationality = country{Name: "Nowhere"}

		_, err := s.Serialize(u)
		require.ErrorIs(t, err, ErrMissingIdentifier)

		var serr *SerializationError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, []string{"teams(1)", "members[0]", "nationality"}, serr.Path)
	})

	t.Run("nil pointer with explicit accessors", func(t *testing.T) {
		var c *coach
		_, err := s.Serialize(c)
		assert.ErrorIs(t, err, ErrMissingIdentifier)
	})
}

func TestSerializeZeroRequiredRelationship(t *testing.T) {
	type owner struct {
		ID      int
		Country *country
	}
	r := NewRegistry()
	r.MustRegister(
		Infer[country]("countries"),
		Define("owners",
			ID(func(o owner) int { return o.ID }),
			Rel("country", func(o owner) country {
				if o.Country == nil {
					return country{}
				}
				return *o.Country
			}),
		),
	)
	require.NoError(t, r.Seal())

	_, err := NewSerializer(r).Serialize(owner{ID: 1})
	assert.ErrorIs(t, err, ErrMissingIdentifier)
}

func TestSerializeMany(t *testing.T) {
	s := NewSerializer(newTestRegistry(t))

	a := &person{ID: 1, Name: "a"}
	b := &person{ID: 2, Name: "b", Partner: a}
	c := &person{ID: 3, Name: "c", Partner: &person{ID: 4, Name: "d"}}
	a.Partner = b

	doc, err := s.SerializeMany([]*person{a, b, c})
	require.NoError(t, err)
	assert.True(t, doc.IsCollection())
	assert.Len(t, doc.Resources(), 3)
	assert.Equal(t, []ResourceIdentifier{{ID: "4", Type: "people"}}, includedKeys(doc))

	t.Run("empty", func(t *testing.T) {
		doc, err := s.SerializeMany([]person{})
		require.NoError(t, err)
		raw, err := json.Marshal(doc)
		require.NoError(t, err)
		assert.JSONEq(t, `{"data":[]}`, string(raw))
	})

	t.Run("not a slice", func(t *testing.T) {
		_, err := s.SerializeMany(person{ID: 1})
		assert.Error(t, err)
	})

	t.Run("sequence", func(t *testing.T) {
		doc, err := SerializeSeq(s, slices.Values([]country{japan(), {ID: 2, Name: "Belgium"}}))
		require.NoError(t, err)
		assert.Len(t, doc.Resources(), 2)
	})
}

func TestSerializeWithInclude(t *testing.T) {
	s := NewSerializer(newTestRegistry(t))
	u := u11()

	t.Run("only first level", func(t *testing.T) {
		doc, err := s.Serialize(u, WithInclude("members"))
		require.NoError(t, err)
		assert.Equal(t, []ResourceIdentifier{{ID: "abc-123", Type: "members"}}, includedKeys(doc))

		included := doc.Included()
		_, ok := included[0].Relationships["nationality"].Identifier()
		assert.True(t, ok, "linkage is rendered even when the target is not included")
	})

	t.Run("nested path", func(t *testing.T) {
		doc, err := s.Serialize(u, WithInclude("members.nationality"))
		require.NoError(t, err)
		assert.Len(t, doc.Included(), 2)
	})

	t.Run("nothing", func(t *testing.T) {
		doc, err := s.Serialize(u, WithInclude())
		require.NoError(t, err)
		assert.Empty(t, doc.Included())
	})
}

func TestSerializeWithIncludeSharedResource(t *testing.T) {
	s := NewSerializer(newTestRegistry(t))
	u := u11()
	tr := training{
		ID:      3,
		Title:   "Randori",
		Coaches: &[]coach{{id: 7, name: "Kano", team: &u}},
		Teams:   []*team{&u},
	}

	tests := []struct {
		name  string
		paths []string
		want  []ResourceIdentifier
	}{
		{
			name:  "deeper path discovered last",
			paths: []string{"coaches.team", "teams.members"},
			want:  []ResourceIdentifier{{ID: "7", Type: "coaches"}, {ID: "1", Type: "teams"}, {ID: "abc-123", Type: "members"}},
		},
		{
			name:  "deeper path discovered first",
			paths: []string{"teams", "coaches.team.members"},
			want:  []ResourceIdentifier{{ID: "7", Type: "coaches"}, {ID: "1", Type: "teams"}, {ID: "abc-123", Type: "members"}},
		},
		{
			name:  "two nested paths through the same team",
			paths: []string{"coaches.team.members", "teams.members.nationality"},
			want: []ResourceIdentifier{
				{ID: "7", Type: "coaches"}, {ID: "1", Type: "teams"},
				{ID: "abc-123", Type: "members"}, {ID: "1", Type: "countries"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := s.Serialize(tr, WithInclude(tt.paths...))
			require.NoError(t, err)
			keys := includedKeys(doc)
			assert.ElementsMatch(t, tt.want, keys)
			assert.Len(t, keys, len(tt.want), "every resource is included once")
		})
	}
}
