package jsonapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shapeNames(shapes []*ResourceShape) []string {
	names := make([]string, 0, len(shapes))
	for _, s := range shapes {
		names = append(names, s.TypeName)
	}
	return names
}

func TestDocumentShape(t *testing.T) {
	shapes := newTestRegistry(t).Shapes()

	tests := []struct {
		typeName     string
		wantIncluded []string
	}{
		{typeName: "countries", wantIncluded: []string{}},
		{typeName: "members", wantIncluded: []string{"countries"}},
		{typeName: "teams", wantIncluded: []string{"members", "countries"}},
		{typeName: "trainings", wantIncluded: []string{"coaches", "teams", "members", "countries"}},
		{typeName: "people", wantIncluded: []string{"people"}},
		{typeName: "lefts", wantIncluded: []string{"rights", "lefts"}},
	}

	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			doc, err := shapes.Document(tt.typeName)
			require.NoError(t, err)
			assert.Equal(t, tt.typeName, doc.Resource.TypeName)
			assert.Equal(t, tt.wantIncluded, shapeNames(doc.Included))
		})
	}

	t.Run("unknown type", func(t *testing.T) {
		_, err := shapes.Document("nope")
		assert.ErrorIs(t, err, ErrResourceNotRegistered)
	})
}

func TestResourceShapeCycle(t *testing.T) {
	shapes := newTestRegistry(t).Shapes()

	l, err := shapes.Resource("lefts")
	require.NoError(t, err)

	toRight, ok := l.Relationship("right")
	require.True(t, ok)
	toLeft, ok := toRight.Target.Relationship("left")
	require.True(t, ok)
	assert.Same(t, l, toLeft.Target, "a cycle resolves to the same shape")

	p, err := shapes.Resource("people")
	require.NoError(t, err)
	partner, ok := p.Relationship("partner")
	require.True(t, ok)
	assert.Same(t, p, partner.Target)
	assert.True(t, partner.Optional)
}

func TestResourceShapeAttributes(t *testing.T) {
	shapes := newTestRegistry(t).Shapes()

	team, err := shapes.Resource("teams")
	require.NoError(t, err)

	name, ok := team.Attribute("name")
	require.True(t, ok)
	assert.False(t, name.Nullable)

	members, ok := team.Relationship("members")
	require.True(t, ok)
	assert.True(t, members.List)
	assert.False(t, members.Optional)
	assert.Equal(t, "members", members.Target.TypeName)
}

type dojo struct {
	ID      int
	Senseis []*sensei `jsonapi:",rel"`
	Owner   *owner    `jsonapi:",rel"`
}

type sensei struct {
	ID   int
	Dojo *dojo `jsonapi:",rel"`
}

type owner struct {
	ID   int
	Name string
}

func TestResourceShapeFailedBuild(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(Infer[dojo]("dojos"), Infer[sensei]("senseis"))
	shapes := r.Shapes()

	// senseis is built on the way to the missing owner relationship.
	_, err := shapes.Resource("dojos")
	require.ErrorIs(t, err, ErrResourceNotRegistered)

	_, err = shapes.Resource("senseis")
	require.ErrorIs(t, err, ErrResourceNotRegistered, "no partial shape is cached")

	r.MustRegister(Infer[owner]("owners"))
	require.NoError(t, r.Seal())

	s, err := shapes.Resource("senseis")
	require.NoError(t, err)
	toDojo, ok := s.Relationship("dojo")
	require.True(t, ok)
	_, ok = toDojo.Target.Relationship("owner")
	assert.True(t, ok)
	toSenseis, ok := toDojo.Target.Relationship("senseis")
	require.True(t, ok)
	assert.Same(t, s, toSenseis.Target)
}

func TestValidateInclude(t *testing.T) {
	shapes := newTestRegistry(t).Shapes()

	tests := []struct {
		name    string
		paths   []string
		wantErr bool
	}{
		{name: "none"},
		{name: "direct", paths: []string{"members"}},
		{name: "nested", paths: []string{"members.nationality"}},
		{name: "unknown", paths: []string{"coaches"}, wantErr: true},
		{name: "unknown nested", paths: []string{"members.team"}, wantErr: true},
		{name: "attribute is not a relationship", paths: []string{"name"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := shapes.ValidateInclude("teams", tt.paths)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidDocument)
			var derr *DocumentError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, "include", derr.Pointer)
		})
	}
}

func TestJSONSchema(t *testing.T) {
	shapes := newTestRegistry(t).Shapes()

	doc, err := shapes.Document("teams")
	require.NoError(t, err)

	raw, err := json.Marshal(doc.JSONSchema())
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(raw, &schema))

	defs := schema["$defs"].(map[string]any)
	assert.Len(t, defs, 3)
	assert.Contains(t, defs, "teams")
	assert.Contains(t, defs, "members")
	assert.Contains(t, defs, "countries")

	teamDef := defs["teams"].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"const": "teams"}, teamDef["type"])

	members := teamDef["relationships"].(map[string]any)["properties"].(map[string]any)["members"].(map[string]any)
	data := members["properties"].(map[string]any)["data"].(map[string]any)
	assert.Equal(t, "array", data["type"])

	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "included")

	t.Run("recursive types stay finite", func(t *testing.T) {
		doc, err := shapes.Document("people")
		require.NoError(t, err)

		raw, err := json.Marshal(doc.JSONSchema())
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"people"`)
	})

	t.Run("optional relationships accept null", func(t *testing.T) {
		doc, err := shapes.Document("coaches")
		require.NoError(t, err)

		raw, err := json.Marshal(doc.JSONSchema())
		require.NoError(t, err)
		assert.Contains(t, string(raw), `{"type":"null"}`)
	})
}
