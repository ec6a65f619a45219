// Package jsonapi turns domain read models into JSON:API documents.
//
// Every read model is declared once at startup, either explicitly:
//
//	registry.MustRegister(jsonapi.Define("coaches",
//	    jsonapi.ID(func(c Coach) int { return c.ID }),
//	    jsonapi.Attr("name", func(c Coach) string { return c.Name }),
//	    jsonapi.Rel("team", func(c Coach) *Team { return c.Team }),
//	))
//
// or by structural inference over its exported fields:
//
//	registry.MustRegister(jsonapi.Infer[Country]("countries"))
//
// After all types are registered the registry is sealed. Sealing validates the
// relationship graph and builds the document shapes; the registry is read-only
// afterwards and a Serializer built on it can be shared by concurrent requests.
//
// The declared Go type of a relationship determines its wire shape: a pointer is
// optional (rendered as null when nil), a slice is a list (always rendered as an
// array), and a pointer to a slice is an optional list.
package jsonapi
