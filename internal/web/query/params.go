package query

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"

	"github.com/kwai-club/kwai/pkg/jsonapi"
)

var (
	validate      = validator.New()
	schemaDecoder = schema.NewDecoder()
)

func init() {
	schemaDecoder.IgnoreUnknownKeys(true)
	// Report validation failures with the query parameter name.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("schema"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// fieldsPattern matches query parameters like fields[typename]
var fieldsPattern = regexp.MustCompile(`^fields\[([^\]]+)\]$`)

// ParseInclude parses the include query parameter into a slice of relationship names.
// Example: ?include=author,comments returns ["author", "comments"]
// Returns an empty slice if the include parameter is not present.
func ParseInclude(r *http.Request) []string {
	include := r.URL.Query().Get("include")
	if include == "" {
		return []string{}
	}

	parts := strings.Split(include, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// ParseFields parses the fields query parameters into a map of resource types to field names.
// Example: ?fields[users]=name,email&fields[posts]=title
// Returns: {"users": ["name", "email"], "posts": ["title"]}
// Returns an empty map if no fields parameters are present.
func ParseFields(r *http.Request) map[string][]string {
	result := make(map[string][]string)

	for key, values := range r.URL.Query() {
		matches := fieldsPattern.FindStringSubmatch(key)
		if len(matches) != 2 {
			continue
		}

		typeName := matches[1]
		if len(values) == 0 || values[0] == "" {
			result[typeName] = []string{}
			continue
		}

		fields := strings.Split(values[0], ",")
		fieldList := make([]string, 0, len(fields))
		for _, field := range fields {
			trimmed := strings.TrimSpace(field)
			if trimmed != "" {
				fieldList = append(fieldList, trimmed)
			}
		}
		result[typeName] = fieldList
	}

	return result
}

// ParseSort parses the sort query parameter into a slice of sort fields.
// Example: ?sort=-created_at,title returns ["-created_at", "title"]
// The "-" prefix indicates descending sort order.
// Returns an empty slice if the sort parameter is not present.
func ParseSort(r *http.Request) []string {
	sort := r.URL.Query().Get("sort")
	if sort == "" {
		return []string{}
	}

	parts := strings.Split(sort, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Page limits used by the collection endpoints.
const (
	DefaultPageLimit = 25
	MaxPageLimit     = 100
)

// Page is an offset based page request: ?page[offset]=20&page[limit]=10
type Page struct {
	Offset int `schema:"page[offset]" validate:"gte=0"`
	Limit  int `schema:"page[limit]" validate:"gte=0"`
}

// ParsePage parses the page[offset] and page[limit] query parameters. A missing
// limit becomes defaultLimit and a limit above maxLimit is capped. A maxLimit
// of zero disables the cap.
func ParsePage(r *http.Request, defaultLimit, maxLimit int) (Page, error) {
	var page Page
	if err := Decode(r, &page); err != nil {
		return Page{}, err
	}
	if page.Limit == 0 {
		page.Limit = defaultLimit
	}
	if maxLimit > 0 && page.Limit > maxLimit {
		page.Limit = maxLimit
	}
	return page, nil
}

// Decode fills dst, a pointer to a struct, from the query string using its
// schema tags and validates the result with its validate tags. Unknown
// parameters are ignored.
//
//	type memberFilter struct {
//		Name   string `schema:"filter[name]" validate:"max=100"`
//		Active *bool  `schema:"filter[active]"`
//	}
//
// Failures are returned as a *jsonapi.DocumentError naming the parameter.
func Decode(r *http.Request, dst any) error {
	if err := schemaDecoder.Decode(dst, r.URL.Query()); err != nil {
		return decodeError(err)
	}

	if err := validate.Struct(dst); err != nil {
		var valErrs validator.ValidationErrors
		if errors.As(err, &valErrs) && len(valErrs) > 0 {
			fe := valErrs[0]
			return &jsonapi.DocumentError{
				Pointer: fe.Field(),
				Detail:  fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()),
			}
		}
		return err
	}
	return nil
}

func decodeError(err error) error {
	var multi schema.MultiError
	if errors.As(err, &multi) && len(multi) > 0 {
		keys := make([]string, 0, len(multi))
		for key := range multi {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		return &jsonapi.DocumentError{
			Pointer: keys[0],
			Detail:  fmt.Sprintf("%s has an invalid value", keys[0]),
		}
	}
	return &jsonapi.DocumentError{Pointer: "query", Detail: err.Error()}
}
