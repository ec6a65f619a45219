// Package news serves the news items published on the portals of the club.
package news

import (
	"errors"
	"time"

	"github.com/kwai-club/kwai/pkg/jsonapi"
)

// Resource type names.
const (
	ApplicationType = "applications"
	NewsItemType    = "news_items"
)

var ErrNewsItemNotFound = errors.New("news item not found")

// Application is a portal of the club that publishes news.
type Application struct {
	ID    int
	Name  string
	Title string
}

// Text is the content of a news item in one locale. Summary and content are
// markdown when Format is "md".
type Text struct {
	Locale  string  `json:"locale"`
	Format  string  `json:"format"`
	Title   string  `json:"title"`
	Summary string  `json:"summary"`
	Content *string `json:"content"`
}

// Promotion puts a news item forward until EndDate. A zero priority means
// the item is not promoted.
type Promotion struct {
	Priority int
	EndDate  *time.Time
}

// NewsItem is a news item with its texts. It is published from PublishDate
// until EndDate, when set.
type NewsItem struct {
	ID          int
	Enabled     bool
	PublishDate time.Time
	EndDate     *time.Time
	Promotion   Promotion
	Remark      string
	Texts       []Text
	Application Application
}

// Published reports whether the item is visible to everyone at now.
func (n NewsItem) Published(now time.Time) bool {
	if !n.Enabled || n.PublishDate.After(now) {
		return false
	}
	return n.EndDate == nil || n.EndDate.After(now)
}

// Resources declares the news read models.
func Resources() []jsonapi.Declaration {
	return []jsonapi.Declaration{
		jsonapi.Infer[Application](ApplicationType),
		jsonapi.Define(NewsItemType,
			jsonapi.ID(func(n NewsItem) int { return n.ID }),
			jsonapi.Attr("enabled", func(n NewsItem) bool { return n.Enabled }),
			jsonapi.Attr("publish_date", func(n NewsItem) time.Time { return n.PublishDate }),
			jsonapi.Attr("end_date", func(n NewsItem) *time.Time { return n.EndDate }),
			jsonapi.Attr("priority", func(n NewsItem) int { return n.Promotion.Priority }),
			jsonapi.Attr("promotion_end_date", func(n NewsItem) *time.Time { return n.Promotion.EndDate }),
			jsonapi.Attr("remark", func(n NewsItem) string { return n.Remark }),
			jsonapi.Attr("texts", func(n NewsItem) []Text { return n.Texts }),
			jsonapi.Rel("application", func(n NewsItem) Application { return n.Application }),
		),
	}
}
