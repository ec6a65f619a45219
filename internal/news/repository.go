package news

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Filter selects news items. A nil Enabled means only published items.
// PublishMonth is only used together with PublishYear. Application is the id
// or the name of an application and Author the UUID of a user who wrote one
// of the texts.
type Filter struct {
	Enabled      *bool  `schema:"filter[enabled]"`
	PublishYear  int    `schema:"filter[publish_year]" validate:"omitempty,min=1900,max=9999"`
	PublishMonth int    `schema:"filter[publish_month]" validate:"omitempty,min=1,max=12"`
	Application  string `schema:"filter[application]" validate:"max=255"`
	Promoted     bool   `schema:"filter[promoted]"`
	Author       string `schema:"filter[author]" validate:"omitempty,uuid"`
}

// PublishedOnly reports whether the filter restricts the result to published
// items.
func (f Filter) PublishedOnly() bool {
	return f.Enabled == nil || *f.Enabled
}

// Repository reads news items.
type Repository interface {
	// List returns one page of the news items matching filter, the most recent
	// publication first, and the number of matching items. Promoted items
	// are ordered by priority first.
	List(ctx context.Context, filter Filter, offset, limit int) ([]NewsItem, int, error)
	Get(ctx context.Context, id int) (NewsItem, error)
}

// DBRepository implements Repository on PostgreSQL.
type DBRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewDBRepository(db *sql.DB) *DBRepository {
	return &DBRepository{db: db, now: time.Now}
}

const newsItemColumns = `n.id, n.enabled, n.publish_date, n.end_date, n.promotion,
	n.promotion_end_date, COALESCE(n.remark, ''), a.id, a.name, a.title`

const newsItemFrom = " FROM news_items n JOIN applications a ON a.id = n.application_id"

func (r *DBRepository) List(ctx context.Context, filter Filter, offset, limit int) ([]NewsItem, int, error) {
	where, args := filter.where(r.now().UTC())

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+newsItemFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count news items: %w", err)
	}

	order := " ORDER BY n.publish_date DESC, n.id"
	if filter.Promoted {
		order = " ORDER BY n.promotion DESC, n.publish_date DESC, n.id"
	}
	query := "SELECT " + newsItemColumns + newsItemFrom + where + order +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query news items: %w", err)
	}
	items, err := scanNewsItems(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := r.loadTexts(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *DBRepository) Get(ctx context.Context, id int) (NewsItem, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+newsItemColumns+newsItemFrom+" WHERE n.id = $1", id)
	if err != nil {
		return NewsItem{}, fmt.Errorf("failed to query news item %d: %w", id, err)
	}
	items, err := scanNewsItems(rows)
	if err != nil {
		return NewsItem{}, err
	}
	if len(items) == 0 {
		return NewsItem{}, fmt.Errorf("%w: %d", ErrNewsItemNotFound, id)
	}
	if err := r.loadTexts(ctx, items); err != nil {
		return NewsItem{}, err
	}
	return items[0], nil
}

// loadTexts loads the texts of all items with one query.
func (r *DBRepository) loadTexts(ctx context.Context, items []NewsItem) error {
	if len(items) == 0 {
		return nil
	}
	index := make(map[int]int, len(items))
	ids := make([]int64, 0, len(items))
	for i := range items {
		items[i].Texts = []Text{}
		index[items[i].ID] = i
		ids = append(ids, int64(items[i].ID))
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT news_id, locale, format, title, summary, content FROM news_contents"+
			" WHERE news_id = ANY($1) ORDER BY news_id, locale",
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query news texts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			newsID  int
			text    Text
			content sql.NullString
		)
		if err := rows.Scan(&newsID, &text.Locale, &text.Format, &text.Title, &text.Summary, &content); err != nil {
			return fmt.Errorf("failed to scan news text: %w", err)
		}
		if content.Valid {
			text.Content = &content.String
		}
		if i, ok := index[newsID]; ok {
			items[i].Texts = append(items[i].Texts, text)
		}
	}
	return rows.Err()
}

func scanNewsItems(rows *sql.Rows) ([]NewsItem, error) {
	defer rows.Close()

	var items []NewsItem
	for rows.Next() {
		var (
			n                  NewsItem
			endDate, promotion sql.NullTime
		)
		err := rows.Scan(&n.ID, &n.Enabled, &n.PublishDate, &endDate, &n.Promotion.Priority,
			&promotion, &n.Remark, &n.Application.ID, &n.Application.Name, &n.Application.Title)
		if err != nil {
			return nil, fmt.Errorf("failed to scan news item: %w", err)
		}
		n.EndDate = nullTime(endDate)
		n.Promotion.EndDate = nullTime(promotion)
		items = append(items, n)
	}
	return items, rows.Err()
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

// where builds the WHERE clause of the filter with numbered placeholders. now
// decides which items are published and promoted.
func (f Filter) where(now time.Time) (string, []any) {
	var conditions []string
	var args []any
	add := func(condition string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.PublishedOnly() {
		add("n.enabled AND n.publish_date <= $%[1]d AND (n.end_date IS NULL OR n.end_date > $%[1]d)", now)
	}
	if f.PublishYear != 0 {
		add("EXTRACT(YEAR FROM n.publish_date) = $%d", f.PublishYear)
		if f.PublishMonth != 0 {
			add("EXTRACT(MONTH FROM n.publish_date) = $%d", f.PublishMonth)
		}
	}
	if f.Promoted {
		add("n.promotion > 0 AND (n.promotion_end_date IS NULL OR n.promotion_end_date > $%d)", now)
	}
	if f.Application != "" {
		if id, err := strconv.Atoi(f.Application); err == nil {
			add("a.id = $%d", id)
		} else {
			add("a.name = $%d", f.Application)
		}
	}
	if f.Author != "" {
		add("EXISTS (SELECT 1 FROM news_contents nc JOIN users u ON u.id = nc.user_id"+
			" WHERE nc.news_id = n.id AND u.uuid = $%d)", f.Author)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
