package training

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/kwai-club/kwai/internal/club"
	"github.com/kwai-club/kwai/internal/teams"
)

// Filter selects trainings. Start and End are dates (YYYY-MM-DD); End is
// inclusive.
type Filter struct {
	Start string `schema:"filter[start]" validate:"omitempty,datetime=2006-01-02"`
	End   string `schema:"filter[end]" validate:"omitempty,datetime=2006-01-02"`
	Coach int    `schema:"filter[coach]" validate:"gte=0"`
	Team  int    `schema:"filter[team]" validate:"gte=0"`
}

// Repository reads trainings and coaches.
type Repository interface {
	// List returns one page of the trainings matching filter, the most recent
	// first, and the number of matching trainings.
	List(ctx context.Context, filter Filter, offset, limit int) ([]Training, int, error)
	Get(ctx context.Context, id int) (Training, error)
	Coaches(ctx context.Context) ([]Coach, error)
}

// TeamLoader loads teams with their members.
type TeamLoader interface {
	ListByIDs(ctx context.Context, ids []int) ([]*teams.Team, error)
}

// DBRepository implements Repository on PostgreSQL.
type DBRepository struct {
	db    *sql.DB
	teams TeamLoader
}

func NewDBRepository(db *sql.DB, teams TeamLoader) *DBRepository {
	return &DBRepository{db: db, teams: teams}
}

const trainingColumns = `t.id, t.title, COALESCE(t.summary, ''), t.start_date, t.end_date,
	t.cancelled, COALESCE(t.location, '')`

const coachColumns = club.MemberColumns + ", co.id, co.active, COALESCE(co.description, ''), co.team_id"

const coachFrom = ` FROM coaches co
	JOIN club_members m ON m.id = co.member_id
	JOIN countries c ON c.id = m.nationality_id`

func (r *DBRepository) List(ctx context.Context, filter Filter, offset, limit int) ([]Training, int, error) {
	where, args, err := filter.where()
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM trainings t"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count trainings: %w", err)
	}

	query := "SELECT " + trainingColumns + " FROM trainings t" + where +
		fmt.Sprintf(" ORDER BY t.start_date DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query trainings: %w", err)
	}
	trainings, err := scanTrainings(rows)
	if err != nil {
		return nil, 0, err
	}

	if err := r.loadRelations(ctx, trainings); err != nil {
		return nil, 0, err
	}
	return trainings, total, nil
}

func (r *DBRepository) Get(ctx context.Context, id int) (Training, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+trainingColumns+" FROM trainings t WHERE t.id = $1", id)
	if err != nil {
		return Training{}, fmt.Errorf("failed to query training %d: %w", id, err)
	}
	trainings, err := scanTrainings(rows)
	if err != nil {
		return Training{}, err
	}
	if len(trainings) == 0 {
		return Training{}, fmt.Errorf("%w: %d", ErrTrainingNotFound, id)
	}

	if err := r.loadRelations(ctx, trainings); err != nil {
		return Training{}, err
	}
	return trainings[0], nil
}

// Coaches returns every coach ordered by name.
func (r *DBRepository) Coaches(ctx context.Context) ([]Coach, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+coachColumns+coachFrom+" ORDER BY m.last_name, m.first_name")
	if err != nil {
		return nil, fmt.Errorf("failed to query coaches: %w", err)
	}
	defer rows.Close()

	var coaches []Coach
	teamIDs := make(map[int][]int) // team id -> coach indexes
	for rows.Next() {
		var teamID sql.NullInt64
		coach, err := scanCoach(rows, &teamID)
		if err != nil {
			return nil, err
		}
		if teamID.Valid {
			teamIDs[int(teamID.Int64)] = append(teamIDs[int(teamID.Int64)], len(coaches))
		}
		coaches = append(coaches, coach)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	loaded, err := r.loadTeams(ctx, slices.Sorted(maps.Keys(teamIDs)))
	if err != nil {
		return nil, err
	}
	for teamID, indexes := range teamIDs {
		for _, i := range indexes {
			coaches[i].Team = loaded[teamID]
		}
	}
	return coaches, nil
}

// loadRelations loads the coaches and teams of trainings with one query per
// relationship.
func (r *DBRepository) loadRelations(ctx context.Context, trainings []Training) error {
	if len(trainings) == 0 {
		return nil
	}
	index := make(map[int]int, len(trainings))
	ids := make([]int64, 0, len(trainings))
	for i, t := range trainings {
		index[t.ID] = i
		ids = append(ids, int64(t.ID))
	}

	type coachOf struct {
		training int
		coach    Coach
		team     sql.NullInt64
	}
	var coaches []coachOf
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+coachColumns+", tc.training_id"+coachFrom+
			" JOIN training_coaches tc ON tc.coach_id = co.id"+
			" WHERE tc.training_id = ANY($1) ORDER BY m.last_name, m.first_name",
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query training coaches: %w", err)
	}
	for rows.Next() {
		var c coachOf
		coach, err := scanCoach(rows, &c.team, &c.training)
		if err != nil {
			rows.Close()
			return err
		}
		c.coach = coach
		coaches = append(coaches, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	type teamOf struct {
		training int
		team     int
	}
	var links []teamOf
	rows, err = r.db.QueryContext(ctx,
		"SELECT training_id, team_id FROM training_teams WHERE training_id = ANY($1)", pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query training teams: %w", err)
	}
	for rows.Next() {
		var l teamOf
		if err := rows.Scan(&l.training, &l.team); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan training team: %w", err)
		}
		links = append(links, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	teamIDs := make(map[int][]int)
	for _, l := range links {
		teamIDs[l.team] = nil
	}
	for _, c := range coaches {
		if c.team.Valid {
			teamIDs[int(c.team.Int64)] = nil
		}
	}
	loaded, err := r.loadTeams(ctx, slices.Sorted(maps.Keys(teamIDs)))
	if err != nil {
		return err
	}

	for i := range trainings {
		list := []Coach{}
		trainings[i].Coaches = &list
		trainings[i].Teams = []*teams.Team{}
	}
	for _, c := range coaches {
		if c.team.Valid {
			c.coach.Team = loaded[int(c.team.Int64)]
		}
		t := &trainings[index[c.training]]
		*t.Coaches = append(*t.Coaches, c.coach)
	}
	for _, l := range links {
		if team, ok := loaded[l.team]; ok {
			t := &trainings[index[l.training]]
			t.Teams = append(t.Teams, team)
		}
	}
	return nil
}

func (r *DBRepository) loadTeams(ctx context.Context, ids []int) (map[int]*teams.Team, error) {
	loaded := make(map[int]*teams.Team, len(ids))
	if len(ids) == 0 {
		return loaded, nil
	}
	list, err := r.teams.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, t := range list {
		loaded[t.ID] = t
	}
	return loaded, nil
}

func scanTrainings(rows *sql.Rows) ([]Training, error) {
	defer rows.Close()

	var trainings []Training
	for rows.Next() {
		var t Training
		if err := rows.Scan(&t.ID, &t.Title, &t.Summary, &t.StartDate, &t.EndDate, &t.Cancelled, &t.Location); err != nil {
			return nil, fmt.Errorf("failed to scan training: %w", err)
		}
		trainings = append(trainings, t)
	}
	return trainings, rows.Err()
}

func scanCoach(row club.Scanner, teamID *sql.NullInt64, extra ...any) (Coach, error) {
	var c Coach
	member, err := club.ScanMember(row, append([]any{&c.ID, &c.Active, &c.Description, teamID}, extra...)...)
	if err != nil {
		return Coach{}, fmt.Errorf("failed to scan coach: %w", err)
	}
	c.Member = member
	c.Name = member.Name()
	return c, nil
}

// where builds the WHERE clause of the filter with numbered placeholders.
func (f Filter) where() (string, []any, error) {
	var conditions []string
	var args []any
	add := func(condition string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.Start != "" {
		start, err := time.Parse(time.DateOnly, f.Start)
		if err != nil {
			return "", nil, err
		}
		add("t.start_date >= $%d", start)
	}
	if f.End != "" {
		end, err := time.Parse(time.DateOnly, f.End)
		if err != nil {
			return "", nil, err
		}
		add("t.start_date < $%d", end.AddDate(0, 0, 1))
	}
	if f.Coach != 0 {
		add("EXISTS (SELECT 1 FROM training_coaches tc WHERE tc.training_id = t.id AND tc.coach_id = $%d)", f.Coach)
	}
	if f.Team != 0 {
		add("EXISTS (SELECT 1 FROM training_teams tt WHERE tt.training_id = t.id AND tt.team_id = $%d)", f.Team)
	}

	if len(conditions) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args, nil
}
