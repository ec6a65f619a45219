package teams

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/kwai-club/kwai/internal/club"
)

// uniqueViolation is the PostgreSQL error code for a duplicate key.
const uniqueViolation = "23505"

// Repository reads teams with their members and adds members to teams.
type Repository interface {
	List(ctx context.Context) ([]*Team, error)
	Get(ctx context.Context, id int) (*Team, error)
	// FindMember looks up a club member that can join a team.
	FindMember(ctx context.Context, id uuid.UUID) (TeamMember, error)
	AddMember(ctx context.Context, team *Team, member TeamMember) error
}

// DBRepository implements Repository on PostgreSQL.
type DBRepository struct {
	db *sql.DB
}

func NewDBRepository(db *sql.DB) *DBRepository {
	return &DBRepository{db: db}
}

const teamColumns = "id, name, active, COALESCE(remark, '')"

func (r *DBRepository) List(ctx context.Context) ([]*Team, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+teamColumns+" FROM teams ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Active, &t.Remark); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadMembers(ctx, teams...); err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *DBRepository) Get(ctx context.Context, id int) (*Team, error) {
	var t Team
	err := r.db.QueryRowContext(ctx, "SELECT "+teamColumns+" FROM teams WHERE id = $1", id).
		Scan(&t.ID, &t.Name, &t.Active, &t.Remark)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrTeamNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query team %d: %w", id, err)
	}

	if err := r.loadMembers(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListByIDs returns the teams with the given ids, with their members. Unknown
// ids are ignored.
func (r *DBRepository) ListByIDs(ctx context.Context, ids []int) ([]*Team, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+teamColumns+" FROM teams WHERE id = ANY($1) ORDER BY name", pq.Array(toInt64s(ids)))
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Active, &t.Remark); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadMembers(ctx, teams...); err != nil {
		return nil, err
	}
	return teams, nil
}

const memberFrom = " FROM club_members m JOIN countries c ON c.id = m.nationality_id"

func (r *DBRepository) FindMember(ctx context.Context, id uuid.UUID) (TeamMember, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+club.MemberColumns+memberFrom+" WHERE m.uuid = $1", id)
	m, err := club.ScanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TeamMember{}, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	if err != nil {
		return TeamMember{}, fmt.Errorf("failed to query member %s: %w", id, err)
	}
	return NewTeamMember(m, true), nil
}

// AddMember stores the membership and appends member to team.
func (r *DBRepository) AddMember(ctx context.Context, team *Team, member TeamMember) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO team_members (team_id, member_id, active) VALUES ($1, $2, $3)",
		team.ID, member.MemberID, member.Active)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrTeamMemberExists, member.UUID)
	}
	if err != nil {
		return fmt.Errorf("failed to add member %s to team %d: %w", member.UUID, team.ID, err)
	}

	member.Team = team
	team.Members = append(team.Members, member)
	return nil
}

// loadMembers fetches the members of all teams with one query.
func (r *DBRepository) loadMembers(ctx context.Context, teams ...*Team) error {
	if len(teams) == 0 {
		return nil
	}
	byID := make(map[int]*Team, len(teams))
	ids := make([]int, 0, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
		ids = append(ids, t.ID)
		t.Members = []TeamMember{}
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+club.MemberColumns+", tm.team_id, tm.active"+
			memberFrom+" JOIN team_members tm ON tm.member_id = m.id"+
			" WHERE tm.team_id = ANY($1) ORDER BY m.last_name, m.first_name",
		pq.Array(toInt64s(ids)))
	if err != nil {
		return fmt.Errorf("failed to query team members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var teamID int
		var active bool
		m, err := club.ScanMember(rows, &teamID, &active)
		if err != nil {
			return fmt.Errorf("failed to scan team member: %w", err)
		}
		team, ok := byID[teamID]
		if !ok {
			continue
		}
		member := NewTeamMember(m, active)
		member.Team = team
		team.Members = append(team.Members, member)
	}
	return rows.Err()
}

// toInt64s converts ids for pq.Array, which has no []int support.
func toInt64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
