package training

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwai-club/kwai/internal/teams"
)

type fakeTeams struct {
	teams     map[int]*teams.Team
	requested [][]int
}

func (f *fakeTeams) ListByIDs(_ context.Context, ids []int) ([]*teams.Team, error) {
	f.requested = append(f.requested, ids)
	var out []*teams.Team
	for _, id := range ids {
		if t, ok := f.teams[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func newFakeTeams() *fakeTeams {
	return &fakeTeams{teams: map[int]*teams.Team{
		1: {ID: 1, Name: "U11", Active: true, Members: []teams.TeamMember{}},
		2: {ID: 2, Name: "U13", Active: true, Members: []teams.TeamMember{}},
	}}
}

var trainingRowColumns = []string{"id", "title", "summary", "start_date", "end_date", "cancelled", "location"}

var coachRowColumns = []string{
	"id", "uuid", "license", "license_end_date", "first_name", "last_name",
	"gender", "birthdate", "active", "remark",
	"country_id", "iso_2", "iso_3", "name",
	"coach_id", "coach_active", "description", "team_id",
}

var monday = time.Date(2024, 9, 2, 18, 0, 0, 0, time.UTC)

func coachRow(coachID int, last string, teamID any, extra ...driver.Value) []driver.Value {
	row := []driver.Value{
		coachID + 100, uuid.NewString(), "LIC", time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), "Sensei", last,
		1, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), true, "",
		2, "BE", "BEL", "Belgium",
		coachID, true, "", teamID,
	}
	return append(row, extra...)
}

func TestDBRepositoryGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	loader := newFakeTeams()
	repo := NewDBRepository(db, loader)

	mock.ExpectQuery(regexp.QuoteMeta("FROM trainings t WHERE t.id = $1")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(trainingRowColumns).
			AddRow(1, "Randori", "", monday, monday.Add(90*time.Minute), false, "Dojo"))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE tc.training_id = ANY($1)")).
		WithArgs("{1}").
		WillReturnRows(sqlmock.NewRows(append(coachRowColumns, "training_id")).
			AddRow(coachRow(1, "Kano", 2, 1)...).
			AddRow(coachRow(2, "Mifune", nil, 1)...))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT training_id, team_id FROM training_teams WHERE training_id = ANY($1)")).
		WithArgs("{1}").
		WillReturnRows(sqlmock.NewRows([]string{"training_id", "team_id"}).AddRow(1, 1))

	training, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Randori", training.Title)

	require.NotNil(t, training.Coaches)
	coaches := *training.Coaches
	require.Len(t, coaches, 2)
	assert.Equal(t, "Sensei Kano", coaches[0].Name)
	assert.Same(t, loader.teams[2], coaches[0].Team)
	assert.Nil(t, coaches[1].Team)

	require.Len(t, training.Teams, 1)
	assert.Same(t, loader.teams[1], training.Teams[0])
	assert.Equal(t, [][]int{{1, 2}}, loader.requested, "teams are loaded once")
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(regexp.QuoteMeta("FROM trainings t WHERE t.id = $1")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(trainingRowColumns))

	_, err = repo.Get(context.Background(), 5)
	assert.ErrorIs(t, err, ErrTrainingNotFound)
}

func TestDBRepositoryList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	filter := Filter{Start: "2024-09-01", End: "2024-09-30", Team: 1}
	where := " WHERE t.start_date >= $1 AND t.start_date < $2" +
		" AND EXISTS (SELECT 1 FROM training_teams tt WHERE tt.training_id = t.id AND tt.team_id = $3)"
	start := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM trainings t" + where)).
		WithArgs(start, end, 1).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(where + " ORDER BY t.start_date DESC LIMIT $4 OFFSET $5")).
		WithArgs(start, end, 1, 25, 0).
		WillReturnRows(sqlmock.NewRows(trainingRowColumns).
			AddRow(3, "Kata", "", monday, monday.Add(time.Hour), true, ""))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE tc.training_id = ANY($1)")).
		WithArgs("{3}").
		WillReturnRows(sqlmock.NewRows(append(coachRowColumns, "training_id")))
	mock.ExpectQuery(regexp.QuoteMeta("FROM training_teams")).
		WithArgs("{3}").
		WillReturnRows(sqlmock.NewRows([]string{"training_id", "team_id"}))

	trainings, total, err := NewDBRepository(db, newFakeTeams()).List(context.Background(), filter, 0, 25)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, trainings, 1)
	assert.True(t, trainings[0].Cancelled)
	require.NotNil(t, trainings[0].Coaches, "loaded coaches are an empty list, not null")
	assert.Empty(t, *trainings[0].Coaches)
	assert.NotNil(t, trainings[0].Teams)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBRepositoryCoaches(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	loader := newFakeTeams()

	mock.ExpectQuery(regexp.QuoteMeta("FROM coaches co")).
		WillReturnRows(sqlmock.NewRows(coachRowColumns).
			AddRow(coachRow(1, "Kano", 2)...).
			AddRow(coachRow(2, "Mifune", 2)...).
			AddRow(coachRow(3, "Saigo", nil)...))

	coaches, err := NewDBRepository(db, loader).Coaches(context.Background())
	require.NoError(t, err)
	require.Len(t, coaches, 3)
	assert.Same(t, loader.teams[2], coaches[0].Team)
	assert.Same(t, loader.teams[2], coaches[1].Team)
	assert.Nil(t, coaches[2].Team)
	assert.Equal(t, 101, coaches[0].Member.ID)
	assert.Equal(t, [][]int{{2}}, loader.requested)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterWhere(t *testing.T) {
	where, args, err := Filter{}.where()
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args, err = Filter{Coach: 4}.where()
	require.NoError(t, err)
	assert.Equal(t, " WHERE EXISTS (SELECT 1 FROM training_coaches tc WHERE tc.training_id = t.id AND tc.coach_id = $1)", where)
	assert.Equal(t, []any{4}, args)
}
