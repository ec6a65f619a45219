package club

import (
	"context"
	"database/sql/driver"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwai-club/kwai/pkg/jsonapi"
)

var memberRowColumns = []string{
	"id", "uuid", "license", "license_end_date", "first_name", "last_name",
	"gender", "birthdate", "active", "remark",
	"country_id", "iso_2", "iso_3", "name",
}

func memberRow(id int, memberUUID uuid.UUID, first, last string) []driver.Value {
	return []driver.Value{
		id, memberUUID.String(), "LIC-1", time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), first, last,
		GenderMale, time.Date(1860, 12, 10, 0, 0, 0, 0, time.UTC), true, "",
		1, "JP", "JPN", "Japan",
	}
}

func TestCountryDBRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewCountryDBRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, iso_2, iso_3, name FROM countries ORDER BY name")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "iso_2", "iso_3", "name"}).
			AddRow(2, "BE", "BEL", "Belgium").
			AddRow(1, "JP", "JPN", "Japan"))

	countries, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Country{
		{ID: 2, ISO2: "BE", ISO3: "BEL", Name: "Belgium"},
		{ID: 1, ISO2: "JP", ISO3: "JPN", Name: "Japan"},
	}, countries)

	mock.ExpectQuery(regexp.QuoteMeta("FROM countries WHERE iso_2 = $1")).
		WithArgs("XX").
		WillReturnRows(sqlmock.NewRows([]string{"id", "iso_2", "iso_3", "name"}))

	_, err = repo.GetByISO2(context.Background(), "xx")
	assert.ErrorIs(t, err, ErrCountryNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemberDBRepositoryList(t *testing.T) {
	active := true
	tests := []struct {
		name      string
		filter    MemberFilter
		wantWhere string
		wantOrder string
		wantArgs  []driver.Value
	}{
		{name: "no filter", wantWhere: "", wantArgs: nil},
		{
			name:      "active",
			filter:    MemberFilter{Active: &active},
			wantWhere: " WHERE m.active = $1",
			wantArgs:  []driver.Value{true},
		},
		{
			name:      "name and nationality",
			filter:    MemberFilter{Name: "kano", Nationality: "jp"},
			wantWhere: " WHERE (m.first_name ILIKE $1 OR m.last_name ILIKE $1) AND c.iso_2 = $2",
			wantArgs:  []driver.Value{"%kano%", "JP"},
		},
		{
			name:      "license end",
			filter:    MemberFilter{LicenseEndMonth: 12, LicenseEndYear: 2025},
			wantWhere: " WHERE EXTRACT(MONTH FROM m.license_end_date) = $1 AND EXTRACT(YEAR FROM m.license_end_date) = $2",
			wantArgs:  []driver.Value{12, 2025},
		},
		{
			name:      "sorted",
			filter:    MemberFilter{Active: &active, Sort: []string{"-license_end_date", "name"}},
			wantWhere: " WHERE m.active = $1",
			wantOrder: " ORDER BY m.license_end_date DESC, m.last_name, m.first_name",
			wantArgs:  []driver.Value{true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)" + memberFrom + tt.wantWhere)).
				WithArgs(tt.wantArgs...).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

			order := tt.wantOrder
			if order == "" {
				order = " ORDER BY m.last_name, m.first_name"
			}
			n := len(tt.wantArgs)
			mock.ExpectQuery(regexp.QuoteMeta(tt.wantWhere+order+" LIMIT $"+strconv.Itoa(n+1)+" OFFSET $"+strconv.Itoa(n+2))).
				WithArgs(append(tt.wantArgs, 10, 20)...).
				WillReturnRows(sqlmock.NewRows(memberRowColumns).
					AddRow(memberRow(1, uuid.New(), "Jigoro", "Kano")...))

			members, total, err := NewMemberDBRepository(db).List(context.Background(), tt.filter, 20, 10)
			require.NoError(t, err)
			assert.Equal(t, 42, total)
			require.Len(t, members, 1)
			assert.Equal(t, "Jigoro Kano", members[0].Name())
			assert.Equal(t, "JP", members[0].Nationality.ISO2)
			assert.Equal(t, "1860-12-10", members[0].Birthdate.String())
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMemberFilterOrderBy(t *testing.T) {
	tests := []struct {
		name    string
		sort    []string
		want    string
		wantErr bool
	}{
		{name: "default", want: " ORDER BY m.last_name, m.first_name"},
		{name: "descending name", sort: []string{"-name"}, want: " ORDER BY m.last_name DESC, m.first_name DESC"},
		{name: "two fields", sort: []string{"birthdate", "-license"}, want: " ORDER BY m.birthdate, m.license DESC"},
		{name: "unknown field", sort: []string{"remark"}, want: " ORDER BY m.last_name, m.first_name", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := MemberFilter{Sort: tt.sort}
			assert.Equal(t, tt.want, f.orderBy())
			if tt.wantErr {
				assert.ErrorIs(t, f.checkSort(), jsonapi.ErrInvalidDocument)
				return
			}
			assert.NoError(t, f.checkSort())
		})
	}
}

func TestMemberDBRepositoryGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewMemberDBRepository(db)

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE m.uuid = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(memberRowColumns).AddRow(memberRow(7, id, "Jigoro", "Kano")...))

	member, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 7, member.ID)
	assert.Equal(t, id, member.UUID)
	assert.Equal(t, "LIC-1", member.LicenseNumber)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE m.uuid = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(memberRowColumns))

	_, err = repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrMemberNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
