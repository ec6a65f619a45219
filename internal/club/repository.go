package club

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kwai-club/kwai/pkg/jsonapi"
)

// CountryRepository reads countries.
type CountryRepository interface {
	List(ctx context.Context) ([]Country, error)
	GetByISO2(ctx context.Context, iso2 string) (Country, error)
}

// MemberFilter selects members. It is decoded from the filter query
// parameters of a request.
type MemberFilter struct {
	Name            string `schema:"filter[name]" validate:"max=100"`
	Active          *bool  `schema:"filter[active]"`
	Nationality     string `schema:"filter[nationality]" validate:"omitempty,len=2,alpha"`
	LicenseEndMonth int    `schema:"filter[license_end_month]" validate:"omitempty,min=1,max=12"`
	LicenseEndYear  int    `schema:"filter[license_end_year]" validate:"omitempty,min=1900,max=9999"`
	// Sort holds the fields of the sort parameter. A leading minus sorts
	// descending.
	Sort []string `schema:"-"`
}

// MemberRepository reads members.
type MemberRepository interface {
	// List returns one page of the members matching filter, ordered by the
	// sort fields of the filter or by name, and the number of matching members.
	List(ctx context.Context, filter MemberFilter, offset, limit int) ([]Member, int, error)
	Get(ctx context.Context, id uuid.UUID) (Member, error)
}

// CountryDBRepository implements CountryRepository on PostgreSQL.
type CountryDBRepository struct {
	db *sql.DB
}

func NewCountryDBRepository(db *sql.DB) *CountryDBRepository {
	return &CountryDBRepository{db: db}
}

const countryColumns = "id, iso_2, iso_3, name"

func (r *CountryDBRepository) List(ctx context.Context) ([]Country, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+countryColumns+" FROM countries ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query countries: %w", err)
	}
	defer rows.Close()

	var countries []Country
	for rows.Next() {
		var c Country
		if err := rows.Scan(&c.ID, &c.ISO2, &c.ISO3, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan country: %w", err)
		}
		countries = append(countries, c)
	}
	return countries, rows.Err()
}

func (r *CountryDBRepository) GetByISO2(ctx context.Context, iso2 string) (Country, error) {
	var c Country
	err := r.db.QueryRowContext(ctx,
		"SELECT "+countryColumns+" FROM countries WHERE iso_2 = $1", strings.ToUpper(iso2)).
		Scan(&c.ID, &c.ISO2, &c.ISO3, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Country{}, fmt.Errorf("%w: %s", ErrCountryNotFound, iso2)
	}
	if err != nil {
		return Country{}, fmt.Errorf("failed to query country %s: %w", iso2, err)
	}
	return c, nil
}

// MemberDBRepository implements MemberRepository on PostgreSQL.
type MemberDBRepository struct {
	db *sql.DB
}

func NewMemberDBRepository(db *sql.DB) *MemberDBRepository {
	return &MemberDBRepository{db: db}
}

// MemberColumns selects a member joined with its nationality. Queries using it
// alias club_members as m and countries as c.
const MemberColumns = `m.id, m.uuid, m.license, m.license_end_date, m.first_name, m.last_name,
	m.gender, m.birthdate, m.active, COALESCE(m.remark, ''),
	c.id, c.iso_2, c.iso_3, c.name`

const memberFrom = " FROM club_members m JOIN countries c ON c.id = m.nationality_id"

// Scanner is implemented by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanMember scans a row selected with MemberColumns. Columns selected after
// MemberColumns are scanned into extra.
func ScanMember(row Scanner, extra ...any) (Member, error) {
	var m Member
	dest := []any{
		&m.ID, &m.UUID, &m.LicenseNumber, &m.LicenseEndDate, &m.FirstName, &m.LastName,
		&m.Gender, &m.Birthdate, &m.Active, &m.Remark,
		&m.Nationality.ID, &m.Nationality.ISO2, &m.Nationality.ISO3, &m.Nationality.Name,
	}
	err := row.Scan(append(dest, extra...)...)
	return m, err
}

func (r *MemberDBRepository) List(ctx context.Context, filter MemberFilter, offset, limit int) ([]Member, int, error) {
	where, args := filter.where()

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+memberFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count members: %w", err)
	}

	query := "SELECT " + MemberColumns + memberFrom + where + filter.orderBy() +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	members := make([]Member, 0, limit)
	for rows.Next() {
		m, err := ScanMember(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

func (r *MemberDBRepository) Get(ctx context.Context, id uuid.UUID) (Member, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+MemberColumns+memberFrom+" WHERE m.uuid = $1", id)
	m, err := ScanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Member{}, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	if err != nil {
		return Member{}, fmt.Errorf("failed to query member %s: %w", id, err)
	}
	return m, nil
}

// where builds the WHERE clause of the filter with numbered placeholders.
func (f MemberFilter) where() (string, []any) {
	var conditions []string
	var args []any
	add := func(condition string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.Name != "" {
		add("(m.first_name ILIKE $%[1]d OR m.last_name ILIKE $%[1]d)", "%"+f.Name+"%")
	}
	if f.Active != nil {
		add("m.active = $%d", *f.Active)
	}
	if f.Nationality != "" {
		add("c.iso_2 = $%d", strings.ToUpper(f.Nationality))
	}
	if f.LicenseEndMonth != 0 {
		add("EXTRACT(MONTH FROM m.license_end_date) = $%d", f.LicenseEndMonth)
	}
	if f.LicenseEndYear != 0 {
		add("EXTRACT(YEAR FROM m.license_end_date) = $%d", f.LicenseEndYear)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// memberSortColumns maps the sort fields of the members list to the columns
// they order by. %[1]s receives the direction.
var memberSortColumns = map[string]string{
	"name":             "m.last_name%[1]s, m.first_name%[1]s",
	"license":          "m.license%[1]s",
	"license_end_date": "m.license_end_date%[1]s",
	"birthdate":        "m.birthdate%[1]s",
}

// checkSort rejects a sort field members cannot be ordered by.
func (f MemberFilter) checkSort() error {
	for _, field := range f.Sort {
		name := strings.TrimPrefix(field, "-")
		if _, ok := memberSortColumns[name]; !ok {
			return &jsonapi.DocumentError{
				Pointer: "sort",
				Detail:  fmt.Sprintf("members cannot be sorted by %q", name),
			}
		}
	}
	return nil
}

// orderBy builds the ORDER BY clause of the sort fields. Unknown fields are
// skipped; without any field members are ordered by name.
func (f MemberFilter) orderBy() string {
	terms := make([]string, 0, len(f.Sort))
	for _, field := range f.Sort {
		direction := ""
		if name, desc := strings.CutPrefix(field, "-"); desc {
			field, direction = name, " DESC"
		}
		if column, ok := memberSortColumns[field]; ok {
			terms = append(terms, fmt.Sprintf(column, direction))
		}
	}
	if len(terms) == 0 {
		return " ORDER BY m.last_name, m.first_name"
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}
