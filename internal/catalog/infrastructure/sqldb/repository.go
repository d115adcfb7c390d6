package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	catalog "stats-indexer/internal/catalog/domain"
)

const (
	defaultProgramsTable   = "NsPrograms"
	defaultStatisticsTable = "NsStats"

	// DriverPostgres is the database/sql driver name registered by pgx.
	DriverPostgres = "pgx"
	// DriverMySQL is the database/sql driver name registered by go-sql-driver/mysql.
	DriverMySQL = "mysql"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// DBTX is the subset of *sql.DB / *sql.Tx the repository needs.
type DBTX interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Repository reads programs and statistics with SELECT * so that every column
// of the source rows travels into the indexed documents.
type Repository struct {
	db              DBTX
	driver          string
	programsTable   string
	statisticsTable string
}

// Option configures the repository.
type Option func(*Repository)

// WithProgramsTable overrides the programs table name.
func WithProgramsTable(table string) Option {
	return func(r *Repository) {
		if table != "" {
			r.programsTable = table
		}
	}
}

// WithStatisticsTable overrides the statistics table name.
func WithStatisticsTable(table string) Option {
	return func(r *Repository) {
		if table != "" {
			r.statisticsTable = table
		}
	}
}

// NewRepository constructs a repository for the given driver name.
func NewRepository(db DBTX, driver string, opts ...Option) (*Repository, error) {
	if db == nil {
		return nil, errors.New("catalog repo: nil db")
	}
	switch driver {
	case DriverPostgres, DriverMySQL:
	default:
		return nil, fmt.Errorf("catalog repo: unsupported driver %q", driver)
	}
	r := &Repository{
		db:              db,
		driver:          driver,
		programsTable:   defaultProgramsTable,
		statisticsTable: defaultStatisticsTable,
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, table := range []string{r.programsTable, r.statisticsTable} {
		if !identifierPattern.MatchString(table) {
			return nil, fmt.Errorf("catalog repo: invalid table name %q", table)
		}
	}
	return r, nil
}

// ListPrograms loads the whole program catalog.
func (r *Repository) ListPrograms(ctx context.Context) ([]catalog.Program, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("catalog repo: nil db")
	}
	query := fmt.Sprintf("SELECT * FROM %s", r.programsTable)
	rows, err := queryMaps(ctx, r.db, query)
	if err != nil {
		return nil, fmt.Errorf("catalog repo: list programs: %w", err)
	}
	programs := make([]catalog.Program, 0, len(rows))
	for i, row := range rows {
		p, err := programFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("catalog repo: program row %d: %w", i, err)
		}
		programs = append(programs, p)
	}
	return programs, nil
}

// ListStatisticsAfter loads statistics with sdate strictly after cutoff.
func (r *Repository) ListStatisticsAfter(ctx context.Context, cutoff time.Time) ([]catalog.Statistic, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("catalog repo: nil db")
	}
	if cutoff.IsZero() {
		return nil, errors.New("catalog repo: zero cutoff")
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE sdate > %s", r.statisticsTable, r.placeholder(1))
	rows, err := queryMaps(ctx, r.db, query, cutoff.Format(catalog.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("catalog repo: list statistics: %w", err)
	}
	stats := make([]catalog.Statistic, 0, len(rows))
	for i, row := range rows {
		s, err := statisticFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("catalog repo: statistic row %d: %w", i, err)
		}
		stats = append(stats, s)
	}
	return stats, nil
}

func (r *Repository) placeholder(n int) string {
	if r.driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

type row struct {
	columns []string
	values  map[string]any
}

func queryMaps(ctx context.Context, db DBTX, query string, args ...any) ([]row, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var result []row
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		r := row{columns: columns, values: make(map[string]any, len(columns))}
		for i, col := range columns {
			r.values[col] = values[i]
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// take removes the named column (case-insensitive) from the row and returns its value.
func (r row) take(name string) (any, bool) {
	for _, col := range r.columns {
		if !strings.EqualFold(col, name) {
			continue
		}
		v, ok := r.values[col]
		if ok {
			delete(r.values, col)
		}
		return v, ok
	}
	return nil, false
}

func (r row) attributes() map[string]any {
	attrs := make(map[string]any, len(r.values))
	for col, v := range r.values {
		attrs[col] = documentValue(v)
	}
	return attrs
}

func programFromRow(r row) (catalog.Program, error) {
	rawID, ok := r.take("program_id")
	if !ok {
		return catalog.Program{}, catalog.ErrEmptyProgramID
	}
	id, err := catalog.ParseProgramID(rawID)
	if err != nil {
		return catalog.Program{}, err
	}
	var parentID catalog.ProgramID
	if rawParent, ok := r.take("parent_id"); ok {
		if parentID, err = catalog.ParseProgramID(rawParent); err != nil {
			return catalog.Program{}, fmt.Errorf("parent_id: %w", err)
		}
	}
	var currency string
	if rawCurrency, ok := r.take("currency"); ok {
		currency = stringValue(rawCurrency)
	}
	return catalog.Program{
		ID:         id,
		ParentID:   parentID,
		Currency:   currency,
		Attributes: r.attributes(),
	}, nil
}

func statisticFromRow(r row) (catalog.Statistic, error) {
	rawID, _ := r.take("program_id")
	id, err := catalog.ParseProgramID(rawID)
	if err != nil {
		return catalog.Statistic{}, err
	}
	key, err := catalog.ProgramKey(rawID)
	if err != nil {
		return catalog.Statistic{}, err
	}
	rawDate, _ := r.take("sdate")
	sdate, err := catalog.FormatSDate(rawDate)
	if err != nil {
		return catalog.Statistic{}, err
	}
	rawAmount, _ := r.take("totalamt")
	amount, err := catalog.ParseAmount(rawAmount)
	if err != nil {
		return catalog.Statistic{}, err
	}
	return catalog.Statistic{
		ProgramID:   id,
		ProgramKey:  key,
		SDate:       sdate,
		TotalAmount: amount,
		Attributes:  r.attributes(),
	}, nil
}

// documentValue turns driver values into JSON-friendly ones. Text columns from
// drivers that return raw bytes would otherwise be base64-encoded.
func documentValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
