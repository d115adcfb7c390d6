package integration_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"stats-indexer/internal/catalog/infrastructure/sqldb"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestSQLRepository_PostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open(sqldb.DriverPostgres, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	stmts := []string{
		`DROP TABLE IF EXISTS it_programs`,
		`DROP TABLE IF EXISTS it_stats`,
		`CREATE TABLE it_programs (program_id INT PRIMARY KEY, parent_id INT NULL, currency TEXT, name TEXT)`,
		`CREATE TABLE it_stats (program_id INT, sdate DATE, totalamt NUMERIC(12,2) NULL, clicks INT)`,
		`INSERT INTO it_programs VALUES (1, NULL, 'USD', 'root'), (2, 1, 'eur', 'child')`,
		`INSERT INTO it_stats VALUES (2, '2023-04-15', 90.00, 3), (2, '2023-03-01', 10.00, 1), (1, '2023-04-16', NULL, 0)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	defer func() {
		_, _ = db.ExecContext(ctx, `DROP TABLE IF EXISTS it_programs`)
		_, _ = db.ExecContext(ctx, `DROP TABLE IF EXISTS it_stats`)
	}()

	repo, err := sqldb.NewRepository(db, sqldb.DriverPostgres, sqldb.WithProgramsTable("it_programs"), sqldb.WithStatisticsTable("it_stats"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}

	programs, err := repo.ListPrograms(ctx)
	if err != nil {
		t.Fatalf("list programs: %v", err)
	}
	if len(programs) != 2 {
		t.Fatalf("expected 2 programs, got %d", len(programs))
	}

	stats, err := repo.ListStatisticsAfter(ctx, time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("list statistics: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 statistics after cutoff, got %d", len(stats))
	}
	for _, s := range stats {
		if s.SDate == "2023-04-15" && s.Amount().String() != "90" {
			t.Fatalf("expected amount 90, got %s", s.Amount())
		}
		if s.SDate == "2023-04-16" && s.TotalAmount.Valid {
			t.Fatalf("expected null amount for 2023-04-16")
		}
	}
}
