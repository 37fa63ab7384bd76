package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/testme/tcm-e2e/internal/database"
	"github.com/testme/tcm-e2e/internal/models"
)

// TestCaseTable is the application's test case table
const TestCaseTable = "tcm_testcase"

// TestCaseRepository reads and cleans up test case rows directly in the
// application database. Deletes bypass the application and are meant for
// cleanup only.
type TestCaseRepository struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewTestCaseRepository creates a repository over an open connection
func NewTestCaseRepository(db *sql.DB, dialect database.Dialect) *TestCaseRepository {
	return &TestCaseRepository{
		db:      db,
		dialect: dialect,
	}
}

// ListTestCases returns every test case row ordered by id
func (r *TestCaseRepository) ListTestCases(ctx context.Context) ([]models.TestCase, error) {
	query := `
		SELECT id, name, COALESCE(description, '')
		FROM ` + TestCaseTable + `
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list test cases: %w", err)
	}
	defer rows.Close()

	var cases []models.TestCase
	for rows.Next() {
		var tc models.TestCase
		if err := rows.Scan(&tc.ID, &tc.Name, &tc.Description); err != nil {
			return nil, fmt.Errorf("failed to scan test case: %w", err)
		}
		cases = append(cases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate test cases: %w", err)
	}

	return cases, nil
}

// CountTestCases returns the number of test case rows
func (r *TestCaseRepository) CountTestCases(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+TestCaseTable).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count test cases: %w", err)
	}
	return n, nil
}

// DeleteTestCase removes every row with exactly the given name and returns
// the number of rows removed
func (r *TestCaseRepository) DeleteTestCase(ctx context.Context, name string) (int64, error) {
	query := database.Rebind(r.dialect, `DELETE FROM `+TestCaseTable+` WHERE name = ?`)

	result, err := r.db.ExecContext(ctx, query, name)
	if err != nil {
		return 0, fmt.Errorf("failed to delete test case %q: %w", name, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
