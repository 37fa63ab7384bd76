package testutil

import (
	"database/sql"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testme/tcm-e2e/internal/database"
)

// TestDatabase represents an isolated copy of the application's test case table
type TestDatabase struct {
	DB         *sql.DB
	DSN        string
	Dialect    database.Dialect
	SchemaName string
	masterDB   *sql.DB
}

// SetupTestDatabase creates a SQLite file in a temp directory holding the test case table
func SetupTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "db.sqlite3")
	db, err := database.Open(dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	testDatabase := &TestDatabase{
		DB:      db,
		DSN:     dsn,
		Dialect: database.DialectSQLite,
	}

	if err := testDatabase.RunMigrations(); err != nil {
		testDatabase.Teardown(t)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return testDatabase
}

// SetupPostgresTestDatabase creates an isolated schema in the database named by
// TEST_POSTGRES_URL. The test is skipped when the variable is unset.
func SetupPostgresTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()

	masterURL := os.Getenv("TEST_POSTGRES_URL")
	if masterURL == "" {
		t.Skip("TEST_POSTGRES_URL not set")
	}

	masterDB, err := database.Open(masterURL)
	if err != nil {
		t.Fatalf("Failed to connect to master database: %v", err)
	}

	// Generate unique schema name for this test
	schemaName := fmt.Sprintf("test_schema_%d_%d", time.Now().UnixNano(), rand.Intn(10000))

	if _, err := masterDB.Exec(fmt.Sprintf("CREATE SCHEMA %s", schemaName)); err != nil {
		masterDB.Close()
		t.Fatalf("Failed to create test schema: %v", err)
	}

	// Connect to the same database but set search_path to the test schema
	u, err := url.Parse(masterURL)
	if err != nil {
		masterDB.Exec(fmt.Sprintf("DROP SCHEMA %s CASCADE", schemaName))
		masterDB.Close()
		t.Fatalf("Failed to parse TEST_POSTGRES_URL: %v", err)
	}
	q := u.Query()
	q.Set("search_path", schemaName)
	u.RawQuery = q.Encode()

	testDB, err := database.Open(u.String())
	if err != nil {
		masterDB.Exec(fmt.Sprintf("DROP SCHEMA %s CASCADE", schemaName))
		masterDB.Close()
		t.Fatalf("Failed to connect to test schema: %v", err)
	}

	testDatabase := &TestDatabase{
		DB:         testDB,
		DSN:        u.String(),
		Dialect:    database.DialectPostgres,
		SchemaName: schemaName,
		masterDB:   masterDB,
	}

	if err := testDatabase.RunMigrations(); err != nil {
		testDatabase.Teardown(t)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return testDatabase
}

// RunMigrations creates the test case table the way the application lays it out
func (td *TestDatabase) RunMigrations() error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if td.Dialect == database.DialectPostgres {
		idColumn = "id SERIAL PRIMARY KEY"
	}

	createTestCaseTable := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS tcm_testcase (
		%s,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		author_id INTEGER,
		executor_id INTEGER
	)`, idColumn)

	if _, err := td.DB.Exec(createTestCaseTable); err != nil {
		return fmt.Errorf("failed to create tcm_testcase table: %w", err)
	}

	return nil
}

// Insert adds a test case row and returns its id
func (td *TestDatabase) Insert(t *testing.T, name string, description any) int64 {
	t.Helper()

	var id int64
	query := database.Rebind(td.Dialect, "INSERT INTO tcm_testcase (name, description) VALUES (?, ?) RETURNING id")
	if err := td.DB.QueryRow(query, name, description).Scan(&id); err != nil {
		t.Fatalf("Failed to insert test case %q: %v", name, err)
	}
	return id
}

// Teardown closes connections and drops the schema when one was created
func (td *TestDatabase) Teardown(t *testing.T) {
	t.Helper()

	if td.DB != nil {
		td.DB.Close()
	}

	if td.masterDB != nil {
		_, err := td.masterDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", td.SchemaName))
		if err != nil {
			t.Logf("Warning: Failed to drop test schema %s: %v", td.SchemaName, err)
		}
		td.masterDB.Close()
	}
}
