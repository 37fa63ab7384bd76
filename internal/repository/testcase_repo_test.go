package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/testme/tcm-e2e/internal/models"
	"github.com/testme/tcm-e2e/internal/repository/testutil"
)

// setups runs every test against SQLite and, when configured, PostgreSQL
var setups = map[string]func(t *testing.T) *testutil.TestDatabase{
	"sqlite":   testutil.SetupTestDatabase,
	"postgres": testutil.SetupPostgresTestDatabase,
}

func forEachDatabase(t *testing.T, fn func(t *testing.T, td *testutil.TestDatabase, repo *TestCaseRepository)) {
	t.Helper()
	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			td := setup(t)
			defer td.Teardown(t)
			fn(t, td, NewTestCaseRepository(td.DB, td.Dialect))
		})
	}
}

func TestTestCaseRepository_ListTestCases(t *testing.T) {
	forEachDatabase(t, func(t *testing.T, td *testutil.TestDatabase, repo *TestCaseRepository) {
		ctx := context.Background()

		cases, err := repo.ListTestCases(ctx)
		require.NoError(t, err)
		assert.Empty(t, cases)

		first := td.Insert(t, "Test Case Name", "This is a test case")
		second := td.Insert(t, "049", nil)

		cases, err = repo.ListTestCases(ctx)
		require.NoError(t, err)
		assert.Equal(t, []models.TestCase{
			{ID: first, Name: "Test Case Name", Description: "This is a test case"},
			{ID: second, Name: "049", Description: ""},
		}, cases)
	})
}

func TestTestCaseRepository_CountTestCases(t *testing.T) {
	forEachDatabase(t, func(t *testing.T, td *testutil.TestDatabase, repo *TestCaseRepository) {
		ctx := context.Background()

		td.Insert(t, "one", "")
		td.Insert(t, "two", "")

		n, err := repo.CountTestCases(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestTestCaseRepository_DeleteTestCase(t *testing.T) {
	forEachDatabase(t, func(t *testing.T, td *testutil.TestDatabase, repo *TestCaseRepository) {
		ctx := context.Background()

		td.Insert(t, "test to delete", "This test will be deleted")
		td.Insert(t, "test to delete", "duplicate")
		td.Insert(t, "test to keep", "")

		removed, err := repo.DeleteTestCase(ctx, "test to delete")
		require.NoError(t, err)
		assert.Equal(t, int64(2), removed)

		cases, err := repo.ListTestCases(ctx)
		require.NoError(t, err)
		require.Len(t, cases, 1)
		assert.Equal(t, "test to keep", cases[0].Name)

		removed, err = repo.DeleteTestCase(ctx, "missing")
		require.NoError(t, err)
		assert.Equal(t, int64(0), removed)
	})
}

func TestTestCaseRepository_MissingTable(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Teardown(t)

	_, err := td.DB.Exec("DROP TABLE tcm_testcase")
	require.NoError(t, err)

	repo := NewTestCaseRepository(td.DB, td.Dialect)
	_, err = repo.ListTestCases(context.Background())
	assert.Error(t, err)
	_, err = repo.DeleteTestCase(context.Background(), "x")
	assert.Error(t, err)
}
