package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/testme/tcm-e2e/internal/logging"
	"github.com/testme/tcm-e2e/internal/models"
)

// ErrRowCountMismatch is returned when the database does not reflect a creation
var ErrRowCountMismatch = errors.New("test case row count did not grow by one")

// TestCaseRepository defines the database operations the service needs
type TestCaseRepository interface {
	ListTestCases(ctx context.Context) ([]models.TestCase, error)
	CountTestCases(ctx context.Context) (int, error)
	DeleteTestCase(ctx context.Context, name string) (int64, error)
}

// TestCaseService creates test cases through the application and checks the
// result against the database
type TestCaseService struct {
	client TCMClient
	repo   TestCaseRepository
	logger *zap.Logger
}

// NewTestCaseService creates a new test case service
func NewTestCaseService(client TCMClient, repo TestCaseRepository, logger *zap.Logger) *TestCaseService {
	return &TestCaseService{
		client: client,
		repo:   repo,
		logger: logging.OrNop(logger).Named("testcases"),
	}
}

// CreateVerified creates a test case over HTTP and confirms exactly one new row
// with that name is in the database
func (s *TestCaseService) CreateVerified(ctx context.Context, name, description string) (models.TestCase, error) {
	tc, err := models.NewTestCase(name, description)
	if err != nil {
		return models.TestCase{}, fmt.Errorf("invalid test case: %w", err)
	}

	before, err := s.repo.CountTestCases(ctx)
	if err != nil {
		return models.TestCase{}, err
	}

	if err := s.client.CreateTestCase(ctx, tc.Name, tc.Description); err != nil {
		return models.TestCase{}, fmt.Errorf("failed to create test case: %w", err)
	}

	cases, err := s.repo.ListTestCases(ctx)
	if err != nil {
		return models.TestCase{}, err
	}
	if len(cases) != before+1 {
		return models.TestCase{}, fmt.Errorf("%w: before %d, after %d", ErrRowCountMismatch, before, len(cases))
	}

	created, ok := models.FindByName(cases, tc.Name)
	if !ok {
		return models.TestCase{}, fmt.Errorf("%w: no row named %q", ErrRowCountMismatch, tc.Name)
	}

	s.logger.Info("Test case verified in database", zap.String("name", created.Name), zap.Int64("id", created.ID))
	return created, nil
}

// Cleanup deletes the named test cases directly in the database
func (s *TestCaseService) Cleanup(ctx context.Context, names ...string) error {
	var errs []error
	for _, name := range names {
		removed, err := s.repo.DeleteTestCase(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.logger.Debug("Test case removed", zap.String("name", name), zap.Int64("rows", removed))
	}
	return errors.Join(errs...)
}
