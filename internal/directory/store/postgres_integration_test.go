//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"beacon/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	storeContractSuite
	postgres *containers.PostgresContainer
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(Migrate(context.Background(), s.postgres.DB))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	_ = s.postgres.Terminate(context.Background())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "contacts"))
	s.setup(func() directoryStore { return NewPostgres(s.postgres.DB) })
}

func (s *PostgresStoreSuite) TestMigrateIsIdempotent() {
	s.NoError(Migrate(s.ctx, s.postgres.DB))
}
