//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"weld/internal/contact/models"
	"weld/internal/contact/store"
	"weld/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.Pool)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "contacts"))
}

func strPtr(v string) *string { return &v }

func (s *PostgresStoreSuite) TestInsertAssignsIdentifiersAndTimestamps() {
	ctx := context.Background()

	first, err := s.store.Insert(ctx, models.NewContact{
		Email:          strPtr("a@x.com"),
		LinkPrecedence: models.LinkPrecedencePrimary,
	})
	s.Require().NoError(err)
	second, err := s.store.Insert(ctx, models.NewContact{
		PhoneNumber:    strPtr("123"),
		LinkPrecedence: models.LinkPrecedencePrimary,
	})
	s.Require().NoError(err)

	s.Greater(second.ID, first.ID)
	s.False(first.CreatedAt.IsZero())
	s.Nil(first.DeletedAt)
	s.Equal(models.LinkPrecedencePrimary, first.LinkPrecedence)
}

func (s *PostgresStoreSuite) TestFindByEmailOrPhoneSkipsNilSide() {
	ctx := context.Background()

	byEmail, err := s.store.Insert(ctx, models.NewContact{
		Email:          strPtr("a@x.com"),
		LinkPrecedence: models.LinkPrecedencePrimary,
	})
	s.Require().NoError(err)
	byPhone, err := s.store.Insert(ctx, models.NewContact{
		PhoneNumber:    strPtr("123"),
		LinkPrecedence: models.LinkPrecedencePrimary,
	})
	s.Require().NoError(err)

	matched, err := s.store.FindByEmailOrPhone(ctx, strPtr("a@x.com"), strPtr("123"))
	s.Require().NoError(err)
	s.Require().Len(matched, 2)
	s.Equal(byEmail.ID, matched[0].ID)
	s.Equal(byPhone.ID, matched[1].ID)

	matched, err = s.store.FindByEmailOrPhone(ctx, nil, strPtr("123"))
	s.Require().NoError(err)
	s.Require().Len(matched, 1)
	s.Equal(byPhone.ID, matched[0].ID)

	// NULL columns must not match a nil predicate side.
	matched, err = s.store.FindByEmailOrPhone(ctx, strPtr("missing@x.com"), nil)
	s.Require().NoError(err)
	s.Empty(matched)
}

func (s *PostgresStoreSuite) TestFindByIDsOrLinkedIDsReturnsCluster() {
	ctx := context.Background()

	primary, err := s.store.Insert(ctx, models.NewContact{
		Email:          strPtr("a@x.com"),
		LinkPrecedence: models.LinkPrecedencePrimary,
	})
	s.Require().NoError(err)
	secondary, err := s.store.Insert(ctx, models.NewContact{
		PhoneNumber:    strPtr("123"),
		LinkedID:       &primary.ID,
		LinkPrecedence: models.LinkPrecedenceSecondary,
	})
	s.Require().NoError(err)
	_, err = s.store.Insert(ctx, models.NewContact{
		Email:          strPtr("unrelated@x.com"),
		LinkPrecedence: models.LinkPrecedencePrimary,
	})
	s.Require().NoError(err)

	cluster, err := s.store.FindByIDsOrLinkedIDs(ctx, []int64{primary.ID})
	s.Require().NoError(err)
	s.Require().Len(cluster, 2)
	s.Equal(primary.ID, cluster[0].ID)
	s.Equal(secondary.ID, cluster[1].ID)

	empty, err := s.store.FindByIDsOrLinkedIDs(ctx, nil)
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *PostgresStoreSuite) TestUpdateLinkageAndBulkRelink() {
	ctx := context.Background()

	a, err := s.store.Insert(ctx, models.NewContact{
		Email:          strPtr("a@x.com"),
		LinkPrecedence: models.LinkPrecedencePrimary,
	})
	s.Require().NoError(err)
	b, err := s.store.Insert(ctx, models.NewContact{
		PhoneNumber:    strPtr("999"),
		LinkPrecedence: models.LinkPrecedencePrimary,
	})
	s.Require().NoError(err)
	c, err := s.store.Insert(ctx, models.NewContact{
		Email:          strPtr("c@x.com"),
		LinkedID:       &b.ID,
		LinkPrecedence: models.LinkPrecedenceSecondary,
	})
	s.Require().NoError(err)

	demotedAt := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.UpdateLinkage(ctx, b.ID, models.LinkPrecedenceSecondary, &a.ID, demotedAt))
	s.Require().NoError(s.store.BulkRelink(ctx, b.ID, a.ID))

	cluster, err := s.store.FindByIDsOrLinkedIDs(ctx, []int64{a.ID})
	s.Require().NoError(err)
	s.Require().Len(cluster, 3)
	for _, member := range cluster[1:] {
		s.Equal(models.LinkPrecedenceSecondary, member.LinkPrecedence)
		s.Require().NotNil(member.LinkedID)
		s.Equal(a.ID, *member.LinkedID)
	}
	// CreatedAt is immutable through linkage rewrites.
	s.WithinDuration(c.CreatedAt, cluster[2].CreatedAt, time.Millisecond)
}

func (s *PostgresStoreSuite) TestUpdateLinkageUnknownID() {
	err := s.store.UpdateLinkage(context.Background(), 4242, models.LinkPrecedenceSecondary, nil, time.Now())
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSoftDeletedRowsAreInvisible() {
	ctx := context.Background()

	hidden, err := s.store.Insert(ctx, models.NewContact{
		Email:          strPtr("a@x.com"),
		LinkPrecedence: models.LinkPrecedencePrimary,
	})
	s.Require().NoError(err)
	_, err = s.postgres.Pool.Exec(ctx, "UPDATE contacts SET deleted_at = now() WHERE id = $1", hidden.ID)
	s.Require().NoError(err)

	matched, err := s.store.FindByEmailOrPhone(ctx, strPtr("a@x.com"), nil)
	s.Require().NoError(err)
	s.Empty(matched)

	cluster, err := s.store.FindByIDsOrLinkedIDs(ctx, []int64{hidden.ID})
	s.Require().NoError(err)
	s.Empty(cluster)
}
