package store

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"beacon/internal/directory/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

// directoryStore is the surface every backend must honour identically.
type directoryStore interface {
	Insert(ctx context.Context, contact *models.Contact) error
	FindByPhone(ctx context.Context, phone string) ([]*models.Contact, error)
	ListByRole(ctx context.Context, role models.Role) ([]*models.Contact, error)
	ListAll(ctx context.Context) ([]*models.Contact, error)
	Commit(ctx context.Context, batch []models.Mutation) error
	Ping(ctx context.Context) error
}

// storeContractSuite runs the same behaviour checks against each backend.
// Backends embed it and set newStore in SetupTest.
type storeContractSuite struct {
	suite.Suite
	ctx   context.Context
	store directoryStore
	clock time.Time
}

func (s *storeContractSuite) setup(newStore func() directoryStore) {
	s.ctx = context.Background()
	s.store = newStore()
	s.clock = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *storeContractSuite) contact(name, phone string, roles ...models.Role) *models.Contact {
	s.clock = s.clock.Add(time.Second)
	c, err := models.NewContact(name, phone, roles, s.clock)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Insert(s.ctx, c))
	return c
}

func (s *storeContractSuite) TestFindByPhone() {
	s.Run("returns nothing for unknown phone", func() {
		found, err := s.store.FindByPhone(s.ctx, "+1-none")
		s.Require().NoError(err)
		s.Empty(found)
	})

	s.Run("returns duplicates oldest first", func() {
		first := s.contact("First", "+1DUP", models.RoleSubscriber)
		second := s.contact("Second", "+1DUP", models.RoleStaff)

		found, err := s.store.FindByPhone(s.ctx, "+1DUP")
		s.Require().NoError(err)
		s.Require().Len(found, 2)
		s.Equal(first.ID, found[0].ID)
		s.Equal(second.ID, found[1].ID)
	})
}

func (s *storeContractSuite) TestListByRole() {
	alice := s.contact("Alice", "+1A", models.RoleAdmin)
	bob := s.contact("Bob", "+1B", models.RoleSubscriber)
	carol := s.contact("Carol", "+1C", models.RoleStaff, models.RoleSubscriber)

	admins, err := s.store.ListByRole(s.ctx, models.RoleAdmin)
	s.Require().NoError(err)
	s.ElementsMatch([]id.ContactID{alice.ID}, ids(admins))

	subscribers, err := s.store.ListByRole(s.ctx, models.RoleSubscriber)
	s.Require().NoError(err)
	s.ElementsMatch([]id.ContactID{bob.ID, carol.ID}, ids(subscribers))

	all, err := s.store.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 3)
}

func (s *storeContractSuite) TestCommit() {
	s.Run("update replaces roles and reindexes", func() {
		c := s.contact("Dana", "+1D", models.RoleSubscriber)
		at := s.clock.Add(time.Hour)

		s.Require().NoError(s.store.Commit(s.ctx, []models.Mutation{
			models.UpdateRoles(c.ID, models.Roles{models.RoleStaff}, at),
		}))

		found, err := s.store.FindByPhone(s.ctx, "+1D")
		s.Require().NoError(err)
		s.Require().Len(found, 1)
		s.Equal(models.Roles{models.RoleStaff}, found[0].Roles)
		s.True(found[0].UpdatedAt.Equal(at))

		subscribers, err := s.store.ListByRole(s.ctx, models.RoleSubscriber)
		s.Require().NoError(err)
		s.NotContains(ids(subscribers), c.ID)
	})

	s.Run("delete removes from every index", func() {
		c := s.contact("Eve", "+1E", models.RoleAdmin)

		s.Require().NoError(s.store.Commit(s.ctx, []models.Mutation{models.Delete(c.ID)}))

		found, err := s.store.FindByPhone(s.ctx, "+1E")
		s.Require().NoError(err)
		s.Empty(found)
		admins, err := s.store.ListByRole(s.ctx, models.RoleAdmin)
		s.Require().NoError(err)
		s.NotContains(ids(admins), c.ID)
	})

	s.Run("delete of vanished record is a no-op", func() {
		s.Require().NoError(s.store.Commit(s.ctx, []models.Mutation{models.Delete(id.NewContactID())}))
	})

	s.Run("update of vanished record fails the whole batch", func() {
		keep := s.contact("Finn", "+1F", models.RoleSubscriber)

		err := s.store.Commit(s.ctx, []models.Mutation{
			models.Delete(keep.ID),
			models.UpdateRoles(id.NewContactID(), models.Roles{models.RoleStaff}, s.clock),
		})
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		found, err := s.store.FindByPhone(s.ctx, "+1F")
		s.Require().NoError(err)
		s.Len(found, 1, "delete in a failed batch must not apply")
	})
}

func (s *storeContractSuite) TestConcurrentInsertsSamePhone() {
	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := models.NewContact("Racer", "+1RACE", models.Roles{models.RoleSubscriber}, time.Now())
			if err == nil {
				_ = s.store.Insert(s.ctx, c)
			}
		}()
	}
	wg.Wait()

	found, err := s.store.FindByPhone(s.ctx, "+1RACE")
	s.Require().NoError(err)
	s.Len(found, writers, "stores do not enforce phone uniqueness")
}

func (s *storeContractSuite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}

func ids(contacts []*models.Contact) []id.ContactID {
	out := make([]id.ContactID, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, c.ID)
	}
	return out
}
