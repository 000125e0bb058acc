package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"beacon/internal/directory/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

const (
	// Redis key layout. Each record is a hash; index sets hold record IDs.
	redisKeyPrefix   = "beacon:"
	redisContactKey  = redisKeyPrefix + "contact:"
	redisAllKey      = redisKeyPrefix + "contacts"
	redisPhoneIndex  = redisKeyPrefix + "phone:"
	redisRoleIndex   = redisKeyPrefix + "role:"
	redisRolesSep    = ","
	redisTimeLayout  = time.RFC3339Nano
	redisFieldID     = "id"
	redisFieldName   = "name"
	redisFieldPhone  = "phone_number"
	redisFieldRoles  = "roles"
	redisFieldCreate = "created_at"
	redisFieldUpdate = "updated_at"
)

// RedisStore keeps contacts as Redis hashes with set-based indexes on phone
// and role. Batches run under WATCH on the affected records and commit in a
// single MULTI/EXEC.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed directory store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Insert(ctx context.Context, contact *models.Contact) error {
	if contact == nil {
		return fmt.Errorf("contact is required")
	}
	cid := contact.ID.String()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, contactKey(contact.ID), contactFields(contact))
		pipe.SAdd(ctx, redisAllKey, cid)
		pipe.SAdd(ctx, redisPhoneIndex+contact.PhoneNumber, cid)
		for _, r := range contact.Roles {
			pipe.SAdd(ctx, redisRoleIndex+string(r), cid)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

// FindByPhone returns every record indexed under phone, oldest first.
func (s *RedisStore) FindByPhone(ctx context.Context, phone string) ([]*models.Contact, error) {
	return s.listIndex(ctx, "find contacts by phone", redisPhoneIndex+phone)
}

func (s *RedisStore) ListByRole(ctx context.Context, role models.Role) ([]*models.Contact, error) {
	return s.listIndex(ctx, "list contacts by role", redisRoleIndex+string(role))
}

func (s *RedisStore) ListAll(ctx context.Context) ([]*models.Contact, error) {
	return s.listIndex(ctx, "list contacts", redisAllKey)
}

// Commit applies the batch atomically. Records touched by the batch are
// watched; if one changes before EXEC the batch fails with sentinel.ErrConflict.
func (s *RedisStore) Commit(ctx context.Context, batch []models.Mutation) error {
	if len(batch) == 0 {
		return nil
	}
	keys := make([]string, 0, len(batch))
	for _, m := range batch {
		keys = append(keys, contactKey(m.ContactID))
	}

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current := make([]*models.Contact, len(batch))
		for i, m := range batch {
			fields, err := tx.HGetAll(ctx, contactKey(m.ContactID)).Result()
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				if m.Kind == models.MutationUpdateRoles {
					return fmt.Errorf("update contact %s: %w", m.ContactID, sentinel.ErrNotFound)
				}
				continue
			}
			c, err := contactFromFields(fields)
			if err != nil {
				return err
			}
			current[i] = c
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, m := range batch {
				c := current[i]
				if c == nil {
					continue
				}
				cid := c.ID.String()
				switch m.Kind {
				case models.MutationUpdateRoles:
					for _, r := range c.Roles {
						pipe.SRem(ctx, redisRoleIndex+string(r), cid)
					}
					for _, r := range m.Roles {
						pipe.SAdd(ctx, redisRoleIndex+string(r), cid)
					}
					pipe.HSet(ctx, contactKey(c.ID),
						redisFieldRoles, strings.Join(m.Roles.Strings(), redisRolesSep),
						redisFieldUpdate, m.At.UTC().Format(redisTimeLayout),
					)
				case models.MutationDelete:
					pipe.Del(ctx, contactKey(c.ID))
					pipe.SRem(ctx, redisAllKey, cid)
					pipe.SRem(ctx, redisPhoneIndex+c.PhoneNumber, cid)
					for _, r := range c.Roles {
						pipe.SRem(ctx, redisRoleIndex+string(r), cid)
					}
				default:
					return fmt.Errorf("unknown mutation kind %q", m.Kind)
				}
			}
			return nil
		})
		return err
	}, keys...)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("commit contacts batch: %w", sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("commit contacts batch: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) listIndex(ctx context.Context, op, indexKey string) ([]*models.Contact, error) {
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, raw := range ids {
		cmds[i] = pipe.HGetAll(ctx, redisContactKey+raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]*models.Contact, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		// A record deleted between SMEMBERS and HGETALL reads back empty.
		if len(fields) == 0 {
			continue
		}
		c, err := contactFromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, c)
	}
	models.SortByCreation(out)
	return out, nil
}

func contactKey(contactID id.ContactID) string {
	return redisContactKey + contactID.String()
}

func contactFields(c *models.Contact) map[string]any {
	return map[string]any{
		redisFieldID:     c.ID.String(),
		redisFieldName:   c.Name,
		redisFieldPhone:  c.PhoneNumber,
		redisFieldRoles:  strings.Join(c.Roles.Strings(), redisRolesSep),
		redisFieldCreate: c.CreatedAt.UTC().Format(redisTimeLayout),
		redisFieldUpdate: c.UpdatedAt.UTC().Format(redisTimeLayout),
	}
}

func contactFromFields(fields map[string]string) (*models.Contact, error) {
	u, err := uuid.Parse(fields[redisFieldID])
	if err != nil {
		return nil, fmt.Errorf("parse contact id %q: %w", fields[redisFieldID], err)
	}
	createdAt, err := time.Parse(redisTimeLayout, fields[redisFieldCreate])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	updatedAt, err := time.Parse(redisTimeLayout, fields[redisFieldUpdate])
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &models.Contact{
		ID:          id.ContactID(u),
		Name:        fields[redisFieldName],
		PhoneNumber: fields[redisFieldPhone],
		Roles:       models.RolesFromStrings(strings.Split(fields[redisFieldRoles], redisRolesSep)),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}
