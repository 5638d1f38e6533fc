package repo

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Skryldev/proofing-amp/db"
	"github.com/Skryldev/proofing-amp/models"
)

// RedisUserRepo keeps one context's documents as extended JSON strings under
// "<prefix>:<id>".
type RedisUserRepo struct {
	client redis.UniversalClient
	prefix string
	ns     Namespace
	schema *models.Schema
	errMap db.ErrorMapper
}

// NewRedisUserRepo returns a store using ns.Database as key prefix.
func NewRedisUserRepo(client redis.UniversalClient, ns Namespace, schema *models.Schema) (*RedisUserRepo, error) {
	if ns.Database == "" {
		return nil, fmt.Errorf("repo/redis: key prefix is required")
	}
	return &RedisUserRepo{
		client: client,
		prefix: ns.Database,
		ns:     ns,
		schema: schema,
		errMap: db.DefaultErrorMapper(),
	}, nil
}

func (r *RedisUserRepo) key(id string) string { return r.prefix + ":" + id }

// GetByID loads and validates the document stored under id.
func (r *RedisUserRepo) GetByID(ctx context.Context, id string) (models.Record, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		mapped := r.errMap.Map(err)
		if db.IsNotFound(mapped) {
			return nil, notFound(r.ns, id, err)
		}
		return nil, fmt.Errorf("repo/redis: get %q: %w", id, mapped)
	}
	rec, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}
	return validate(r.schema, rec)
}

// Save replaces the document stored under id. Documents never expire.
func (r *RedisUserRepo) Save(ctx context.Context, id string, rec models.Record) error {
	data, err := encodeDocument(rec)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(id), data, 0).Err(); err != nil {
		return fmt.Errorf("repo/redis: save %q: %w", id, r.errMap.Map(err))
	}
	return nil
}

// Delete removes the document stored under id.
func (r *RedisUserRepo) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("repo/redis: delete %q: %w", id, r.errMap.Map(err))
	}
	if n == 0 {
		return notFound(r.ns, id, nil)
	}
	return nil
}

var _ Store = (*RedisUserRepo)(nil)
