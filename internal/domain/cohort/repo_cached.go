package cohort

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/ehrcore/internal/platform/cache"
)

type cachedRepo struct {
	Repository
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedRepo puts a read-through cache in front of GetByID and GetByUUID.
// Saves and deletes evict the cohort's entries. Cache failures are logged
// and fall back to inner.
func NewCachedRepo(inner Repository, c cache.Cache, ttl time.Duration, logger zerolog.Logger) Repository {
	return &cachedRepo{Repository: inner, cache: c, ttl: ttl, logger: logger}
}

func idKey(id int) string       { return "cohort:id:" + strconv.Itoa(id) }
func uuidKey(uid string) string { return "cohort:uuid:" + uid }

func (r *cachedRepo) GetByID(ctx context.Context, id int) (*Cohort, error) {
	return r.readThrough(ctx, idKey(id), func() (*Cohort, error) { return r.Repository.GetByID(ctx, id) })
}

func (r *cachedRepo) GetByUUID(ctx context.Context, uid string) (*Cohort, error) {
	return r.readThrough(ctx, uuidKey(uid), func() (*Cohort, error) { return r.Repository.GetByUUID(ctx, uid) })
}

func (r *cachedRepo) Save(ctx context.Context, c *Cohort) (*Cohort, error) {
	saved, err := r.Repository.Save(ctx, c)
	if err != nil {
		return nil, err
	}
	r.evict(ctx, saved)
	return saved, nil
}

func (r *cachedRepo) Delete(ctx context.Context, c *Cohort) (*Cohort, error) {
	deleted, err := r.Repository.Delete(ctx, c)
	if err != nil {
		return nil, err
	}
	r.evict(ctx, deleted)
	return deleted, nil
}

func (r *cachedRepo) readThrough(ctx context.Context, key string, load func() (*Cohort, error)) (*Cohort, error) {
	var cached Cohort
	err := r.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		r.logger.Warn().Err(err).Str("key", key).Msg("cohort cache read failed")
	}

	c, err := load()
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, key, c, r.ttl); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("cohort cache write failed")
	}
	return c, nil
}

func (r *cachedRepo) evict(ctx context.Context, c *Cohort) {
	keys := []string{uuidKey(c.UUID)}
	if c.ID != nil {
		keys = append(keys, idKey(*c.ID))
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.Warn().Err(err).Strs("keys", keys).Msg("cohort cache eviction failed")
	}
}
