package units

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	unitserrors "staybid/internal/units/errors"
	apperrors "staybid/pkg/errors"
	"staybid/pkg/logger"
	"staybid/pkg/model"

	lru "github.com/hashicorp/golang-lru"
)

// Catalog resolves rentable units. Unknown units fail with NotFound.
type Catalog interface {
	FindByUID(ctx context.Context, uid string) (*model.Unit, error)
	FindByID(ctx context.Context, id int64) (*model.Unit, error)
}

// Source is a catalog backend. It reports unknown units with
// unitserrors.ErrNotFound.
type Source interface {
	UnitByUID(ctx context.Context, uid string) (*model.Unit, error)
	UnitByID(ctx context.Context, id int64) (*model.Unit, error)
}

type cachedUnit struct {
	unit      model.Unit
	expiresAt time.Time
}

type cachedCatalog struct {
	source Source
	cache  *lru.Cache
	ttl    time.Duration
	log    *logger.Logger
	now    func() time.Time
}

// NewCachedCatalog fronts source with an LRU of size entries, each kept for ttl.
func NewCachedCatalog(source Source, size int, ttl time.Duration, log *logger.Logger) (Catalog, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create unit cache: %w", err)
	}
	return &cachedCatalog{
		source: source,
		cache:  cache,
		ttl:    ttl,
		log:    log,
		now:    time.Now,
	}, nil
}

func (c *cachedCatalog) FindByUID(ctx context.Context, uid string) (*model.Unit, error) {
	if uid == "" {
		return nil, apperrors.InvalidInput("unit uid is required")
	}
	return c.find(ctx, "uid:"+uid, uid, func(ctx context.Context) (*model.Unit, error) {
		return c.source.UnitByUID(ctx, uid)
	})
}

func (c *cachedCatalog) FindByID(ctx context.Context, id int64) (*model.Unit, error) {
	ref := strconv.FormatInt(id, 10)
	return c.find(ctx, "id:"+ref, ref, func(ctx context.Context) (*model.Unit, error) {
		return c.source.UnitByID(ctx, id)
	})
}

func (c *cachedCatalog) find(ctx context.Context, key, ref string, load func(context.Context) (*model.Unit, error)) (*model.Unit, error) {
	if v, ok := c.cache.Get(key); ok {
		entry := v.(cachedUnit)
		if c.now().Before(entry.expiresAt) {
			unit := entry.unit
			return &unit, nil
		}
		c.cache.Remove(key)
	}

	unit, err := load(ctx)
	if err != nil {
		if errors.Is(err, unitserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Unit", ref)
		}
		c.log.Error("Failed to load unit from catalog", "ref", ref, "error", err)
		return nil, apperrors.Unavailable("unit catalog")
	}

	entry := cachedUnit{unit: *unit, expiresAt: c.now().Add(c.ttl)}
	c.cache.Add("uid:"+unit.UID, entry)
	c.cache.Add("id:"+strconv.FormatInt(unit.ID, 10), entry)
	return unit, nil
}
