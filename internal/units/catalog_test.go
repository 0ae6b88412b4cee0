package units

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	unitserrors "staybid/internal/units/errors"
	apperrors "staybid/pkg/errors"
	"staybid/pkg/logger"
	"staybid/pkg/model"
)

type mockSource struct {
	calls  int
	units  map[string]model.Unit
	failed error
}

func (m *mockSource) UnitByUID(ctx context.Context, uid string) (*model.Unit, error) {
	m.calls++
	if m.failed != nil {
		return nil, m.failed
	}
	u, ok := m.units[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", unitserrors.ErrNotFound, uid)
	}
	return &u, nil
}

func (m *mockSource) UnitByID(ctx context.Context, id int64) (*model.Unit, error) {
	m.calls++
	for _, u := range m.units {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, unitserrors.ErrNotFound
}

func newTestCatalog(t *testing.T, src *mockSource, ttl time.Duration) *cachedCatalog {
	t.Helper()
	c, err := NewCachedCatalog(src, 16, ttl, logger.Discard())
	if err != nil {
		t.Fatalf("NewCachedCatalog() error = %v", err)
	}
	return c.(*cachedCatalog)
}

func TestCachedCatalog_HitsCache(t *testing.T) {
	src := &mockSource{units: map[string]model.Unit{
		"villa-1": {ID: 1, UID: "villa-1", BasePrice: 1_000_000, Currency: "VND"},
	}}
	c := newTestCatalog(t, src, time.Minute)

	for i := 0; i < 3; i++ {
		u, err := c.FindByUID(context.Background(), "villa-1")
		if err != nil {
			t.Fatalf("FindByUID() error = %v", err)
		}
		if u.BasePrice != 1_000_000 {
			t.Errorf("BasePrice = %d", u.BasePrice)
		}
	}
	if _, err := c.FindByID(context.Background(), 1); err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if src.calls != 1 {
		t.Errorf("source called %d times, want 1", src.calls)
	}
}

func TestCachedCatalog_ExpiresEntries(t *testing.T) {
	src := &mockSource{units: map[string]model.Unit{"villa-1": {ID: 1, UID: "villa-1"}}}
	c := newTestCatalog(t, src, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	_, _ = c.FindByUID(context.Background(), "villa-1")
	now = now.Add(2 * time.Minute)
	_, _ = c.FindByUID(context.Background(), "villa-1")

	if src.calls != 2 {
		t.Errorf("source called %d times, want 2", src.calls)
	}
}

func TestCachedCatalog_Errors(t *testing.T) {
	src := &mockSource{units: map[string]model.Unit{}}
	c := newTestCatalog(t, src, time.Minute)

	if _, err := c.FindByUID(context.Background(), "missing"); !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Errorf("FindByUID() error = %v, want NotFound", err)
	}
	if _, err := c.FindByUID(context.Background(), ""); !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("FindByUID(\"\") error = %v, want InvalidInput", err)
	}

	src.failed = errors.New("dial tcp: connection refused")
	if _, err := c.FindByUID(context.Background(), "villa-2"); !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Errorf("FindByUID() error = %v, want Unavailable", err)
	}
}
