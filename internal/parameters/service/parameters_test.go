package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"staybid/internal/parameters/validator"
	"staybid/pkg/config"
	apperrors "staybid/pkg/errors"
	"staybid/pkg/logger"
	"staybid/pkg/model"
)

type mockParameterRepository struct {
	findAllFunc func(ctx context.Context) ([]model.ParameterEntry, error)
	upsertFunc  func(ctx context.Context, entry *model.ParameterEntry) error
}

func (m *mockParameterRepository) FindAll(ctx context.Context) ([]model.ParameterEntry, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx)
	}
	return nil, nil
}

func (m *mockParameterRepository) FindByName(ctx context.Context, name string) (*model.ParameterEntry, error) {
	return nil, nil
}

func (m *mockParameterRepository) Upsert(ctx context.Context, entry *model.ParameterEntry) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, entry)
	}
	return nil
}

func newTestService(repo *mockParameterRepository, ttl time.Duration) *parameterService {
	cfg := &config.Config{
		Log:                logger.Discard(),
		ParametersCacheTTL: ttl,
	}
	return NewParameterService(repo, validator.NewParameterValidator(), cfg).(*parameterService)
}

func TestGetParameters_AppliesStoredValues(t *testing.T) {
	repo := &mockParameterRepository{
		findAllFunc: func(ctx context.Context) ([]model.ParameterEntry, error) {
			return []model.ParameterEntry{
				{Name: model.ParamDurationDays, Value: "3"},
				{Name: model.ParamStartPriceFactor, Value: "0.8"},
				{Name: model.ParamServiceFeeFactor, Value: "0.1"},
			}, nil
		},
	}
	svc := newTestService(repo, time.Minute)

	p, err := svc.GetParameters(context.Background())
	if err != nil {
		t.Fatalf("GetParameters() error = %v", err)
	}
	if p.DurationDays != 3 || p.StartPriceFactor != 0.8 || p.ServiceFeeFactor != 0.1 {
		t.Errorf("stored values not applied: %+v", p)
	}
	if p.BidIncrementFactor != 0.05 || p.PaymentDeadlineMinutes != 30 {
		t.Errorf("missing values should keep defaults: %+v", p)
	}
}

func TestGetParameters_MalformedFallsBackToDefault(t *testing.T) {
	repo := &mockParameterRepository{
		findAllFunc: func(ctx context.Context) ([]model.ParameterEntry, error) {
			return []model.ParameterEntry{
				{Name: model.ParamDurationDays, Value: "five"},
				{Name: model.ParamBidIncrementFactor, Value: "-1"},
				{Name: "Unrelated", Value: "x"},
			}, nil
		},
	}
	svc := newTestService(repo, 0)

	p, err := svc.GetParameters(context.Background())
	if err != nil {
		t.Fatalf("GetParameters() error = %v", err)
	}
	if p != model.DefaultParameters() {
		t.Errorf("GetParameters() = %+v, want defaults", p)
	}
}

func TestGetParameters_CachesWithinTTL(t *testing.T) {
	var loads int32
	repo := &mockParameterRepository{
		findAllFunc: func(ctx context.Context) ([]model.ParameterEntry, error) {
			atomic.AddInt32(&loads, 1)
			return nil, nil
		},
	}
	svc := newTestService(repo, 5*time.Second)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := svc.GetParameters(context.Background()); err != nil {
			t.Fatalf("GetParameters() error = %v", err)
		}
	}
	if got := atomic.LoadInt32(&loads); got != 1 {
		t.Errorf("store loaded %d times within TTL, want 1", got)
	}

	now = now.Add(6 * time.Second)
	if _, err := svc.GetParameters(context.Background()); err != nil {
		t.Fatalf("GetParameters() error = %v", err)
	}
	if got := atomic.LoadInt32(&loads); got != 2 {
		t.Errorf("store loaded %d times after TTL, want 2", got)
	}
}

func TestGetParameters_ZeroTTLDisablesCache(t *testing.T) {
	var loads int32
	repo := &mockParameterRepository{
		findAllFunc: func(ctx context.Context) ([]model.ParameterEntry, error) {
			atomic.AddInt32(&loads, 1)
			return nil, nil
		},
	}
	svc := newTestService(repo, 0)

	for i := 0; i < 3; i++ {
		_, _ = svc.GetParameters(context.Background())
	}
	if got := atomic.LoadInt32(&loads); got != 3 {
		t.Errorf("store loaded %d times, want 3", got)
	}
}

func TestGetParameters_CollapsesConcurrentMisses(t *testing.T) {
	var loads int32
	release := make(chan struct{})
	repo := &mockParameterRepository{
		findAllFunc: func(ctx context.Context) ([]model.ParameterEntry, error) {
			atomic.AddInt32(&loads, 1)
			<-release
			return nil, nil
		},
	}
	svc := newTestService(repo, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.GetParameters(context.Background()); err != nil {
				t.Errorf("GetParameters() error = %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&loads); got != 1 {
		t.Errorf("store loaded %d times, want 1", got)
	}
}

func TestGetParameters_StoreFailure(t *testing.T) {
	fail := false
	repo := &mockParameterRepository{
		findAllFunc: func(ctx context.Context) ([]model.ParameterEntry, error) {
			if fail {
				return nil, errors.New("connection refused")
			}
			return []model.ParameterEntry{{Name: model.ParamDurationDays, Value: "9"}}, nil
		},
	}
	svc := newTestService(repo, 0)

	fail = true
	if _, err := svc.GetParameters(context.Background()); !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Errorf("GetParameters() error = %v, want unavailable", err)
	}

	fail = false
	if _, err := svc.GetParameters(context.Background()); err != nil {
		t.Fatalf("GetParameters() error = %v", err)
	}

	fail = true
	p, err := svc.GetParameters(context.Background())
	if err != nil {
		t.Fatalf("stale snapshot should be served, got %v", err)
	}
	if p.DurationDays != 9 {
		t.Errorf("DurationDays = %d, want stale value 9", p.DurationDays)
	}
}

func TestUpdateParameter(t *testing.T) {
	var stored *model.ParameterEntry
	value := "5"
	repo := &mockParameterRepository{
		findAllFunc: func(ctx context.Context) ([]model.ParameterEntry, error) {
			return []model.ParameterEntry{{Name: model.ParamDurationDays, Value: value}}, nil
		},
		upsertFunc: func(ctx context.Context, entry *model.ParameterEntry) error {
			stored = entry
			value = entry.Value
			return nil
		},
	}
	svc := newTestService(repo, time.Hour)

	if p, _ := svc.GetParameters(context.Background()); p.DurationDays != 5 {
		t.Fatalf("DurationDays = %d, want 5", p.DurationDays)
	}

	entry, err := svc.UpdateParameter(context.Background(), model.ParamDurationDays, "7")
	if err != nil {
		t.Fatalf("UpdateParameter() error = %v", err)
	}
	if stored == nil || stored.Value != "7" || entry.Description == "" {
		t.Errorf("unexpected stored entry: %+v", stored)
	}

	p, _ := svc.GetParameters(context.Background())
	if p.DurationDays != 7 {
		t.Errorf("cache not invalidated: DurationDays = %d, want 7", p.DurationDays)
	}
}

func TestUpdateParameter_Rejections(t *testing.T) {
	svc := newTestService(&mockParameterRepository{
		upsertFunc: func(ctx context.Context, entry *model.ParameterEntry) error {
			t.Errorf("rejected update reached the store: %+v", entry)
			return nil
		},
	}, 0)

	tests := []struct {
		name     string
		param    string
		value    string
		wantCode string
	}{
		{"unknown name", "MaxGuests", "3", apperrors.CodeNotFound},
		{"empty value", model.ParamDurationDays, "", apperrors.CodeValidation},
		{"out of range", model.ParamPaymentDeadline, "0", apperrors.CodeValidation},
		{"not numeric", model.ParamStartPriceFactor, "high", apperrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateParameter(context.Background(), tt.param, tt.value)
			if !apperrors.IsCode(err, tt.wantCode) {
				t.Errorf("UpdateParameter() error = %v, want %s", err, tt.wantCode)
			}
		})
	}
}

func TestListParameters_FillsDefaults(t *testing.T) {
	svc := newTestService(&mockParameterRepository{
		findAllFunc: func(ctx context.Context) ([]model.ParameterEntry, error) {
			return []model.ParameterEntry{{Name: model.ParamDurationDays, Value: "4"}}, nil
		},
	}, 0)

	entries, err := svc.ListParameters(context.Background())
	if err != nil {
		t.Fatalf("ListParameters() error = %v", err)
	}
	if len(entries) != len(model.DefaultParameterEntries()) {
		t.Fatalf("ListParameters() returned %d entries, want %d", len(entries), len(model.DefaultParameterEntries()))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Name > entries[i].Name {
			t.Error("entries should be sorted by name")
		}
	}
	for _, e := range entries {
		if e.Name == model.ParamDurationDays && e.Value != "4" {
			t.Errorf("stored value replaced by default: %+v", e)
		}
	}
}
