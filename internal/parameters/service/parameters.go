package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	parameterserrors "staybid/internal/parameters/errors"
	"staybid/internal/parameters/repository"
	"staybid/internal/parameters/validator"
	"staybid/pkg/config"
	apperrors "staybid/pkg/errors"
	"staybid/pkg/model"

	"golang.org/x/sync/singleflight"
)

const snapshotKey = "parameters"

type ParameterService interface {
	GetParameters(ctx context.Context) (model.Parameters, error)
	GetPaymentDeadline(ctx context.Context) (time.Duration, error)
	ListParameters(ctx context.Context) ([]model.ParameterEntry, error)
	UpdateParameter(ctx context.Context, name, value string) (*model.ParameterEntry, error)
	Invalidate()
}

type parameterService struct {
	repo      repository.ParameterRepository
	validator *validator.ParameterValidator
	cfg       *config.Config
	now       func() time.Time

	group    singleflight.Group
	mu       sync.RWMutex
	snapshot *model.Parameters
	loadedAt time.Time
}

func NewParameterService(
	repo repository.ParameterRepository,
	validator *validator.ParameterValidator,
	cfg *config.Config,
) ParameterService {
	return &parameterService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

// GetParameters returns a snapshot of the tunables. Missing or malformed
// entries fall back to their defaults. When the store is unreachable the last
// snapshot is served if there is one.
func (s *parameterService) GetParameters(ctx context.Context) (model.Parameters, error) {
	if p, ok := s.cached(); ok {
		return p, nil
	}

	v, err, _ := s.group.Do(snapshotKey, func() (any, error) {
		if p, ok := s.cached(); ok {
			return p, nil
		}
		entries, err := s.repo.FindAll(ctx)
		if err != nil {
			return nil, err
		}
		p := s.build(entries)
		s.store(p)
		return p, nil
	})
	if err != nil {
		s.mu.RLock()
		stale := s.snapshot
		s.mu.RUnlock()
		if stale != nil {
			s.cfg.Log.Warn("Parameter store unavailable, serving last snapshot", "error", err)
			return *stale, nil
		}
		s.cfg.Log.Error("Failed to load parameters", "error", err)
		return model.Parameters{}, apperrors.Unavailable("parameter store")
	}
	return v.(model.Parameters), nil
}

func (s *parameterService) cached() (model.Parameters, bool) {
	ttl := s.cfg.ParametersCacheTTL
	if ttl <= 0 {
		return model.Parameters{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil || s.now().Sub(s.loadedAt) >= ttl {
		return model.Parameters{}, false
	}
	return *s.snapshot, true
}

func (s *parameterService) store(p model.Parameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = &p
	s.loadedAt = s.now()
}

func (s *parameterService) build(entries []model.ParameterEntry) model.Parameters {
	p := model.DefaultParameters()
	seen := make(map[string]bool, len(entries))

	for _, entry := range entries {
		n, err := validator.Parse(entry.Name, entry.Value)
		if err != nil {
			if !errors.Is(err, parameterserrors.ErrUnknownParameter) {
				s.cfg.Log.Warn("Ignoring malformed parameter, using default",
					"name", entry.Name,
					"value", entry.Value,
					"error", err,
				)
			}
			continue
		}
		apply(&p, entry.Name, n)
		seen[entry.Name] = true
	}

	for name := range validator.Rules {
		if !seen[name] {
			s.cfg.Log.Warn("Parameter not stored, using default", "name", name)
		}
	}
	return p
}

func apply(p *model.Parameters, name string, n float64) {
	switch name {
	case model.ParamLeadTimeDays:
		p.LeadTimeDays = int(n)
	case model.ParamDurationDays:
		p.DurationDays = int(n)
	case model.ParamStartPriceFactor:
		p.StartPriceFactor = n
	case model.ParamBidIncrementFactor:
		p.BidIncrementFactor = n
	case model.ParamServiceFeeFactor:
		p.ServiceFeeFactor = n
	case model.ParamPaymentDeadline:
		p.PaymentDeadlineMinutes = int(n)
	case model.ParamPriceRoundingStep:
		p.PriceRoundingStep = int64(n)
	case model.ParamMinBidIncrement:
		p.MinBidIncrement = int64(n)
	}
}

func (s *parameterService) GetPaymentDeadline(ctx context.Context) (time.Duration, error) {
	p, err := s.GetParameters(ctx)
	if err != nil {
		return 0, err
	}
	return p.PaymentDeadline(), nil
}

// ListParameters returns every known parameter, filling the ones the store
// lacks with their defaults.
func (s *parameterService) ListParameters(ctx context.Context) ([]model.ParameterEntry, error) {
	entries, err := s.repo.FindAll(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list parameters", "error", err)
		return nil, apperrors.Internal("Failed to list parameters", err)
	}

	byName := make(map[string]model.ParameterEntry, len(entries))
	for _, entry := range entries {
		byName[entry.Name] = entry
	}
	for _, def := range model.DefaultParameterEntries() {
		if _, ok := byName[def.Name]; !ok {
			byName[def.Name] = def
		}
	}

	result := make([]model.ParameterEntry, 0, len(byName))
	for _, entry := range byName {
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *parameterService) UpdateParameter(ctx context.Context, name, value string) (*model.ParameterEntry, error) {
	if err := s.validator.ValidateRequest(&validator.UpdateRequest{Value: value}); err != nil {
		return nil, apperrors.Validation("Parameter validation failed", map[string]any{"error": err.Error()})
	}

	if _, err := validator.Parse(name, value); err != nil {
		if errors.Is(err, parameterserrors.ErrUnknownParameter) {
			return nil, apperrors.NotFoundWithID("Parameter", name)
		}
		return nil, apperrors.Validation("Parameter validation failed", map[string]any{
			"name":  name,
			"error": err.Error(),
		})
	}

	entry := &model.ParameterEntry{Name: name, Value: value}
	for _, def := range model.DefaultParameterEntries() {
		if def.Name == name {
			entry.Description = def.Description
		}
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		s.cfg.Log.Error("Failed to update parameter", "name", name, "error", err)
		return nil, apperrors.Internal(fmt.Sprintf("Failed to update parameter %s", name), err)
	}

	s.Invalidate()
	s.cfg.Log.Info("Parameter updated", "name", name, "value", value)
	return entry, nil
}

// Invalidate drops the cached snapshot so the next read goes to the store.
func (s *parameterService) Invalidate() {
	s.mu.Lock()
	s.loadedAt = time.Time{}
	s.mu.Unlock()
	s.group.Forget(snapshotKey)
}
