package memory

import (
	"context"
	"sync"

	"github.com/saan/taskflow-agent/internal/domain"
)

type planKey struct {
	user string
	date string
}

type PlanStore struct {
	mu   sync.Mutex
	byKey map[planKey]*domain.DailyPlan
}

func NewPlanStore() *PlanStore {
	return &PlanStore{byKey: make(map[planKey]*domain.DailyPlan)}
}

func (s *PlanStore) Replace(ctx context.Context, plan *domain.DailyPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *plan
	s.byKey[planKey{plan.User, plan.Date}] = &cp
	return nil
}

func (s *PlanStore) Get(ctx context.Context, user, date string) (*domain.DailyPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byKey[planKey{user, date}]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, domain.ErrPlanNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *PlanStore) Save(ctx context.Context, plan *domain.DailyPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *plan
	s.byKey[planKey{plan.User, plan.Date}] = &cp
	return nil
}

func (s *PlanStore) ListActiveForDate(ctx context.Context, date string) ([]*domain.DailyPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.DailyPlan
	for k, p := range s.byKey {
		if k.date == date && p.Status == domain.PlanStatusActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}
