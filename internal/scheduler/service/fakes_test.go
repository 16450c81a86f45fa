package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang-algo-trader/internal/entity"
	"golang-algo-trader/internal/scheduler/repository"

	"github.com/shopspring/decimal"
)

type memAlgorithms struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*entity.Algorithm
	claims int
}

func newMemAlgorithms() *memAlgorithms {
	return &memAlgorithms{rows: map[uint]*entity.Algorithm{}}
}

func (m *memAlgorithms) Create(_ context.Context, a *entity.Algorithm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	cp := *a
	m.rows[a.ID] = &cp
	return nil
}

func (m *memAlgorithms) get(id uint) entity.Algorithm {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

func (m *memAlgorithms) FindByID(_ context.Context, id uint) (*entity.Algorithm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrAlgorithmNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAlgorithms) FindAll(_ context.Context, userID uint) ([]entity.Algorithm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Algorithm
	for _, a := range m.rows {
		if userID == 0 || a.UserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memAlgorithms) FindRunnable(_ context.Context) ([]entity.Algorithm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Algorithm
	for _, a := range m.rows {
		if a.Status == entity.AlgorithmStatusActive && a.AutoRun && !a.CurrentlyExecuting {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memAlgorithms) Claim(_ context.Context, id uint, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok || a.CurrentlyExecuting || a.Status != entity.AlgorithmStatusActive {
		return repository.ErrClaimLost
	}
	a.CurrentlyExecuting = true
	a.ExecutionClaimedAt = &at
	m.claims++
	return nil
}

func (m *memAlgorithms) Release(_ context.Context, id uint, lastRunAt, nextRun *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.rows[id]
	a.CurrentlyExecuting = false
	a.ExecutionClaimedAt = nil
	if lastRunAt != nil {
		a.LastRunAt = lastRunAt
	}
	if nextRun != nil {
		a.NextScheduledRun = nextRun
	}
	return nil
}

func (m *memAlgorithms) Stop(_ context.Context, id uint, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.rows[id]
	a.Status = entity.AlgorithmStatusInactive
	a.AutoRun = false
	a.StopReason = reason
	a.CurrentlyExecuting = false
	a.ExecutionClaimedAt = nil
	a.NextScheduledRun = nil
	return nil
}

func (m *memAlgorithms) Activate(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return repository.ErrAlgorithmNotFound
	}
	a.Status = entity.AlgorithmStatusActive
	a.AutoRun = true
	a.StopReason = ""
	a.CurrentlyExecuting = false
	a.ExecutionClaimedAt = nil
	return nil
}

func (m *memAlgorithms) Deactivate(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return repository.ErrAlgorithmNotFound
	}
	a.Status = entity.AlgorithmStatusInactive
	a.AutoRun = false
	a.NextScheduledRun = nil
	return nil
}

func (m *memAlgorithms) ReleaseStaleClaims(_ context.Context, claimedBefore time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, a := range m.rows {
		if a.CurrentlyExecuting && (a.ExecutionClaimedAt == nil || a.ExecutionClaimedAt.Before(claimedBefore)) {
			a.CurrentlyExecuting = false
			a.ExecutionClaimedAt = nil
			n++
		}
	}
	return n, nil
}

type memExecutions struct {
	mu     sync.Mutex
	nextID uint
	rows   []*entity.AlgorithmExecution
}

func (m *memExecutions) Create(_ context.Context, e *entity.AlgorithmExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	cp := *e
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memExecutions) FindByID(_ context.Context, id uint) (*entity.AlgorithmExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.rows {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrAlgorithmNotFound
}

func (m *memExecutions) FindAllByAlgorithmID(_ context.Context, algorithmID uint, limit int) ([]entity.AlgorithmExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.AlgorithmExecution
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].AlgorithmID == algorithmID {
			out = append(out, *m.rows[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memExecutions) Update(_ context.Context, e *entity.AlgorithmExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, row := range m.rows {
		if row.ID == e.ID {
			cp := *e
			m.rows[i] = &cp
		}
	}
	return nil
}

func (m *memExecutions) all() []entity.AlgorithmExecution {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.AlgorithmExecution, 0, len(m.rows))
	for _, e := range m.rows {
		out = append(out, *e)
	}
	return out
}

// staticPrices serves fixed last prices.
type staticPrices map[string]decimal.Decimal

func (p staticPrices) LastPrice(_ context.Context, symbol string) (decimal.NullDecimal, error) {
	price, ok := p[symbol]
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	return decimal.NewNullDecimal(price), nil
}
