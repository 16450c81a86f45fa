// Package repotest provides in-memory repositories for service tests.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang-algo-trader/internal/entity"
	"golang-algo-trader/internal/executor/repository"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Store holds every table in memory. The zero value is not usable, call New.
type Store struct {
	mu sync.Mutex

	nextID uint

	Assets       map[uint]*entity.Asset
	Portfolios   map[uint]*entity.Portfolio
	Holdings     map[[2]uint]*entity.Holding
	Transactions []entity.Transaction
	Signals      map[uint]*entity.Signal
	Orders       map[uint]*entity.ExecutionOrder
	Queue        map[uint]*entity.QueuedOrder
	Performance  map[string]*entity.AlgorithmPerformance
	Connections  []entity.BrokerConnection

	// Now stamps created_at on queued orders.
	Now func() time.Time
}

func New() *Store {
	return &Store{
		Assets:      map[uint]*entity.Asset{},
		Portfolios:  map[uint]*entity.Portfolio{},
		Holdings:    map[[2]uint]*entity.Holding{},
		Signals:     map[uint]*entity.Signal{},
		Orders:      map[uint]*entity.ExecutionOrder{},
		Queue:       map[uint]*entity.QueuedOrder{},
		Performance: map[string]*entity.AlgorithmPerformance{},
		Now:         time.Now,
	}
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

// AddAsset inserts an asset and returns it.
func (s *Store) AddAsset(symbol, region string, price decimal.NullDecimal) *entity.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &entity.Asset{ID: s.id(), Symbol: symbol, Name: symbol, Region: region, CurrentPrice: price, IsActive: true}
	s.Assets[a.ID] = a
	return a
}

// AddPortfolio inserts a default portfolio with the given cash.
func (s *Store) AddPortfolio(userID uint, tradingMode, region string, cash decimal.Decimal) *entity.Portfolio {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &entity.Portfolio{ID: s.id(), UserID: userID, Name: "default", TradingMode: tradingMode, Region: region, CashBalance: cash, IsDefault: true}
	s.Portfolios[p.ID] = p
	return p
}

// AddHolding sets a holding quantity.
func (s *Store) AddHolding(portfolioID uint, asset *entity.Asset, qty, avgCost decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Holdings[[2]uint{portfolioID, asset.ID}] = &entity.Holding{
		ID: s.id(), PortfolioID: portfolioID, AssetID: asset.ID, Symbol: asset.Symbol, Quantity: qty, AverageCost: avgCost,
	}
}

// Connect records an active broker connection.
func (s *Store) Connect(userID uint, broker string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Connections = append(s.Connections, entity.BrokerConnection{ID: s.id(), UserID: userID, Broker: broker, IsActive: true})
}

// Cash returns the current cash balance of a portfolio.
func (s *Store) Cash(portfolioID uint) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Portfolios[portfolioID].CashBalance
}

// HeldQuantity returns the held quantity of an asset, zero when absent.
func (s *Store) HeldQuantity(portfolioID, assetID uint) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.Holdings[[2]uint{portfolioID, assetID}]; ok {
		return h.Quantity
	}
	return decimal.Zero
}

// AllSignals returns signals in insertion order.
func (s *Store) AllSignals() []entity.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Signal, 0, len(s.Signals))
	for _, sig := range s.Signals {
		out = append(out, *sig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllQueued returns queued orders in insertion order.
func (s *Store) AllQueued() []entity.QueuedOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.QueuedOrder, 0, len(s.Queue))
	for _, q := range s.Queue {
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) AssetRepository() repository.AssetRepository { return assetRepo{s} }
func (s *Store) PortfolioRepository() repository.PortfolioRepository {
	return portfolioRepo{s}
}
func (s *Store) SignalRepository() repository.SignalRepository { return signalRepo{s} }
func (s *Store) ExecutionOrderRepository() repository.ExecutionOrderRepository {
	return orderRepo{s}
}
func (s *Store) QueuedOrderRepository() repository.QueuedOrderRepository { return queueRepo{s} }
func (s *Store) PerformanceRepository() repository.PerformanceRepository {
	return performanceRepo{s}
}
func (s *Store) BrokerConnectionRepository() repository.BrokerConnectionRepository {
	return connectionRepo{s}
}

type assetRepo struct{ s *Store }

func (r assetRepo) FindBySymbol(_ context.Context, symbol, region string) (*entity.Asset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.Assets {
		if a.Symbol == symbol && a.Region == region {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s (%s)", repository.ErrAssetNotFound, symbol, region)
}

func (r assetRepo) FindBySymbols(ctx context.Context, symbols []string, region string) ([]entity.Asset, error) {
	var out []entity.Asset
	for _, sym := range symbols {
		if a, err := r.FindBySymbol(ctx, sym, region); err == nil {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r assetRepo) FindActiveByRegion(_ context.Context, region string) ([]entity.Asset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.Asset
	for _, a := range r.s.Assets {
		if a.Region == region && a.IsActive {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (r assetRepo) UpdatePrice(_ context.Context, symbol, region string, price decimal.Decimal, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.Assets {
		if a.Symbol == symbol && a.Region == region {
			a.CurrentPrice = decimal.NewNullDecimal(price)
			a.PriceUpdatedAt = &at
		}
	}
	return nil
}

type portfolioRepo struct{ s *Store }

func (r portfolioRepo) FindByID(_ context.Context, id uint) (*entity.Portfolio, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.Portfolios[id]
	if !ok {
		return nil, repository.ErrPortfolioNotFound
	}
	cp := *p
	return &cp, nil
}

func (r portfolioRepo) FindDefault(_ context.Context, userID uint, tradingMode, region string) (*entity.Portfolio, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *entity.Portfolio
	for _, p := range r.s.Portfolios {
		if p.UserID != userID || p.TradingMode != tradingMode || p.Region != region {
			continue
		}
		if found == nil || (p.IsDefault && !found.IsDefault) || (p.IsDefault == found.IsDefault && p.ID < found.ID) {
			found = p
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: user %d %s/%s", repository.ErrPortfolioNotFound, userID, tradingMode, region)
	}
	cp := *found
	return &cp, nil
}

func (r portfolioRepo) HoldingQuantity(_ context.Context, portfolioID, assetID uint) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if h, ok := r.s.Holdings[[2]uint{portfolioID, assetID}]; ok {
		return h.Quantity, nil
	}
	return decimal.Zero, nil
}

func (r portfolioRepo) Holdings(_ context.Context, portfolioID uint) ([]entity.Holding, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.Holding
	for k, h := range r.s.Holdings {
		if k[0] == portfolioID && h.Quantity.IsPositive() {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (r portfolioRepo) ApplyFill(_ context.Context, fill repository.Fill) (*entity.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.Portfolios[fill.PortfolioID]
	if !ok {
		return nil, repository.ErrPortfolioNotFound
	}
	key := [2]uint{fill.PortfolioID, fill.AssetID}
	h, exists := r.s.Holdings[key]
	amount := fill.Amount()

	switch fill.Side {
	case entity.SideBuy:
		if p.CashBalance.LessThan(amount) {
			return nil, repository.ErrInsufficientCash
		}
		p.CashBalance = p.CashBalance.Sub(amount)
		if exists {
			newQty := h.Quantity.Add(fill.Quantity)
			h.AverageCost = h.Quantity.Mul(h.AverageCost).Add(amount).Div(newQty)
			h.Quantity = newQty
		} else {
			r.s.Holdings[key] = &entity.Holding{
				ID: r.s.id(), PortfolioID: fill.PortfolioID, AssetID: fill.AssetID, Symbol: fill.Symbol,
				Quantity: fill.Quantity, AverageCost: fill.Price,
			}
		}
	case entity.SideSell:
		if !exists || h.Quantity.LessThan(fill.Quantity) {
			return nil, repository.ErrInsufficientHoldings
		}
		p.CashBalance = p.CashBalance.Add(amount)
		h.Quantity = h.Quantity.Sub(fill.Quantity)
	default:
		return nil, fmt.Errorf("invalid side %q", fill.Side)
	}

	txn := entity.Transaction{
		ID: r.s.id(), PortfolioID: fill.PortfolioID, AssetID: fill.AssetID, ExecutionOrderID: fill.ExecutionOrderID,
		Side: fill.Side, Quantity: fill.Quantity, Price: fill.Price, Amount: amount,
		Broker: fill.Broker, BrokerOrderID: fill.BrokerOrderID, ExecutedAt: fill.ExecutedAt,
	}
	r.s.Transactions = append(r.s.Transactions, txn)
	return &txn, nil
}

type signalRepo struct{ s *Store }

func (r signalRepo) Create(_ context.Context, signal *entity.Signal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	signal.ID = r.s.id()
	cp := *signal
	r.s.Signals[signal.ID] = &cp
	return nil
}

func (r signalRepo) Update(_ context.Context, signal *entity.Signal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *signal
	r.s.Signals[signal.ID] = &cp
	return nil
}

func (r signalRepo) FindByID(_ context.Context, id uint) (*entity.Signal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sig, ok := r.s.Signals[id]
	if !ok {
		return nil, fmt.Errorf("signal %d not found", id)
	}
	cp := *sig
	return &cp, nil
}

func (r signalRepo) FindByAlgorithmID(_ context.Context, algorithmID uint, limit int) ([]entity.Signal, error) {
	var out []entity.Signal
	for _, sig := range r.s.AllSignals() {
		if sig.AlgorithmID == algorithmID {
			out = append(out, sig)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type orderRepo struct{ s *Store }

func (r orderRepo) Create(_ context.Context, order *entity.ExecutionOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	order.ID = r.s.id()
	cp := *order
	r.s.Orders[order.ID] = &cp
	return nil
}

func (r orderRepo) Update(_ context.Context, order *entity.ExecutionOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *order
	r.s.Orders[order.ID] = &cp
	return nil
}

func (r orderRepo) FindByID(_ context.Context, id uint) (*entity.ExecutionOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.Orders[id]
	if !ok {
		return nil, fmt.Errorf("execution order %d not found", id)
	}
	cp := *o
	return &cp, nil
}

func (r orderRepo) FindByIDs(_ context.Context, ids []uint) ([]entity.ExecutionOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.ExecutionOrder
	for _, id := range ids {
		if o, ok := r.s.Orders[id]; ok {
			out = append(out, *o)
		}
	}
	return out, nil
}

type queueRepo struct{ s *Store }

func (r queueRepo) Create(_ context.Context, order *entity.QueuedOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	order.ID = r.s.id()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = r.s.Now()
	}
	order.UpdatedAt = r.s.Now()
	cp := *order
	r.s.Queue[order.ID] = &cp
	return nil
}

func (r queueRepo) FindByID(_ context.Context, id uint) (*entity.QueuedOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.Queue[id]
	if !ok {
		return nil, repository.ErrQueuedOrderNotFound
	}
	cp := *q
	return &cp, nil
}

func sortQueue(out []entity.QueuedOrder) {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
}

func (r queueRepo) FindDue(_ context.Context, now time.Time) ([]entity.QueuedOrder, error) {
	var out []entity.QueuedOrder
	for _, q := range r.s.AllQueued() {
		if q.Status == entity.QueueQueued && !q.ScheduledAt.After(now) {
			out = append(out, q)
		}
	}
	sortQueue(out)
	return out, nil
}

func (r queueRepo) FindByBatchID(_ context.Context, batchID string) ([]entity.QueuedOrder, error) {
	var out []entity.QueuedOrder
	for _, q := range r.s.AllQueued() {
		if q.BatchID == batchID {
			out = append(out, q)
		}
	}
	sortQueue(out)
	return out, nil
}

func (r queueRepo) FindStale(_ context.Context, before time.Time) ([]entity.QueuedOrder, error) {
	var out []entity.QueuedOrder
	for _, q := range r.s.AllQueued() {
		stuck := q.Status == entity.QueueBatched || q.Status == entity.QueueExecuting
		if stuck && q.UpdatedAt.Before(before) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r queueRepo) List(_ context.Context, status entity.QueueStatus, limit int) ([]entity.QueuedOrder, error) {
	var out []entity.QueuedOrder
	for _, q := range r.s.AllQueued() {
		if status == "" || q.Status == status {
			out = append(out, q)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r queueRepo) Transition(_ context.Context, ids []uint, from, to entity.QueueStatus, batchID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		q, ok := r.s.Queue[id]
		if !ok || q.Status != from {
			continue
		}
		q.Status = to
		q.UpdatedAt = r.s.Now()
		if batchID != "" {
			q.BatchID = batchID
		}
		n++
	}
	return n, nil
}

func (r queueRepo) Complete(_ context.Context, ids []uint, status entity.QueueStatus, result datatypes.JSON, errMsg string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range ids {
		q, ok := r.s.Queue[id]
		if !ok || (q.Status != entity.QueueBatched && q.Status != entity.QueueExecuting) {
			continue
		}
		q.Status = status
		q.UpdatedAt = r.s.Now()
		q.ErrorMessage = errMsg
		executedAt := at
		q.ExecutedAt = &executedAt
		if result != nil {
			q.Result = result
		}
	}
	return nil
}

func (r queueRepo) Cancel(_ context.Context, id uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.Queue[id]
	if !ok || q.Status != entity.QueueQueued {
		return false, nil
	}
	q.Status = entity.QueueCancelled
	q.UpdatedAt = r.s.Now()
	return true, nil
}

type performanceRepo struct{ s *Store }

func (r performanceRepo) AddTrades(_ context.Context, trades repository.DailyTrades) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := fmt.Sprintf("%d/%s", trades.AlgorithmID, trades.Date.Format("2006-01-02"))
	row, ok := r.s.Performance[key]
	if !ok {
		row = &entity.AlgorithmPerformance{ID: r.s.id(), AlgorithmID: trades.AlgorithmID, Date: trades.Date}
		r.s.Performance[key] = row
	}
	row.TradesCount += trades.BuyCount + trades.SellCount
	row.BuyCount += trades.BuyCount
	row.SellCount += trades.SellCount
	row.BuyValue = row.BuyValue.Add(trades.BuyValue)
	row.SellValue = row.SellValue.Add(trades.SellValue)
	row.PnL = row.PnL.Add(trades.PnL())
	return nil
}

func (r performanceRepo) CumulativePnL(_ context.Context, algorithmID uint) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := decimal.Zero
	for _, row := range r.s.Performance {
		if row.AlgorithmID == algorithmID {
			total = total.Add(row.PnL)
		}
	}
	return total, nil
}

func (r performanceRepo) FindByAlgorithmID(_ context.Context, algorithmID uint, limit int) ([]entity.AlgorithmPerformance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.AlgorithmPerformance
	for _, row := range r.s.Performance {
		if row.AlgorithmID == algorithmID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type connectionRepo struct{ s *Store }

func (r connectionRepo) HasActive(_ context.Context, userID uint, broker string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.Connections {
		if c.UserID == userID && c.Broker == broker && c.IsActive {
			return true, nil
		}
	}
	return false, nil
}
