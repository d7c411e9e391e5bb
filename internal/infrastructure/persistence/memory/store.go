package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
)

// Store keeps sales in process memory. Sold quantities, claims and counters
// live in an arena of per-key atomics so the purchase path never takes the
// store mutex for longer than a map lookup.
type Store struct {
	mu       sync.RWMutex
	sales    map[string]*sale.FlashSale
	products map[string]*productSlot

	claims sync.Map // buyer:product -> *atomic.Int64
	views  sync.Map // sale id -> *atomic.Int64
	totals sync.Map // sale id -> *atomic.Int64

	maxRetries int
}

type productSlot struct {
	saleID string
	stock  atomic.Int64
	sold   atomic.Int64
}

func NewStore(maxRetries int) *Store {
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &Store{
		sales:      make(map[string]*sale.FlashSale),
		products:   make(map[string]*productSlot),
		maxRetries: maxRetries,
	}
}

func (s *Store) ListSales(ctx context.Context, filter sale.ListFilter) ([]*sale.FlashSale, int, error) {
	s.mu.RLock()
	matched := make([]*sale.FlashSale, 0, len(s.sales))
	for _, fs := range s.sales {
		snapshot := s.snapshotLocked(fs)
		if filter.Matches(snapshot) {
			matched = append(matched, snapshot)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset >= total {
		return []*sale.FlashSale{}, total, nil
	}

	end := total
	if filter.Limit > 0 && filter.Offset+filter.Limit < total {
		end = filter.Offset + filter.Limit
	}

	return matched[filter.Offset:end], total, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*sale.FlashSale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fs, ok := s.sales[id]
	if !ok {
		return nil, domainErrors.ErrSaleNotFound
	}

	return s.snapshotLocked(fs), nil
}

func (s *Store) CreateSale(ctx context.Context, fs *sale.FlashSale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sales[fs.ID]; exists {
		return domainErrors.ErrInvalidSale
	}

	stored := cloneSale(fs)
	for _, p := range stored.Products {
		slot := &productSlot{saleID: stored.ID}
		slot.stock.Store(int64(p.StockQuantity))
		s.products[p.ID] = slot
	}
	s.sales[stored.ID] = stored

	return nil
}

func (s *Store) UpdateSale(ctx context.Context, fs *sale.FlashSale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sales[fs.ID]
	if !ok {
		return domainErrors.ErrSaleNotFound
	}

	keep := make(map[string]bool, len(fs.Products))
	for _, p := range fs.Products {
		keep[p.ID] = true
		if slot, exists := s.products[p.ID]; exists && int64(p.StockQuantity) < slot.sold.Load() {
			return domainErrors.ErrInvalidSale
		}
	}

	for _, p := range current.Products {
		if !keep[p.ID] && s.products[p.ID] != nil && s.products[p.ID].sold.Load() > 0 {
			return domainErrors.ErrSaleHasSales
		}
	}

	for _, p := range current.Products {
		if !keep[p.ID] {
			delete(s.products, p.ID)
		}
	}

	stored := cloneSale(fs)
	for _, p := range stored.Products {
		slot, exists := s.products[p.ID]
		if !exists {
			slot = &productSlot{saleID: stored.ID}
			s.products[p.ID] = slot
		}
		slot.stock.Store(int64(p.StockQuantity))
	}
	s.sales[stored.ID] = stored

	return nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs, ok := s.sales[id]
	if !ok {
		return domainErrors.ErrSaleNotFound
	}

	for _, p := range fs.Products {
		if slot := s.products[p.ID]; slot != nil && slot.sold.Load() > 0 {
			return domainErrors.ErrSaleHasSales
		}
	}

	for _, p := range fs.Products {
		delete(s.products, p.ID)
	}
	delete(s.sales, id)
	s.views.Delete(id)
	s.totals.Delete(id)

	return nil
}

// snapshotLocked copies fs and overlays the live counters. Caller holds s.mu.
func (s *Store) snapshotLocked(fs *sale.FlashSale) *sale.FlashSale {
	out := cloneSale(fs)
	for _, p := range out.Products {
		if slot := s.products[p.ID]; slot != nil {
			p.SoldQuantity = int(slot.sold.Load())
			p.StockQuantity = int(slot.stock.Load())
		}
	}
	out.TotalViews = counter(&s.views, fs.ID).Load()
	out.TotalSales = counter(&s.totals, fs.ID).Load()
	return out
}

func cloneSale(fs *sale.FlashSale) *sale.FlashSale {
	out := *fs
	out.Products = make([]*sale.Product, len(fs.Products))
	for i, p := range fs.Products {
		cp := *p
		out.Products[i] = &cp
	}
	return &out
}

func counter(m *sync.Map, key string) *atomic.Int64 {
	if v, ok := m.Load(key); ok {
		return v.(*atomic.Int64)
	}
	v, _ := m.LoadOrStore(key, new(atomic.Int64))
	return v.(*atomic.Int64)
}
