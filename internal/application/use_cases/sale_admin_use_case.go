package use_cases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yuzvak/flashsale-engine/internal/application/ports"
	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
	"github.com/yuzvak/flashsale-engine/internal/pkg/clock"
	"github.com/yuzvak/flashsale-engine/internal/pkg/generator"
	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ProductInput struct {
	ID                 string
	ProductID          string
	Name               string
	OriginalPrice      decimal.Decimal
	SalePrice          decimal.Decimal
	StockQuantity      int
	MaxQuantityPerUser int
}

type CreateSaleInput struct {
	Title       string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	Draft       bool
	Products    []ProductInput
}

// UpdateSaleInput leaves nil fields untouched. A non-nil Products replaces the
// product terms; it is a term edit when every entry names an existing product
// by ID, otherwise a full replacement.
type UpdateSaleInput struct {
	Title       *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
	Products    []ProductInput
}

type ListSalesInput struct {
	Page     int
	PageSize int
	State    string
	Search   string
}

type SaleView struct {
	Sale    *sale.FlashSale
	State   sale.State
	Metrics sale.MetricsSnapshot
}

type SalePage struct {
	Items    []SaleView
	Total    int
	Page     int
	PageSize int
}

type SaleAdminUseCase struct {
	saleRepo ports.SaleRepository
	metrics  ports.MetricsAggregator
	catalog  ports.Catalog
	clock    clock.Clock
	codeGen  *generator.CodeGenerator
	log      *logger.Logger
}

func NewSaleAdminUseCase(
	saleRepo ports.SaleRepository,
	metrics ports.MetricsAggregator,
	catalog ports.Catalog,
	clk clock.Clock,
	log *logger.Logger,
) *SaleAdminUseCase {
	return &SaleAdminUseCase{
		saleRepo: saleRepo,
		metrics:  metrics,
		catalog:  catalog,
		clock:    clk,
		codeGen:  generator.NewCodeGenerator(),
		log:      log,
	}
}

func (uc *SaleAdminUseCase) CreateSale(ctx context.Context, in CreateSaleInput) (*SaleView, error) {
	now := uc.clock.Now()

	products, err := uc.buildProducts(ctx, in.Products, now)
	if err != nil {
		return nil, err
	}

	flashSale, err := sale.NewFlashSale(uc.codeGen.GenerateSaleID(), in.Title, in.Description,
		in.StartDate, in.EndDate, in.Draft, products, now)
	if err != nil {
		return nil, err
	}

	if !in.Draft && !now.Before(flashSale.EndDate) {
		return nil, fmt.Errorf("%w: end date must be in the future", domainErrors.ErrInvalidSale)
	}

	if err := uc.saleRepo.CreateSale(ctx, flashSale); err != nil {
		return nil, err
	}

	uc.log.Info("Flash sale created",
		"flash_sale_id", flashSale.ID,
		"state", flashSale.State(now),
		"products", len(flashSale.Products),
		"stock", flashSale.StockQuantity(),
	)

	return uc.view(flashSale, now), nil
}

func (uc *SaleAdminUseCase) GetSale(ctx context.Context, id string) (*SaleView, error) {
	flashSale, err := uc.saleRepo.GetSaleByID(ctx, id)
	if err != nil {
		return nil, err
	}

	view := uc.view(flashSale, uc.clock.Now())

	snapshot, err := uc.metrics.Snapshot(ctx, id)
	if err != nil {
		uc.log.Warn("Failed to load sale metrics", "error", err, "flash_sale_id", id)
	} else {
		view.Metrics = snapshot
	}

	return view, nil
}

func (uc *SaleAdminUseCase) ListSales(ctx context.Context, in ListSalesInput) (*SalePage, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}

	pageSize := in.PageSize
	switch {
	case pageSize < 1:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}

	now := uc.clock.Now()
	filter := sale.ListFilter{
		Search: strings.TrimSpace(in.Search),
		Now:    now,
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}

	if in.State != "" {
		state, ok := sale.ParseState(strings.ToLower(in.State))
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", domainErrors.ErrInvalidRequest, in.State)
		}
		filter.State = state
	}

	sales, total, err := uc.saleRepo.ListSales(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]SaleView, 0, len(sales))
	for _, s := range sales {
		items = append(items, *uc.view(s, now))
	}

	return &SalePage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func (uc *SaleAdminUseCase) UpdateSale(ctx context.Context, id string, in UpdateSaleInput) (*SaleView, error) {
	flashSale, err := uc.saleRepo.GetSaleByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now()

	if in.Title != nil || in.Description != nil {
		title, description := flashSale.Title, flashSale.Description
		if in.Title != nil {
			title = *in.Title
		}
		if in.Description != nil {
			description = *in.Description
		}
		if err := flashSale.UpdateDetails(title, description, now); err != nil {
			return nil, err
		}
	}

	if in.StartDate != nil || in.EndDate != nil {
		start, end := flashSale.StartDate, flashSale.EndDate
		if in.StartDate != nil {
			start = *in.StartDate
		}
		if in.EndDate != nil {
			end = *in.EndDate
		}
		if err := flashSale.Reschedule(start, end, now); err != nil {
			return nil, err
		}
	}

	if in.Products != nil {
		if err := uc.applyProducts(ctx, flashSale, in.Products, now); err != nil {
			return nil, err
		}
	}

	if err := uc.saleRepo.UpdateSale(ctx, flashSale); err != nil {
		return nil, err
	}

	uc.log.Info("Flash sale updated", "flash_sale_id", id, "state", flashSale.State(now))
	return uc.view(flashSale, now), nil
}

func (uc *SaleAdminUseCase) applyProducts(ctx context.Context, flashSale *sale.FlashSale, inputs []ProductInput, now time.Time) error {
	if isTermsEdit(flashSale, inputs) {
		for _, in := range inputs {
			err := flashSale.UpdateProductTerms(in.ID, sale.ProductTerms{
				OriginalPrice:      in.OriginalPrice,
				SalePrice:          in.SalePrice,
				StockQuantity:      in.StockQuantity,
				MaxQuantityPerUser: in.MaxQuantityPerUser,
			}, now)
			if err != nil {
				return err
			}
		}
		return nil
	}

	if !flashSale.StockEditable(now) {
		return domainErrors.ErrSaleFrozen
	}

	products, err := uc.buildProducts(ctx, inputs, now)
	if err != nil {
		return err
	}
	return flashSale.ReplaceProducts(products, now)
}

func isTermsEdit(flashSale *sale.FlashSale, inputs []ProductInput) bool {
	if len(inputs) != len(flashSale.Products) {
		return false
	}
	for _, in := range inputs {
		if in.ID == "" {
			return false
		}
		if _, err := flashSale.Product(in.ID); err != nil {
			return false
		}
	}
	return true
}

func (uc *SaleAdminUseCase) DeleteSale(ctx context.Context, id string) error {
	if err := uc.saleRepo.DeleteSale(ctx, id); err != nil {
		return err
	}

	uc.log.Info("Flash sale deleted", "flash_sale_id", id)
	return nil
}

func (uc *SaleAdminUseCase) ToggleSale(ctx context.Context, id string) (*SaleView, error) {
	flashSale, err := uc.saleRepo.GetSaleByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	flashSale.Toggle(now)

	if err := uc.saleRepo.UpdateSale(ctx, flashSale); err != nil {
		return nil, err
	}

	uc.log.Info("Flash sale toggled", "flash_sale_id", id, "is_active", flashSale.IsActive, "state", flashSale.State(now))
	return uc.view(flashSale, now), nil
}

func (uc *SaleAdminUseCase) PublishSale(ctx context.Context, id string) (*SaleView, error) {
	flashSale, err := uc.saleRepo.GetSaleByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	if err := flashSale.Publish(now); err != nil {
		return nil, err
	}

	if err := uc.saleRepo.UpdateSale(ctx, flashSale); err != nil {
		return nil, err
	}

	uc.log.Info("Flash sale published", "flash_sale_id", id, "state", flashSale.State(now))
	return uc.view(flashSale, now), nil
}

// buildProducts resolves each input against the catalog. The catalog fills
// the name and original price when the input leaves them empty.
func (uc *SaleAdminUseCase) buildProducts(ctx context.Context, inputs []ProductInput, now time.Time) ([]*sale.Product, error) {
	products := make([]*sale.Product, 0, len(inputs))
	for _, in := range inputs {
		if strings.TrimSpace(in.ProductID) == "" {
			return nil, fmt.Errorf("%w: product_id is required", domainErrors.ErrInvalidSale)
		}

		ref, err := uc.catalog.GetProduct(ctx, in.ProductID)
		if err != nil {
			return nil, err
		}

		name := in.Name
		if name == "" {
			name = ref.Name
		}

		originalPrice := in.OriginalPrice
		if originalPrice.IsZero() {
			originalPrice = ref.Price
		}

		product, err := sale.NewProduct(uc.codeGen.GenerateProductID(), in.ProductID, name,
			originalPrice, in.SalePrice, in.StockQuantity, in.MaxQuantityPerUser, now)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, nil
}

func (uc *SaleAdminUseCase) view(s *sale.FlashSale, now time.Time) *SaleView {
	return &SaleView{
		Sale:  s,
		State: s.State(now),
		Metrics: sale.MetricsSnapshot{
			FlashSaleID: s.ID,
			TotalViews:  s.TotalViews,
			TotalSales:  s.TotalSales,
		},
	}
}
