package use_cases

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yuzvak/flashsale-engine/internal/application/ports"
	"github.com/yuzvak/flashsale-engine/internal/domain/analytics"
	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/monitoring"
	"github.com/yuzvak/flashsale-engine/internal/pkg/clock"
	"github.com/yuzvak/flashsale-engine/internal/pkg/generator"
	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

const (
	analyticsPageSize = 200
	topSalesLimit     = 5
)

type SaleSummary struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	State          sale.State      `json:"state"`
	TotalViews     int64           `json:"total_views"`
	TotalSales     int64           `json:"total_sales"`
	Stock          int             `json:"stock"`
	Revenue        decimal.Decimal `json:"revenue"`
	ConversionRate float64         `json:"conversion_rate"`
}

type AnalyticsReport struct {
	TotalSales     int64              `json:"total_sales"`
	TotalViews     int64              `json:"total_views"`
	ConversionRate float64            `json:"conversion_rate"`
	Revenue        decimal.Decimal    `json:"revenue"`
	SalesByState   map[sale.State]int `json:"sales_by_state"`
	TopSales       []SaleSummary      `json:"top_sales"`
}

type AnalyticsUseCase struct {
	saleRepo ports.SaleRepository
	metrics  ports.MetricsAggregator
	sink     ports.AnalyticsSink
	clock    clock.Clock
	codeGen  *generator.CodeGenerator
	log      *logger.Logger
}

func NewAnalyticsUseCase(
	saleRepo ports.SaleRepository,
	metrics ports.MetricsAggregator,
	sink ports.AnalyticsSink,
	clk clock.Clock,
	log *logger.Logger,
) *AnalyticsUseCase {
	return &AnalyticsUseCase{
		saleRepo: saleRepo,
		metrics:  metrics,
		sink:     sink,
		clock:    clk,
		codeGen:  generator.NewCodeGenerator(),
		log:      log,
	}
}

// RecordView counts a view of an existing sale. Views are best effort: a
// counter failure is logged, never returned.
func (uc *AnalyticsUseCase) RecordView(ctx context.Context, flashSaleID string) error {
	if _, err := uc.saleRepo.GetSaleByID(ctx, flashSaleID); err != nil {
		return err
	}

	if err := uc.metrics.RecordView(ctx, flashSaleID); err != nil {
		uc.log.Warn("Failed to record view", "error", err, "flash_sale_id", flashSaleID)
		return nil
	}
	monitoring.RecordView()

	event := analytics.Event{
		ID:          uc.codeGen.GenerateEventID(),
		Type:        analytics.EventSaleViewed,
		FlashSaleID: flashSaleID,
		OccurredAt:  uc.clock.Now(),
	}
	if err := uc.sink.Publish(context.WithoutCancel(ctx), event); err != nil {
		uc.log.Warn("Failed to publish view event", "error", err, "flash_sale_id", flashSaleID)
	}

	return nil
}

func (uc *AnalyticsUseCase) Report(ctx context.Context) (*AnalyticsReport, error) {
	now := uc.clock.Now()
	report := &AnalyticsReport{
		Revenue:      decimal.Zero,
		SalesByState: make(map[sale.State]int),
		TopSales:     []SaleSummary{},
	}

	var summaries []SaleSummary
	for offset := 0; ; offset += analyticsPageSize {
		sales, total, err := uc.saleRepo.ListSales(ctx, sale.ListFilter{
			Now:    now,
			Limit:  analyticsPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}

		for _, s := range sales {
			summary := uc.summarize(ctx, s, now)
			summaries = append(summaries, summary)

			report.SalesByState[summary.State]++
			report.TotalViews += summary.TotalViews
			report.TotalSales += summary.TotalSales
			report.Revenue = report.Revenue.Add(summary.Revenue)
		}

		if len(sales) == 0 || offset+len(sales) >= total {
			break
		}
	}

	report.ConversionRate = sale.MetricsSnapshot{
		TotalViews: report.TotalViews,
		TotalSales: report.TotalSales,
	}.ConversionRate()

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].TotalSales > summaries[j].TotalSales
	})
	if len(summaries) > topSalesLimit {
		summaries = summaries[:topSalesLimit]
	}
	report.TopSales = append(report.TopSales, summaries...)

	return report, nil
}

func (uc *AnalyticsUseCase) summarize(ctx context.Context, s *sale.FlashSale, now time.Time) SaleSummary {
	snapshot := sale.MetricsSnapshot{FlashSaleID: s.ID, TotalViews: s.TotalViews, TotalSales: s.TotalSales}
	if live, err := uc.metrics.Snapshot(ctx, s.ID); err == nil {
		snapshot = live
	} else {
		uc.log.Warn("Failed to load sale metrics", "error", err, "flash_sale_id", s.ID)
	}

	revenue := decimal.Zero
	for _, p := range s.Products {
		revenue = revenue.Add(p.SalePrice.Mul(decimal.NewFromInt(int64(p.SoldQuantity))))
	}

	return SaleSummary{
		ID:             s.ID,
		Title:          s.Title,
		State:          s.State(now),
		TotalViews:     snapshot.TotalViews,
		TotalSales:     snapshot.TotalSales,
		Stock:          s.StockQuantity(),
		Revenue:        revenue,
		ConversionRate: snapshot.ConversionRate(),
	}
}
