package use_cases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yuzvak/flashsale-engine/internal/application/ports"
	"github.com/yuzvak/flashsale-engine/internal/domain/analytics"
	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/monitoring"
	"github.com/yuzvak/flashsale-engine/internal/pkg/clock"
	"github.com/yuzvak/flashsale-engine/internal/pkg/generator"
	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

type PurchaseRequest struct {
	BuyerID            string
	FlashSaleID        string
	FlashSaleProductID string
	Units              int
	IdempotencyKey     string
}

type PurchaseDependencies struct {
	Sales     ports.SaleRepository
	Stock     ports.StockLedger
	Quota     ports.QuotaTracker
	Receipts  ports.ReceiptStore
	Locker    ports.Locker
	Metrics   ports.MetricsAggregator
	Analytics ports.AnalyticsSink
	Clock     clock.Clock
	Tracer    trace.Tracer
	Logger    *logger.Logger
}

type PurchaseUseCase struct {
	saleRepo    ports.SaleRepository
	stock       ports.StockLedger
	quota       ports.QuotaTracker
	receipts    ports.ReceiptStore
	locker      ports.Locker
	metrics     ports.MetricsAggregator
	sink        ports.AnalyticsSink
	clock       clock.Clock
	tracer      trace.Tracer
	log         *logger.Logger
	purchaseSvc *sale.PurchaseService
	codeGen     *generator.CodeGenerator

	retryAttempts  int
	lockTTL        time.Duration
	metricsRetries uint64
}

func NewPurchaseUseCase(deps PurchaseDependencies, lockTTL time.Duration, metricsRetries uint64) *PurchaseUseCase {
	return &PurchaseUseCase{
		saleRepo:       deps.Sales,
		stock:          deps.Stock,
		quota:          deps.Quota,
		receipts:       deps.Receipts,
		locker:         deps.Locker,
		metrics:        deps.Metrics,
		sink:           deps.Analytics,
		clock:          deps.Clock,
		tracer:         deps.Tracer,
		log:            deps.Logger,
		purchaseSvc:    sale.NewPurchaseService(),
		codeGen:        generator.NewCodeGenerator(),
		retryAttempts:  3,
		lockTTL:        lockTTL,
		metricsRetries: metricsRetries,
	}
}

// Purchase allocates units of one flash sale product to a buyer. It either
// commits both the quota claim and the stock reservation or neither.
func (uc *PurchaseUseCase) Purchase(ctx context.Context, req PurchaseRequest) (*sale.Receipt, error) {
	ctx, span := uc.tracer.Start(ctx, "flashsale.purchase", trace.WithAttributes(
		attribute.String("flash_sale.id", req.FlashSaleID),
		attribute.String("flash_sale.product_id", req.FlashSaleProductID),
		attribute.Int("purchase.units", req.Units),
		attribute.Bool("purchase.idempotent", req.IdempotencyKey != ""),
	))
	defer span.End()

	metrics := monitoring.NewPurchaseMetrics()

	receipt, replayed, err := uc.execute(ctx, req)
	if err != nil {
		metrics.RecordFailure(err)
		span.SetAttributes(attribute.String("purchase.error_kind", string(domainErrors.KindOf(err))))
		if !domainErrors.IsBusinessError(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	if replayed {
		metrics.RecordReplay()
		span.SetAttributes(attribute.Bool("purchase.replayed", true))
	} else {
		metrics.RecordSuccess()
	}
	span.SetAttributes(attribute.String("receipt.id", receipt.ID))

	return receipt, nil
}

func (uc *PurchaseUseCase) execute(ctx context.Context, req PurchaseRequest) (*sale.Receipt, bool, error) {
	if strings.TrimSpace(req.BuyerID) == "" {
		return nil, false, fmt.Errorf("%w: buyer id is required", domainErrors.ErrInvalidRequest)
	}

	key := sale.IdempotencyKey{
		BuyerID:            req.BuyerID,
		FlashSaleProductID: req.FlashSaleProductID,
		Key:                req.IdempotencyKey,
	}

	if !key.IsZero() {
		lockKey := "purchase:" + key.String()
		locked, err := uc.locker.DistributedLock(ctx, lockKey, uc.lockTTL)
		if err != nil {
			return nil, false, fmt.Errorf("failed to acquire idempotency lock: %w", err)
		}
		if !locked {
			return nil, false, fmt.Errorf("%w: a purchase with this idempotency key is in progress", domainErrors.ErrConcurrencyConflict)
		}
		defer func() {
			if err := uc.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey); err != nil {
				uc.log.Error("Failed to release lock", "error", err, "lock_key", lockKey)
			}
		}()

		existing, err := uc.receipts.GetReceipt(ctx, key)
		if err != nil {
			return nil, false, fmt.Errorf("failed to look up receipt: %w", err)
		}
		if existing != nil {
			uc.log.Info("Returning stored receipt", "receipt_id", existing.ID, "buyer_id", req.BuyerID)
			return existing, true, nil
		}
	}

	var receipt *sale.Receipt
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		receipt, err = uc.allocate(ctx, req, key)
		if err == nil || !domainErrors.IsRetryable(err) {
			break
		}

		uc.log.Warn("Allocation attempt lost a race", "attempt", attempt+1, "error", err.Error(),
			"flash_sale_product_id", req.FlashSaleProductID)

		if attempt < uc.retryAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, false, ctx.Err()
			case <-time.After(time.Millisecond * time.Duration(10*(attempt+1))):
			}
		}
	}
	if err != nil {
		return nil, false, err
	}

	return receipt, false, nil
}

func (uc *PurchaseUseCase) allocate(ctx context.Context, req PurchaseRequest, key sale.IdempotencyKey) (*sale.Receipt, error) {
	now := uc.clock.Now()

	flashSale, err := uc.saleRepo.GetSaleByID(ctx, req.FlashSaleID)
	if err != nil {
		return nil, err
	}

	product, err := flashSale.Product(req.FlashSaleProductID)
	if err != nil {
		return nil, err
	}

	if err := uc.purchaseSvc.ValidatePurchase(flashSale, product, req.Units, now); err != nil {
		return nil, err
	}

	if _, err := uc.quota.TryClaim(ctx, req.BuyerID, product.ID, req.Units, product.MaxQuantityPerUser); err != nil {
		return nil, err
	}

	newSold, err := uc.stock.TryReserve(ctx, product.ID, req.Units)
	if err != nil {
		uc.releaseClaim(ctx, req.BuyerID, product.ID, req.Units)
		return nil, err
	}

	uc.recordSale(ctx, flashSale.ID, req.Units)

	receipt := uc.purchaseSvc.BuildReceipt(uc.codeGen.GenerateReceiptID(), key, flashSale, product, req.Units, newSold, uc.clock.Now())
	monitoring.RecordUnitsSold(flashSale.ID, product.ID, req.Units, receipt.RemainingStock)

	var saveErr error
	if !key.IsZero() {
		saveErr = uc.saveReceipt(ctx, key, receipt)
	}

	uc.publish(ctx, analytics.Event{
		ID:                 uc.codeGen.GenerateEventID(),
		Type:               analytics.EventPurchaseCommitted,
		FlashSaleID:        flashSale.ID,
		FlashSaleProductID: product.ID,
		BuyerID:            req.BuyerID,
		ReceiptID:          receipt.ID,
		Units:              req.Units,
		Amount:             receipt.TotalPrice,
		OccurredAt:         receipt.PurchasedAt,
	})

	uc.log.Info("Purchase committed",
		"receipt_id", receipt.ID,
		"buyer_id", req.BuyerID,
		"flash_sale_product_id", product.ID,
		"units", req.Units,
		"remaining_stock", receipt.RemainingStock,
	)

	if saveErr != nil {
		return nil, saveErr
	}
	return receipt, nil
}

// releaseClaim undoes a quota claim after the stock reservation failed. It
// ignores caller cancellation so an abandoned request still compensates.
func (uc *PurchaseUseCase) releaseClaim(ctx context.Context, buyerID, productID string, units int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	policy := backoff.WithContext(retryPolicy(5), ctx)
	err := backoff.Retry(func() error {
		_, err := uc.quota.Unclaim(ctx, buyerID, productID, units)
		return err
	}, policy)
	if err != nil {
		monitoring.CompensationFailuresTotal.Inc()
		uc.log.Error("Failed to release quota claim", "error", err,
			"buyer_id", buyerID, "flash_sale_product_id", productID, "units", units)
	}
}

// recordSale runs only after the reservation committed. A failure after all
// retries leaves total_sales behind; the flusher reconciles it once the sale
// has ended.
func (uc *PurchaseUseCase) recordSale(ctx context.Context, saleID string, units int) {
	ctx = context.WithoutCancel(ctx)

	policy := retryPolicy(uc.metricsRetries)
	err := backoff.Retry(func() error {
		err := uc.metrics.RecordSale(ctx, saleID, units)
		if errors.Is(err, domainErrors.ErrSaleNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err != nil {
		monitoring.MetricsDriftTotal.Inc()
		uc.log.Error("Failed to record sale", "error", err, "flash_sale_id", saleID, "units", units)
	}
}

// saveReceipt stores the receipt a retry with the same key must replay. The
// units are already committed, so a receipt that still cannot be stored after
// all retries is reported to the caller as an internal failure.
func (uc *PurchaseUseCase) saveReceipt(ctx context.Context, key sale.IdempotencyKey, receipt *sale.Receipt) error {
	ctx = context.WithoutCancel(ctx)

	err := backoff.Retry(func() error {
		return uc.receipts.SaveReceipt(ctx, key, receipt)
	}, retryPolicy(uc.metricsRetries))
	if err != nil {
		monitoring.ReceiptPersistFailuresTotal.Inc()
		uc.log.Error("Failed to store receipt", "error", err,
			"receipt_id", receipt.ID, "key", key.String(), "units", receipt.Units)
		return fmt.Errorf("%w: receipt %s: %v", domainErrors.ErrReceiptNotStored, receipt.ID, err)
	}
	return nil
}

func (uc *PurchaseUseCase) publish(ctx context.Context, events ...analytics.Event) {
	if err := uc.sink.Publish(context.WithoutCancel(ctx), events...); err != nil {
		uc.log.Warn("Failed to publish analytics event", "error", err)
	}
}

// BuyerClaim reports how many units a buyer holds on a product and the cap.
func (uc *PurchaseUseCase) BuyerClaim(ctx context.Context, saleID, productID, buyerID string) (*BuyerClaim, error) {
	flashSale, err := uc.saleRepo.GetSaleByID(ctx, saleID)
	if err != nil {
		return nil, err
	}

	product, err := flashSale.Product(productID)
	if err != nil {
		return nil, err
	}

	claimed, err := uc.quota.Claimed(ctx, buyerID, product.ID)
	if err != nil {
		return nil, err
	}

	remaining := product.MaxQuantityPerUser - claimed
	if remaining < 0 {
		remaining = 0
	}

	return &BuyerClaim{
		BuyerID:            buyerID,
		FlashSaleProductID: product.ID,
		UnitsClaimed:       claimed,
		MaxQuantityPerUser: product.MaxQuantityPerUser,
		RemainingAllowance: remaining,
	}, nil
}

type BuyerClaim struct {
	BuyerID            string `json:"buyer_id"`
	FlashSaleProductID string `json:"flash_sale_product_id"`
	UnitsClaimed       int    `json:"units_claimed"`
	MaxQuantityPerUser int    `json:"max_quantity_per_user"`
	RemainingAllowance int    `json:"remaining_allowance"`
}

func retryPolicy(maxRetries uint64) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond
	return backoff.WithMaxRetries(policy, maxRetries)
}
