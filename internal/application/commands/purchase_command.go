package commands

import (
	"context"

	"github.com/yuzvak/flashsale-engine/internal/application/use_cases"
	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

type PurchaseCommand struct {
	FlashSaleID        string `json:"-" validate:"required"`
	FlashSaleProductID string `json:"-" validate:"required"`
	BuyerID            string `json:"buyer_id" validate:"required,max=128"`
	Quantity           int    `json:"quantity" validate:"max=2147483647"`
	IdempotencyKey     string `json:"idempotency_key" validate:"omitempty,max=255"`
}

type PurchaseHandler struct {
	purchaseUseCase *use_cases.PurchaseUseCase
	log             *logger.Logger
}

func NewPurchaseHandler(
	purchaseUseCase *use_cases.PurchaseUseCase,
	log *logger.Logger,
) *PurchaseHandler {
	return &PurchaseHandler{
		purchaseUseCase: purchaseUseCase,
		log:             log,
	}
}

func (h *PurchaseHandler) Handle(ctx context.Context, cmd PurchaseCommand) (*sale.Receipt, error) {
	h.log.Debug("Processing purchase request",
		"flash_sale_id", cmd.FlashSaleID,
		"flash_sale_product_id", cmd.FlashSaleProductID,
		"buyer_id", cmd.BuyerID,
		"quantity", cmd.Quantity,
	)

	receipt, err := h.purchaseUseCase.Purchase(ctx, use_cases.PurchaseRequest{
		BuyerID:            cmd.BuyerID,
		FlashSaleID:        cmd.FlashSaleID,
		FlashSaleProductID: cmd.FlashSaleProductID,
		Units:              cmd.Quantity,
		IdempotencyKey:     cmd.IdempotencyKey,
	})
	if err != nil {
		h.log.Info("Purchase rejected",
			"error", err.Error(),
			"flash_sale_product_id", cmd.FlashSaleProductID,
			"buyer_id", cmd.BuyerID,
		)
		return nil, err
	}

	return receipt, nil
}
