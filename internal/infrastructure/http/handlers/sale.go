package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yuzvak/flashsale-engine/internal/application/commands"
	"github.com/yuzvak/flashsale-engine/internal/application/use_cases"
	"github.com/yuzvak/flashsale-engine/internal/domain/sale"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/http/response"
	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

type SaleHandler struct {
	saleAdmin *use_cases.SaleAdminUseCase
	logger    *logger.Logger
}

func NewSaleHandler(saleAdmin *use_cases.SaleAdminUseCase, logger *logger.Logger) *SaleHandler {
	return &SaleHandler{
		saleAdmin: saleAdmin,
		logger:    logger,
	}
}

type SaleResponse struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	StartDate      string            `json:"start_date"`
	EndDate        string            `json:"end_date"`
	State          sale.State        `json:"state"`
	IsActive       bool              `json:"is_active"`
	Draft          bool              `json:"draft"`
	TotalViews     int64             `json:"total_views"`
	TotalSales     int64             `json:"total_sales"`
	ConversionRate float64           `json:"conversion_rate"`
	StockQuantity  int               `json:"stock_quantity"`
	SoldQuantity   int               `json:"sold_quantity"`
	Products       []ProductResponse `json:"products"`
	CreatedAt      string            `json:"created_at"`
	UpdatedAt      string            `json:"updated_at"`
}

type ProductResponse struct {
	ID                 string          `json:"id"`
	ProductID          string          `json:"product_id"`
	Name               string          `json:"name"`
	OriginalPrice      decimal.Decimal `json:"original_price"`
	SalePrice          decimal.Decimal `json:"sale_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	StockQuantity      int             `json:"stock_quantity"`
	SoldQuantity       int             `json:"sold_quantity"`
	Remaining          int             `json:"remaining"`
	MaxQuantityPerUser int             `json:"max_quantity_per_user"`
	SoldOut            bool            `json:"sold_out"`
}

type SaleListResponse struct {
	Items    []SaleResponse `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

func (h *SaleHandler) HandleListSales(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, err := optionalInt(query.Get("page"))
	if err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"page": "must be an integer"})
		return
	}
	pageSize, err := optionalInt(query.Get("page_size"))
	if err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"page_size": "must be an integer"})
		return
	}

	result, err := h.saleAdmin.ListSales(r.Context(), use_cases.ListSalesInput{
		Page:     page,
		PageSize: pageSize,
		State:    query.Get("status"),
		Search:   query.Get("q"),
	})
	if err != nil {
		h.logger.Warn("Failed to list flash sales", "error", err.Error())
		response.WriteDomainError(w, err)
		return
	}

	items := make([]SaleResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, toSaleResponse(&result.Items[i]))
	}

	response.WriteSuccess(w, SaleListResponse{
		Items:    items,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	})
}

func (h *SaleHandler) HandleGetSale(w http.ResponseWriter, r *http.Request) {
	view, err := h.saleAdmin.GetSale(r.Context(), r.PathValue("id"))
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, toSaleResponse(view))
}

func (h *SaleHandler) HandleCreateSale(w http.ResponseWriter, r *http.Request) {
	var cmd commands.CreateSaleCommand
	if !decodeAndValidate(w, r, &cmd) {
		return
	}

	view, err := h.saleAdmin.CreateSale(r.Context(), cmd.Input())
	if err != nil {
		h.logger.Warn("Failed to create flash sale", "error", err.Error(), "title", cmd.Title)
		response.WriteDomainError(w, err)
		return
	}

	response.WriteCreated(w, toSaleResponse(view), "Flash sale created")
}

func (h *SaleHandler) HandleUpdateSale(w http.ResponseWriter, r *http.Request) {
	var cmd commands.UpdateSaleCommand
	if !decodeAndValidate(w, r, &cmd) {
		return
	}

	id := r.PathValue("id")
	view, err := h.saleAdmin.UpdateSale(r.Context(), id, cmd.Input())
	if err != nil {
		h.logger.Warn("Failed to update flash sale", "error", err.Error(), "flash_sale_id", id)
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, toSaleResponse(view), "Flash sale updated")
}

func (h *SaleHandler) HandleDeleteSale(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.saleAdmin.DeleteSale(r.Context(), id); err != nil {
		h.logger.Warn("Failed to delete flash sale", "error", err.Error(), "flash_sale_id", id)
		response.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SaleHandler) HandleToggleSale(w http.ResponseWriter, r *http.Request) {
	view, err := h.saleAdmin.ToggleSale(r.Context(), r.PathValue("id"))
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, toSaleResponse(view))
}

func (h *SaleHandler) HandlePublishSale(w http.ResponseWriter, r *http.Request) {
	view, err := h.saleAdmin.PublishSale(r.Context(), r.PathValue("id"))
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, toSaleResponse(view), "Flash sale published")
}

func toSaleResponse(view *use_cases.SaleView) SaleResponse {
	s := view.Sale

	totalViews, totalSales := s.TotalViews, s.TotalSales
	if view.Metrics.FlashSaleID != "" {
		totalViews, totalSales = view.Metrics.TotalViews, view.Metrics.TotalSales
	}
	metrics := sale.MetricsSnapshot{FlashSaleID: s.ID, TotalViews: totalViews, TotalSales: totalSales}

	products := make([]ProductResponse, 0, len(s.Products))
	for _, p := range s.Products {
		products = append(products, ProductResponse{
			ID:                 p.ID,
			ProductID:          p.ProductID,
			Name:               p.Name,
			OriginalPrice:      p.OriginalPrice,
			SalePrice:          p.SalePrice,
			DiscountPercentage: p.DiscountPercentage(),
			StockQuantity:      p.StockQuantity,
			SoldQuantity:       p.SoldQuantity,
			Remaining:          p.Remaining(),
			MaxQuantityPerUser: p.MaxQuantityPerUser,
			SoldOut:            p.IsSoldOut(),
		})
	}

	return SaleResponse{
		ID:             s.ID,
		Title:          s.Title,
		Description:    s.Description,
		StartDate:      s.StartDate.Format(time.RFC3339),
		EndDate:        s.EndDate.Format(time.RFC3339),
		State:          view.State,
		IsActive:       s.IsActive,
		Draft:          s.Draft,
		TotalViews:     totalViews,
		TotalSales:     totalSales,
		ConversionRate: metrics.ConversionRate(),
		StockQuantity:  s.StockQuantity(),
		SoldQuantity:   s.SoldQuantity(),
		Products:       products,
		CreatedAt:      s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      s.UpdatedAt.Format(time.RFC3339),
	}
}

func optionalInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
