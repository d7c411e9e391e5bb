package handlers

import (
	"net/http"

	"github.com/yuzvak/flashsale-engine/internal/application/use_cases"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/http/response"
	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

type AnalyticsHandler struct {
	analytics *use_cases.AnalyticsUseCase
	log       *logger.Logger
}

func NewAnalyticsHandler(analytics *use_cases.AnalyticsUseCase, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		log:       log,
	}
}

func (h *AnalyticsHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.analytics.Report(r.Context())
	if err != nil {
		h.log.Error("Failed to build analytics report", "error", err.Error())
		response.WriteDomainError(w, err)
		return
	}

	response.WriteSuccess(w, report)
}

func (h *AnalyticsHandler) HandleRecordView(w http.ResponseWriter, r *http.Request) {
	if err := h.analytics.RecordView(r.Context(), r.PathValue("id")); err != nil {
		response.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
