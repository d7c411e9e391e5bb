package server

import (
	"net/http"

	"github.com/yuzvak/flashsale-engine/internal/infrastructure/http/middleware"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/monitoring"
)

func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	monitoring.RegisterMetricsEndpoint(mux)
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth())

	mux.HandleFunc("GET /flash-sales", s.saleHandler.HandleListSales)
	mux.HandleFunc("POST /flash-sales", s.saleHandler.HandleCreateSale)
	mux.HandleFunc("GET /flash-sales/analytics", s.analyticsHandler.HandleReport)
	mux.HandleFunc("GET /flash-sales/{id}", s.saleHandler.HandleGetSale)
	mux.HandleFunc("PUT /flash-sales/{id}", s.saleHandler.HandleUpdateSale)
	mux.HandleFunc("DELETE /flash-sales/{id}", s.saleHandler.HandleDeleteSale)
	mux.HandleFunc("PATCH /flash-sales/{id}/toggle", s.saleHandler.HandleToggleSale)
	mux.HandleFunc("POST /flash-sales/{id}/publish", s.saleHandler.HandlePublishSale)
	mux.HandleFunc("POST /flash-sales/{id}/view", s.analyticsHandler.HandleRecordView)
	mux.HandleFunc("POST /flash-sales/{id}/products/{productId}/purchase", s.purchaseHandler.HandlePurchase)
	mux.HandleFunc("GET /flash-sales/{id}/products/{productId}/buyers/{buyerId}", s.purchaseHandler.HandleBuyerClaim)

	handler := middleware.NewRecoveryMiddleware(s.logger)(mux)
	handler = middleware.NewLoggingMiddleware(s.logger)(handler)
	handler = middleware.NewRequestIDMiddleware()(handler)
	handler = monitoring.WrapHandler(handler)
	handler = s.corsMiddleware(handler)
	handler = s.timeoutMiddleware(handler)

	return handler
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, Idempotency-Key, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "300")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	if s.requestTimeout <= 0 {
		return next
	}
	return http.TimeoutHandler(next, s.requestTimeout, `{"status":"error","message":"Request timeout"}`)
}
