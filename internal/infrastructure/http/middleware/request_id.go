package middleware

import (
	"context"
	"net/http"

	"github.com/yuzvak/flashsale-engine/internal/pkg/generator"
)

const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

func NewRequestIDMiddleware() func(http.Handler) http.Handler {
	codeGen := generator.NewCodeGenerator()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 128 {
				id = codeGen.GenerateRequestID()
			}

			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
