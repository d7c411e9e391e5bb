package sale

import (
	"strings"
	"time"
)

type ListFilter struct {
	State  State
	Search string
	Now    time.Time
	Limit  int
	Offset int
}

// Matches applies the filter to a loaded sale; stores that cannot push the
// filter down to their query use it directly.
func (f ListFilter) Matches(s *FlashSale) bool {
	if f.State != "" && s.State(f.Now) != f.State {
		return false
	}

	if f.Search != "" && !containsFold(s.Title, f.Search) {
		return false
	}

	return true
}

type MetricsSnapshot struct {
	FlashSaleID string `json:"flash_sale_id"`
	TotalViews  int64  `json:"total_views"`
	TotalSales  int64  `json:"total_sales"`
}

func (m MetricsSnapshot) ConversionRate() float64 {
	if m.TotalViews == 0 {
		return 0
	}
	return float64(m.TotalSales) / float64(m.TotalViews)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
