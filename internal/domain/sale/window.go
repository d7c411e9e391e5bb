package sale

import "time"

// IsCurrentlyActive reports whether s accepts purchases at now. The end date is
// checked directly so an expired sale is rejected even if nobody has flipped
// IsActive yet.
func IsCurrentlyActive(s *FlashSale, now time.Time) bool {
	if s == nil || !s.IsActive || s.Draft {
		return false
	}

	return inWindow(s.StartDate, s.EndDate, now)
}

func inWindow(start, end, now time.Time) bool {
	return !now.Before(start) && now.Before(end)
}
