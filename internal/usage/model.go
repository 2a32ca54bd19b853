package usage

import "time"

// Usage is an install's quota consumption for one calendar month.
type Usage struct {
	InstallID string `json:"-"`
	Month     string `json:"month"`
	Plan      string `json:"plan"`
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
}

// Remaining reports how many analyses the install can still run this month.
func (u Usage) Remaining() int {
	if r := u.Limit - u.Used; r > 0 {
		return r
	}
	return 0
}

// MonthKey formats a point in time as the UTC month bucket, e.g. "2026-09".
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
