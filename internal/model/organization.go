package model

// Organization is the tenant boundary: every subscription and delivery
// attempt belongs to exactly one.
type Organization struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	APIKey       string `db:"api_key"`
	Status       string `db:"status"` // active | suspended
	RateLimitRPS *int   `db:"rate_limit_rps"`
}
