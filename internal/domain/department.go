package domain

import "time"

// Department is a hospital unit that owns tickets and staff (e.g. "IT", "IPS").
type Department struct {
	ID        string
	Code      string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
