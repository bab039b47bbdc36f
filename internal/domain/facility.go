package domain

import "time"

type Facility struct {
	ID        int64
	Name      string
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}
