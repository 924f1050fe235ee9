package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AircraftStatus enumerates fleet availability states.
type AircraftStatus string

const (
	AircraftActive      AircraftStatus = "ACTIVE"
	AircraftMaintenance AircraftStatus = "MAINTENANCE"
	AircraftRetired     AircraftStatus = "RETIRED"
)

// Aircraft represents one aircraft in the school fleet.
type Aircraft struct {
	ID         string          `db:"id" json:"id"`
	TailNumber string          `db:"tail_number" json:"tail_number"`
	Model      string          `db:"model" json:"model"`
	Category   string          `db:"category" json:"category"`
	HourlyRate decimal.Decimal `db:"hourly_rate" json:"hourly_rate"`
	HobbsTime  decimal.Decimal `db:"hobbs_time" json:"hobbs_time"`
	Status     AircraftStatus  `db:"status" json:"status"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// AircraftFilter captures filtering criteria for fleet listings.
type AircraftFilter struct {
	Status   *AircraftStatus
	Category string
	Search   string
	Page     int
	PageSize int
}
