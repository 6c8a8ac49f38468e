package models

import (
	"github.com/shopspring/decimal"
)

type Train struct {
	ID          string          `json:"id"`
	TrainNumber string          `json:"train_number"`
	Name        string          `json:"name"`
	FromStation string          `json:"from_station"`
	ToStation   string          `json:"to_station"`
	TotalSeats  int             `json:"total_seats"`
	Fare        decimal.Decimal `json:"fare"`
}
