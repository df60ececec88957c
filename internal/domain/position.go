package domain

import (
	"strings"
	"time"
)

// PositionType is the side of a share position.
type PositionType string

const (
	PositionTypeLong  PositionType = "LONG"
	PositionTypeShort PositionType = "SHORT"
)

// ParsePositionType normalises raw input to a known PositionType.
// Matching is case-insensitive; ok is false for anything outside the set.
func ParsePositionType(raw string) (pt PositionType, ok bool) {
	switch PositionType(strings.ToUpper(strings.TrimSpace(raw))) {
	case PositionTypeLong:
		return PositionTypeLong, true
	case PositionTypeShort:
		return PositionTypeShort, true
	}
	return "", false
}

// Position is one share position line item parsed from an uploaded file.
type Position struct {
	ID           uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	ClientCode   int64        `gorm:"not null;index:idx_share_positions_client" json:"client_code"`
	SecurityCode string       `gorm:"type:varchar(225);not null" json:"security_code"`
	ISIN         string       `gorm:"column:isin;type:varchar(225);not null;index:idx_share_positions_isin" json:"isin"`
	Quantity     int64        `gorm:"not null" json:"quantity"`
	TotalCost    float64      `gorm:"not null" json:"total_cost"`
	PositionType PositionType `gorm:"type:varchar(100);not null" json:"position_type"`
	CreatedAt    time.Time    `json:"created_at"`
}

// TableName returns the database table name for Position.
func (Position) TableName() string {
	return "share_positions"
}
