package models

import "time"

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04:05"
)

// LocationData is one persisted location ping.
// Date and Time are the client-reported calendar components kept for display
// and filtering; Timestamp is the arrival instant used for analysis.
type LocationData struct {
	Base
	UserID    string    `json:"user_id"   gorm:"size:191;not null;index;index:idx_user_ts,priority:1"`
	SocketID  *string   `json:"socket_id" gorm:"size:64"`
	Latitude  float64   `json:"latitude"  gorm:"not null"`
	Longitude float64   `json:"longitude" gorm:"not null"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index;index:idx_user_ts,priority:2"`
	Date      string    `json:"date"      gorm:"size:10;index"`
	Time      string    `json:"time"      gorm:"size:15"`
}

func (LocationData) TableName() string { return "location_data" }
