package models

// APIConfig maps a well-known key to an outbound endpoint URL.
type APIConfig struct {
	ID          uint   `json:"-"           gorm:"primaryKey;autoIncrement"`
	Key         string `json:"key"         gorm:"size:191;uniqueIndex;not null"`
	URL         string `json:"url"         gorm:"type:text"`
	Description string `json:"description" gorm:"size:255"`
}

func (APIConfig) TableName() string { return "api_configs" }
