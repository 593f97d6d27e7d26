package store

import (
	"time"

	"gorm.io/datatypes"

	"auto_wordpress_post_publisher/publisher"
)

// siteRecord is one entry of a user's WordPress list.
type siteRecord struct {
	ID             string `gorm:"primaryKey;type:text"`
	UserID         string `gorm:"index:idx_sites_user_url,unique;not null"`
	URL            string `gorm:"index:idx_sites_user_url,unique;not null"`
	UserName       string
	SealedPassword string
	SealedToken    string
	TokenExpire    time.Time
	DisplayName    string
	UserEmail      string
	Name           string
	Categories     datatypes.JSONSlice[publisher.Category]
	Tags           datatypes.JSONSlice[publisher.Tag]
	Posts          datatypes.JSONSlice[publisher.Post]
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (siteRecord) TableName() string { return "sites" }

type settingsRecord struct {
	UserID       string `gorm:"primaryKey;type:text"`
	SealedAPIKey string
	Model        string
	Temperature  float64
	MaxTokens    int
	UpdatedAt    time.Time
}

func (settingsRecord) TableName() string { return "settings" }

// Settings are the per-user preferences of the authoring wizard.
type Settings struct {
	ChatGPTAPIKey string  `json:"chatGptApiKey"`
	Model         string  `json:"model,omitempty"`
	Temperature   float64 `json:"temperature"`
	MaxTokens     int     `json:"maxTokens,omitempty"`
}
