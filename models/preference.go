package models

import "time"

// Preference is one persisted UI setting of a viewer
type Preference struct {
	ClientID  string    `json:"client_id" gorm:"primaryKey;size:64"`
	Key       string    `json:"key" gorm:"primaryKey;size:32"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
