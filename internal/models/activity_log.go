package models

// ActivityLog records a mutation performed by a user.
type ActivityLog struct {
	Base
	UserID     string `gorm:"type:uuid;not null;index" json:"user_id"`
	Action     string `gorm:"not null" json:"action"`
	EntityType string `gorm:"not null" json:"entity_type"`
	EntityID   string `gorm:"index" json:"entity_id,omitempty"`
	EntityName string `json:"entity_name,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	Details    string `json:"details,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
