package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	ProfilePhoto string
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type PartyModel struct {
	ID                  string  `gorm:"primaryKey"`
	OwnerID             string  `gorm:"not null;index"`
	Location            string  `gorm:"not null"`
	Description         string  `gorm:"not null"`
	EstimatedPrice      float64 `gorm:"not null"`
	MaxParticipants     int     `gorm:"not null"`
	CurrentParticipants int     `gorm:"not null"`
	Status              string  `gorm:"not null;index"`
	IsGlobal            bool    `gorm:"not null;index"`
	Latitude            *float64
	Longitude           *float64
	ImageURL            string
	AdditionalFields    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt           time.Time      `gorm:"not null;index"`
	UpdatedAt           time.Time      `gorm:"not null"`
}

// ParticipantModel rows carry party membership. The composite primary key
// makes duplicate joins a constraint violation rather than a logic bug.
type ParticipantModel struct {
	PartyID   string    `gorm:"primaryKey"`
	UserID    string    `gorm:"primaryKey;index"`
	CreatedAt time.Time `gorm:"not null;index"`
}

type MessageModel struct {
	ID          string    `gorm:"primaryKey"`
	Content     string    `gorm:"not null"`
	SenderID    string    `gorm:"not null;index"`
	PartyID     *string   `gorm:"index"`
	RecipientID *string   `gorm:"index"`
	IsPrivate   bool      `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

type AdvisorMessageModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;index"`
	PartyID   *string   `gorm:"index"`
	Role      string    `gorm:"not null"`
	Content   string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

type DestinationModel struct {
	ID               string `gorm:"primaryKey"`
	Name             string `gorm:"uniqueIndex;not null"`
	ShortDescription string `gorm:"not null"`
	LongDescription  string `gorm:"type:text"`
	BannerURL        string
	Weather          datatypes.JSON `gorm:"type:jsonb"`
	Currency         datatypes.JSON `gorm:"type:jsonb"`
	Languages        datatypes.JSON `gorm:"type:jsonb"`
	Attractions      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt        time.Time      `gorm:"not null"`
	UpdatedAt        time.Time
}
