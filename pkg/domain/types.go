package domain

import "time"

type PartyStatus string

const (
	StatusOpen   PartyStatus = "open"
	StatusFull   PartyStatus = "full"
	StatusClosed PartyStatus = "closed"
)

// Advisor message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	ProfilePhoto string    `json:"profilePhoto"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserRef is the identity projection embedded wherever a stored user
// reference is populated (party owners, participants, message senders).
type UserRef struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	ProfilePhoto string `json:"profilePhoto"`
}

// GeoPoint is a WGS84 coordinate pair. Present only on local parties.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Party struct {
	ID                  string         `json:"id"`
	Owner               UserRef        `json:"owner"`
	Participants        []UserRef      `json:"participants"`
	CurrentParticipants int            `json:"currentParticipants"`
	MaxParticipants     int            `json:"maxParticipants"`
	Status              PartyStatus    `json:"status"`
	IsGlobal            bool           `json:"isGlobal"`
	Coordinates         *GeoPoint      `json:"coordinates,omitempty"`
	Location            string         `json:"location"`
	Description         string         `json:"description"`
	EstimatedPrice      float64        `json:"estimatedPrice"`
	ImageURL            string         `json:"imageUrl,omitempty"`
	AdditionalFields    map[string]any `json:"additionalFields"`
	CreatedAt           time.Time      `json:"createdAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    UserRef   `json:"sender"`
	PartyID   string    `json:"partyId,omitempty"`
	Recipient *UserRef  `json:"recipient,omitempty"`
	IsPrivate bool      `json:"isPrivate"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation groups the direct messages exchanged with one partner.
type Conversation struct {
	Participant UserRef   `json:"participant"`
	Messages    []Message `json:"messages"`
}

type AdvisorMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	PartyID   string    `json:"partyId,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Weather struct {
	Average     string `json:"average"`
	Description string `json:"description"`
}

type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

type Language struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type Attraction struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IconURL     string `json:"iconUrl"`
}

type Destination struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	ShortDescription string       `json:"shortDescription"`
	LongDescription  string       `json:"longDescription,omitempty"`
	BannerURL        string       `json:"bannerUrl"`
	Weather          Weather      `json:"weather"`
	Currency         Currency     `json:"currency"`
	Languages        []Language   `json:"languages"`
	Attractions      []Attraction `json:"attractions"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}
