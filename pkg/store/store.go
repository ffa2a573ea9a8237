package store

import (
	"context"
	"errors"

	"tripparty/pkg/domain"
)

// Store-level failure conditions. The application layer translates these
// into its own error categories.
var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrAlreadyParticipant = errors.New("user already a participant")
	ErrNotParticipant     = errors.New("user not a participant")
	ErrPartyNotJoinable   = errors.New("party is not accepting participants")
)

// PartyPatch carries owner-mutable fields. Nil pointers leave the stored
// value untouched.
type PartyPatch struct {
	Location         *string
	Description      *string
	EstimatedPrice   *float64
	MaxParticipants  *int
	ImageURL         *string
	AdditionalFields map[string]any
	Status           *domain.PartyStatus
}

// PartyFilter narrows a party search. Zero values mean "no constraint",
// except IsGlobal which always applies.
type PartyFilter struct {
	Location      string
	MaxPrice      *float64
	Status        domain.PartyStatus
	IsGlobal      bool
	Near          *domain.GeoPoint
	MaxDistanceKm float64
}

// Store defines persistence for users, parties, messages, advisor history,
// and destinations. Reads return fully populated documents: stored user
// references are resolved to UserRef projections.
type Store interface {
	// users
	CreateUser(domain.User) error
	GetUserByUsername(username string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// parties
	CreateParty(p domain.Party) error
	GetParty(id string) (domain.Party, bool, error)
	UpdateParty(id string, patch PartyPatch) error
	DeleteParty(id string) error
	// AddParticipant and RemoveParticipant perform the participant-count
	// read-modify-write atomically: concurrent joins can never push a party
	// past capacity.
	AddParticipant(partyID, userID string) error
	RemoveParticipant(partyID, userID string) error
	SearchParties(f PartyFilter) ([]domain.Party, error)
	ListPartiesByMember(userID string) ([]domain.Party, error)

	// messages
	AppendMessage(m domain.Message) (domain.Message, error)
	ListPartyMessages(partyID string, private bool, userID, partnerID string) ([]domain.Message, error)
	ListDirectMessages(userID string) ([]domain.Message, error)

	// advisor history
	AppendAdvisorExchange(userMsg, assistantMsg domain.AdvisorMessage) error
	ListAdvisorMessages(userID, partyID string, limit int) ([]domain.AdvisorMessage, error)
	CountAdvisorMessages(ctx context.Context, userID, partyID string) (int, error)
	DeleteAdvisorMessages(userID string) error

	// destinations
	SaveDestination(domain.Destination) error
	GetDestination(id string) (domain.Destination, bool, error)
	GetDestinationByName(name string) (domain.Destination, bool, error)
	SearchDestinations(query string) ([]domain.Destination, error)
}
