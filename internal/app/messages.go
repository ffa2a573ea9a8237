package app

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"tripparty/internal/util"
	"tripparty/pkg/domain"
)

// SendPartyMessage posts a message to a party's chat. A recipient makes
// the message private between sender and recipient within the party.
func (a *App) SendPartyMessage(partyID, senderID, content, recipientID string) (domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, E(KindValidation, "content is required")
	}
	party, ok, err := a.store.GetParty(partyID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("load party: %w", err)
	}
	if !ok {
		return domain.Message{}, E(KindNotFound, "party not found")
	}
	if !isParticipant(party, senderID) {
		return domain.Message{}, E(KindForbidden, "only participants can send party messages")
	}
	msg := domain.Message{
		ID:        util.NewID(),
		Content:   content,
		Sender:    domain.UserRef{ID: senderID},
		PartyID:   partyID,
		IsPrivate: recipientID != "",
		CreatedAt: time.Now().UTC(),
	}
	if recipientID != "" {
		if recipientID == senderID {
			return domain.Message{}, E(KindValidation, "cannot send a private message to yourself")
		}
		if !isParticipant(party, recipientID) {
			return domain.Message{}, E(KindValidation, "recipient is not a participant")
		}
		msg.Recipient = &domain.UserRef{ID: recipientID}
	}
	saved, err := a.store.AppendMessage(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("save message: %w", err)
	}
	return saved, nil
}

// ListPartyMessages returns a party's chat in chronological order. With
// private=true and a partner it returns both directions of that pair.
func (a *App) ListPartyMessages(partyID, userID string, private bool, partnerID string) ([]domain.Message, error) {
	party, ok, err := a.store.GetParty(partyID)
	if err != nil {
		return nil, fmt.Errorf("load party: %w", err)
	}
	if !ok {
		return nil, E(KindNotFound, "party not found")
	}
	if !isParticipant(party, userID) {
		return nil, E(KindForbidden, "only participants can read party messages")
	}
	if private && partnerID == "" {
		return nil, E(KindValidation, "recipient is required for private messages")
	}
	messages, err := a.store.ListPartyMessages(partyID, private, userID, partnerID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// SendDirectMessage sends a party-less private message between two users.
func (a *App) SendDirectMessage(senderID, recipientID, content string) (domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Message{}, E(KindValidation, "content is required")
	}
	if recipientID == "" {
		return domain.Message{}, E(KindValidation, "recipient is required")
	}
	if recipientID == senderID {
		return domain.Message{}, E(KindValidation, "cannot send a private message to yourself")
	}
	if _, ok, err := a.store.GetUserByID(recipientID); err != nil {
		return domain.Message{}, fmt.Errorf("load recipient: %w", err)
	} else if !ok {
		return domain.Message{}, E(KindNotFound, "recipient not found")
	}
	msg := domain.Message{
		ID:        util.NewID(),
		Content:   content,
		Sender:    domain.UserRef{ID: senderID},
		Recipient: &domain.UserRef{ID: recipientID},
		IsPrivate: true,
		CreatedAt: time.Now().UTC(),
	}
	saved, err := a.store.AppendMessage(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("save message: %w", err)
	}
	return saved, nil
}

// ListConversations groups the user's direct messages by conversation
// partner. Conversations are ordered by their newest message; messages
// within each conversation are chronological.
func (a *App) ListConversations(userID string) ([]domain.Conversation, error) {
	messages, err := a.store.ListDirectMessages(userID)
	if err != nil {
		return nil, fmt.Errorf("list direct messages: %w", err)
	}
	byPartner := make(map[string]*domain.Conversation)
	order := make([]string, 0)
	for _, msg := range messages {
		partner := msg.Sender
		if partner.ID == userID && msg.Recipient != nil {
			partner = *msg.Recipient
		}
		conv, ok := byPartner[partner.ID]
		if !ok {
			conv = &domain.Conversation{Participant: partner}
			byPartner[partner.ID] = conv
			// Messages arrive newest first, so first sight of a partner
			// fixes the conversation's feed position.
			order = append(order, partner.ID)
		}
		conv.Messages = append(conv.Messages, msg)
	}
	out := make([]domain.Conversation, 0, len(order))
	for _, partnerID := range order {
		conv := byPartner[partnerID]
		sort.SliceStable(conv.Messages, func(i, j int) bool {
			return conv.Messages[i].CreatedAt.Before(conv.Messages[j].CreatedAt)
		})
		out = append(out, *conv)
	}
	return out, nil
}

func isParticipant(party domain.Party, userID string) bool {
	for _, participant := range party.Participants {
		if participant.ID == userID {
			return true
		}
	}
	return false
}
