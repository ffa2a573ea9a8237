package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"tripparty/pkg/domain"
)

// MemoryStore keeps everything in-process. It backs tests and local
// development without Postgres.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[string]domain.User
	usernames    map[string]string // username -> user ID
	parties      map[string]partyRecord
	partyOrder   []string
	messages     []domain.Message
	advisor      []domain.AdvisorMessage
	destinations map[string]domain.Destination
}

type partyRecord struct {
	party   domain.Party
	members []string // user IDs in join order
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]domain.User),
		usernames:    make(map[string]string),
		parties:      make(map[string]partyRecord),
		destinations: make(map[string]domain.Destination),
	}
}

// CreateUser registers a new user.
func (m *MemoryStore) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.usernames[u.Username]; taken {
		return ErrDuplicateUsername
	}
	m.users[u.ID] = u
	m.usernames[u.Username] = u.ID
	return nil
}

// GetUserByUsername looks up a user by username.
func (m *MemoryStore) GetUserByUsername(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usernames[username]
	if !ok {
		return domain.User{}, false, nil
	}
	return m.users[id], true, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	return user, ok, nil
}

// CreateParty stores a new party with the owner as first participant. The
// status rule applies on insert too: a single-seat party starts out full.
func (m *MemoryStore) CreateParty(p domain.Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Status = deriveStatus(p.CurrentParticipants, p.MaxParticipants, p.Status)
	m.parties[p.ID] = partyRecord{party: p, members: []string{p.Owner.ID}}
	m.partyOrder = append(m.partyOrder, p.ID)
	return nil
}

// GetParty retrieves a party with owner and participants populated.
func (m *MemoryStore) GetParty(id string) (domain.Party, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.parties[id]
	if !ok {
		return domain.Party{}, false, nil
	}
	return m.populateLocked(rec), true, nil
}

// UpdateParty applies the patch and re-derives status.
func (m *MemoryStore) UpdateParty(id string, patch PartyPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.parties[id]
	if !ok {
		return ErrNotFound
	}
	p := rec.party
	if patch.Location != nil {
		p.Location = *patch.Location
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.EstimatedPrice != nil {
		p.EstimatedPrice = *patch.EstimatedPrice
	}
	if patch.MaxParticipants != nil {
		p.MaxParticipants = *patch.MaxParticipants
	}
	if patch.ImageURL != nil {
		p.ImageURL = *patch.ImageURL
	}
	if patch.AdditionalFields != nil {
		p.AdditionalFields = patch.AdditionalFields
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	p.Status = deriveStatus(p.CurrentParticipants, p.MaxParticipants, p.Status)
	p.UpdatedAt = time.Now().UTC()
	rec.party = p
	m.parties[id] = rec
	return nil
}

// DeleteParty removes the party. Messages referencing it stay behind.
func (m *MemoryStore) DeleteParty(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.parties[id]; !ok {
		return ErrNotFound
	}
	delete(m.parties, id)
	for i, pid := range m.partyOrder {
		if pid == id {
			m.partyOrder = append(m.partyOrder[:i], m.partyOrder[i+1:]...)
			break
		}
	}
	return nil
}

// AddParticipant joins a user to a party. The whole check-and-increment runs
// under the store lock, so racing joins serialize here.
func (m *MemoryStore) AddParticipant(partyID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.parties[partyID]
	if !ok {
		return ErrNotFound
	}
	for _, member := range rec.members {
		if member == userID {
			return ErrAlreadyParticipant
		}
	}
	p := rec.party
	if p.Status != domain.StatusOpen || p.CurrentParticipants >= p.MaxParticipants {
		return ErrPartyNotJoinable
	}
	rec.members = append(rec.members, userID)
	p.CurrentParticipants++
	p.Status = deriveStatus(p.CurrentParticipants, p.MaxParticipants, p.Status)
	p.UpdatedAt = time.Now().UTC()
	rec.party = p
	m.parties[partyID] = rec
	return nil
}

// RemoveParticipant removes a user from a party and re-derives status.
func (m *MemoryStore) RemoveParticipant(partyID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.parties[partyID]
	if !ok {
		return ErrNotFound
	}
	idx := -1
	for i, member := range rec.members {
		if member == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotParticipant
	}
	rec.members = append(rec.members[:idx], rec.members[idx+1:]...)
	p := rec.party
	p.CurrentParticipants--
	p.Status = deriveStatus(p.CurrentParticipants, p.MaxParticipants, p.Status)
	p.UpdatedAt = time.Now().UTC()
	rec.party = p
	m.parties[partyID] = rec
	return nil
}

// SearchParties filters parties; nearest-first when a geo filter is active,
// newest-first otherwise.
func (m *MemoryStore) SearchParties(f PartyFilter) ([]domain.Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	type scored struct {
		party domain.Party
		dist  float64
	}
	geoActive := !f.IsGlobal && f.Near != nil
	maxKm := f.MaxDistanceKm
	if maxKm <= 0 {
		maxKm = 50
	}
	matches := make([]scored, 0)
	for _, id := range m.partyOrder {
		rec := m.parties[id]
		p := rec.party
		if p.IsGlobal != f.IsGlobal {
			continue
		}
		if f.Location != "" && !strings.Contains(strings.ToLower(p.Location), strings.ToLower(f.Location)) {
			continue
		}
		if f.MaxPrice != nil && p.EstimatedPrice > *f.MaxPrice {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		dist := 0.0
		if geoActive {
			if p.Coordinates == nil {
				continue
			}
			dist = haversineKm(*f.Near, *p.Coordinates)
			if dist > maxKm {
				continue
			}
		}
		matches = append(matches, scored{party: m.populateLocked(rec), dist: dist})
	}
	if geoActive {
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].dist < matches[j].dist })
	} else {
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].party.CreatedAt.After(matches[j].party.CreatedAt)
		})
	}
	parties := make([]domain.Party, 0, len(matches))
	for _, match := range matches {
		parties = append(parties, match.party)
	}
	return parties, nil
}

// ListPartiesByMember returns parties the user owns or has joined, newest
// first.
func (m *MemoryStore) ListPartiesByMember(userID string) ([]domain.Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	parties := make([]domain.Party, 0)
	for _, id := range m.partyOrder {
		rec := m.parties[id]
		for _, member := range rec.members {
			if member == userID {
				parties = append(parties, m.populateLocked(rec))
				break
			}
		}
	}
	sort.SliceStable(parties, func(i, j int) bool {
		return parties[i].CreatedAt.After(parties[j].CreatedAt)
	})
	return parties, nil
}

// AppendMessage records a message and returns it with references populated.
func (m *MemoryStore) AppendMessage(msg domain.Message) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.Sender = m.userRefLocked(msg.Sender.ID)
	if msg.Recipient != nil {
		ref := m.userRefLocked(msg.Recipient.ID)
		msg.Recipient = &ref
	}
	m.messages = append(m.messages, msg)
	return msg, nil
}

// ListPartyMessages returns a party's messages in chronological order.
func (m *MemoryStore) ListPartyMessages(partyID string, private bool, userID, partnerID string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Message, 0)
	for _, msg := range m.messages {
		if msg.PartyID != partyID || msg.IsPrivate != private {
			continue
		}
		if private {
			recipient := ""
			if msg.Recipient != nil {
				recipient = msg.Recipient.ID
			}
			pair := (msg.Sender.ID == userID && recipient == partnerID) ||
				(msg.Sender.ID == partnerID && recipient == userID)
			if !pair {
				continue
			}
		}
		out = append(out, msg)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListDirectMessages returns the user's private messages, newest first.
func (m *MemoryStore) ListDirectMessages(userID string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Message, 0)
	for _, msg := range m.messages {
		if !msg.IsPrivate {
			continue
		}
		recipient := ""
		if msg.Recipient != nil {
			recipient = msg.Recipient.ID
		}
		if msg.Sender.ID != userID && recipient != userID {
			continue
		}
		out = append(out, msg)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// AppendAdvisorExchange persists the user/assistant pair together.
func (m *MemoryStore) AppendAdvisorExchange(userMsg, assistantMsg domain.AdvisorMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !assistantMsg.CreatedAt.After(userMsg.CreatedAt) {
		assistantMsg.CreatedAt = userMsg.CreatedAt.Add(time.Millisecond)
	}
	m.advisor = append(m.advisor, userMsg, assistantMsg)
	return nil
}

// ListAdvisorMessages returns the most recent advisor messages for the
// scope in chronological order.
func (m *MemoryStore) ListAdvisorMessages(userID, partyID string, limit int) ([]domain.AdvisorMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		return []domain.AdvisorMessage{}, nil
	}
	matched := m.advisorMessagesLocked(userID, partyID)
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

// CountAdvisorMessages counts advisor messages for the scope.
func (m *MemoryStore) CountAdvisorMessages(ctx context.Context, userID, partyID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.advisorMessagesLocked(userID, partyID)), nil
}

// DeleteAdvisorMessages removes all advisor history owned by the user.
func (m *MemoryStore) DeleteAdvisorMessages(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.advisor[:0]
	for _, msg := range m.advisor {
		if msg.UserID != userID {
			kept = append(kept, msg)
		}
	}
	m.advisor = kept
	return nil
}

// SaveDestination stores or updates a destination document.
func (m *MemoryStore) SaveDestination(d domain.Destination) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destinations[d.ID] = d
	return nil
}

// GetDestination retrieves a destination with full details.
func (m *MemoryStore) GetDestination(id string) (domain.Destination, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dest, ok := m.destinations[id]
	return dest, ok, nil
}

// GetDestinationByName looks up a destination by exact name, case
// insensitively.
func (m *MemoryStore) GetDestinationByName(name string) (domain.Destination, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, dest := range m.destinations {
		if strings.EqualFold(dest.Name, name) {
			return dest, true, nil
		}
	}
	return domain.Destination{}, false, nil
}

// SearchDestinations matches names, short descriptions, and attraction
// names; empty query lists everything. Sorted by name.
func (m *MemoryStore) SearchDestinations(query string) ([]domain.Destination, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	query = strings.ToLower(query)
	out := make([]domain.Destination, 0, len(m.destinations))
	for _, dest := range m.destinations {
		if query != "" && !destinationMatches(dest, query) {
			continue
		}
		out = append(out, dest)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func destinationMatches(d domain.Destination, query string) bool {
	if strings.Contains(strings.ToLower(d.Name), query) ||
		strings.Contains(strings.ToLower(d.ShortDescription), query) {
		return true
	}
	for _, attraction := range d.Attractions {
		if strings.Contains(strings.ToLower(attraction.Name), query) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) advisorMessagesLocked(userID, partyID string) []domain.AdvisorMessage {
	matched := make([]domain.AdvisorMessage, 0)
	for _, msg := range m.advisor {
		if msg.UserID != userID {
			continue
		}
		if partyID != "" && msg.PartyID != partyID {
			continue
		}
		matched = append(matched, msg)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched
}

func (m *MemoryStore) populateLocked(rec partyRecord) domain.Party {
	p := rec.party
	p.Owner = m.userRefLocked(p.Owner.ID)
	p.Participants = make([]domain.UserRef, 0, len(rec.members))
	for _, member := range rec.members {
		p.Participants = append(p.Participants, m.userRefLocked(member))
	}
	return p
}

func (m *MemoryStore) userRefLocked(id string) domain.UserRef {
	user, ok := m.users[id]
	if !ok {
		return domain.UserRef{ID: id}
	}
	return domain.UserRef{ID: user.ID, Username: user.Username, ProfilePhoto: user.ProfilePhoto}
}

func deriveStatus(current, max int, status domain.PartyStatus) domain.PartyStatus {
	if current >= max {
		return domain.StatusFull
	}
	if status != domain.StatusClosed {
		return domain.StatusOpen
	}
	return status
}

func haversineKm(a, b domain.GeoPoint) float64 {
	const earthRadiusKm = 6371
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
