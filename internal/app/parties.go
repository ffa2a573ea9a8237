package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"tripparty/internal/util"
	"tripparty/pkg/domain"
	"tripparty/pkg/store"
)

// CreatePartyInput carries the fields for a new party.
type CreatePartyInput struct {
	Location         string
	Description      string
	EstimatedPrice   float64
	MaxParticipants  int
	IsGlobal         bool
	Latitude         *float64
	Longitude        *float64
	ImageURL         string
	AdditionalFields map[string]any
}

// SearchPartiesInput narrows a party search.
type SearchPartiesInput struct {
	Location      string
	MaxPrice      *float64
	Status        string
	IsGlobal      bool
	Latitude      *float64
	Longitude     *float64
	MaxDistanceKm float64
}

// MyPartiesResult splits a user's parties into owned and joined.
type MyPartiesResult struct {
	Created []domain.Party `json:"created"`
	Joined  []domain.Party `json:"joined"`
}

// CreateParty creates a party with the owner as its first participant.
func (a *App) CreateParty(ownerID string, in CreatePartyInput) (domain.Party, error) {
	in.Location = strings.TrimSpace(in.Location)
	in.Description = strings.TrimSpace(in.Description)
	if in.Location == "" {
		return domain.Party{}, E(KindValidation, "location is required")
	}
	if in.Description == "" {
		return domain.Party{}, E(KindValidation, "description is required")
	}
	if in.EstimatedPrice < 0 {
		return domain.Party{}, E(KindValidation, "estimatedPrice must not be negative")
	}
	if in.MaxParticipants < 1 {
		return domain.Party{}, E(KindValidation, "maxParticipants must be at least 1")
	}
	var coords *domain.GeoPoint
	if !in.IsGlobal {
		if in.Latitude == nil || in.Longitude == nil {
			return domain.Party{}, E(KindValidation, "coordinates are required for local parties")
		}
		coords = &domain.GeoPoint{Latitude: *in.Latitude, Longitude: *in.Longitude}
	}

	now := time.Now().UTC()
	party := domain.Party{
		ID:                  util.NewID(),
		Owner:               domain.UserRef{ID: ownerID},
		CurrentParticipants: 1,
		MaxParticipants:     in.MaxParticipants,
		Status:              domain.StatusOpen,
		IsGlobal:            in.IsGlobal,
		Coordinates:         coords,
		Location:            in.Location,
		Description:         in.Description,
		EstimatedPrice:      in.EstimatedPrice,
		ImageURL:            in.ImageURL,
		AdditionalFields:    in.AdditionalFields,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := a.store.CreateParty(party); err != nil {
		return domain.Party{}, fmt.Errorf("create party: %w", err)
	}
	return a.GetParty(party.ID)
}

// GetParty returns a single party with populated references.
func (a *App) GetParty(partyID string) (domain.Party, error) {
	party, ok, err := a.store.GetParty(partyID)
	if err != nil {
		return domain.Party{}, fmt.Errorf("load party: %w", err)
	}
	if !ok {
		return domain.Party{}, E(KindNotFound, "party not found")
	}
	return party, nil
}

// JoinParty adds the user to the party. The capacity check and count
// increment are atomic at the store level.
func (a *App) JoinParty(partyID, userID string) (domain.Party, error) {
	if err := a.store.AddParticipant(partyID, userID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return domain.Party{}, E(KindNotFound, "party not found")
		case errors.Is(err, store.ErrAlreadyParticipant):
			return domain.Party{}, E(KindConflict, "already a participant")
		case errors.Is(err, store.ErrPartyNotJoinable):
			return domain.Party{}, E(KindInvalidState, "party is full or closed")
		}
		return domain.Party{}, fmt.Errorf("join party: %w", err)
	}
	return a.GetParty(partyID)
}

// LeaveParty removes the user from the party. The owner cannot leave; they
// must delete the party instead.
func (a *App) LeaveParty(partyID, userID string) (domain.Party, error) {
	party, ok, err := a.store.GetParty(partyID)
	if err != nil {
		return domain.Party{}, fmt.Errorf("load party: %w", err)
	}
	if !ok {
		return domain.Party{}, E(KindNotFound, "party not found")
	}
	if party.Owner.ID == userID {
		return domain.Party{}, E(KindForbidden, "owner cannot leave their own party")
	}
	if err := a.store.RemoveParticipant(partyID, userID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return domain.Party{}, E(KindNotFound, "party not found")
		case errors.Is(err, store.ErrNotParticipant):
			return domain.Party{}, E(KindInvalidState, "not a participant")
		}
		return domain.Party{}, fmt.Errorf("leave party: %w", err)
	}
	return a.GetParty(partyID)
}

// Patch keys the owner may change. Anything else is rejected.
var allowedPatchKeys = map[string]bool{
	"location":         true,
	"description":      true,
	"estimatedPrice":   true,
	"maxParticipants":  true,
	"imageUrl":         true,
	"additionalFields": true,
	"status":           true,
}

// UpdateParty applies an owner patch. The status rule is re-applied on
// save, so raising maxParticipants can reopen a full party.
func (a *App) UpdateParty(partyID, requesterID string, patch map[string]any) (domain.Party, error) {
	party, ok, err := a.store.GetParty(partyID)
	if err != nil {
		return domain.Party{}, fmt.Errorf("load party: %w", err)
	}
	if !ok {
		return domain.Party{}, E(KindNotFound, "party not found")
	}
	if party.Owner.ID != requesterID {
		return domain.Party{}, E(KindForbidden, "only the owner can update the party")
	}
	if len(patch) == 0 {
		return domain.Party{}, E(KindValidation, "no fields to update")
	}
	for key := range patch {
		if !allowedPatchKeys[key] {
			return domain.Party{}, E(KindValidation, fmt.Sprintf("field %q cannot be updated", key))
		}
	}
	storePatch, err := buildPartyPatch(patch)
	if err != nil {
		return domain.Party{}, err
	}
	if err := a.store.UpdateParty(partyID, storePatch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Party{}, E(KindNotFound, "party not found")
		}
		return domain.Party{}, fmt.Errorf("update party: %w", err)
	}
	return a.GetParty(partyID)
}

func buildPartyPatch(patch map[string]any) (store.PartyPatch, error) {
	var out store.PartyPatch
	if raw, ok := patch["location"]; ok {
		s, ok := raw.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return out, E(KindValidation, "location must be a non-empty string")
		}
		out.Location = &s
	}
	if raw, ok := patch["description"]; ok {
		s, ok := raw.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return out, E(KindValidation, "description must be a non-empty string")
		}
		out.Description = &s
	}
	if raw, ok := patch["estimatedPrice"]; ok {
		price, ok := asFloat(raw)
		if !ok || price < 0 {
			return out, E(KindValidation, "estimatedPrice must be a non-negative number")
		}
		out.EstimatedPrice = &price
	}
	if raw, ok := patch["maxParticipants"]; ok {
		f, ok := asFloat(raw)
		if !ok || f < 1 || f != float64(int(f)) {
			return out, E(KindValidation, "maxParticipants must be a positive integer")
		}
		max := int(f)
		out.MaxParticipants = &max
	}
	if raw, ok := patch["imageUrl"]; ok {
		s, ok := raw.(string)
		if !ok {
			return out, E(KindValidation, "imageUrl must be a string")
		}
		out.ImageURL = &s
	}
	if raw, ok := patch["additionalFields"]; ok {
		fields, ok := raw.(map[string]any)
		if !ok {
			return out, E(KindValidation, "additionalFields must be an object")
		}
		out.AdditionalFields = fields
	}
	if raw, ok := patch["status"]; ok {
		s, _ := raw.(string)
		status := domain.PartyStatus(s)
		switch status {
		case domain.StatusOpen, domain.StatusFull, domain.StatusClosed:
			out.Status = &status
		default:
			return out, E(KindValidation, "status must be open, full, or closed")
		}
	}
	return out, nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// DeleteParty removes the party permanently. Messages referencing it are
// not cascade-deleted; the stored cover image is removed best-effort.
func (a *App) DeleteParty(ctx context.Context, partyID, requesterID string) error {
	party, ok, err := a.store.GetParty(partyID)
	if err != nil {
		return fmt.Errorf("load party: %w", err)
	}
	if !ok {
		return E(KindNotFound, "party not found")
	}
	if party.Owner.ID != requesterID {
		return E(KindForbidden, "only the owner can delete the party")
	}
	if err := a.store.DeleteParty(partyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return E(KindNotFound, "party not found")
		}
		return fmt.Errorf("delete party: %w", err)
	}
	if a.objects != nil && party.ImageURL != "" {
		// A leaked object is preferable to failing the delete.
		_ = a.objects.Delete(ctx, partyImageKey(partyID))
	}
	return nil
}

// SearchParties filters parties. Nearest-first when coordinates are given
// for a local search, newest-first otherwise.
func (a *App) SearchParties(in SearchPartiesInput) ([]domain.Party, error) {
	filter := store.PartyFilter{
		Location: strings.TrimSpace(in.Location),
		MaxPrice: in.MaxPrice,
		IsGlobal: in.IsGlobal,
	}
	if in.Status != "" {
		status := domain.PartyStatus(in.Status)
		switch status {
		case domain.StatusOpen, domain.StatusFull, domain.StatusClosed:
			filter.Status = status
		default:
			return nil, E(KindValidation, "status must be open, full, or closed")
		}
	}
	if !in.IsGlobal && in.Latitude != nil && in.Longitude != nil {
		filter.Near = &domain.GeoPoint{Latitude: *in.Latitude, Longitude: *in.Longitude}
		filter.MaxDistanceKm = in.MaxDistanceKm
		if filter.MaxDistanceKm <= 0 {
			filter.MaxDistanceKm = defaultSearchRadiusKm
		}
	}
	parties, err := a.store.SearchParties(filter)
	if err != nil {
		return nil, fmt.Errorf("search parties: %w", err)
	}
	return parties, nil
}

// MyParties returns the user's parties split into created and joined.
func (a *App) MyParties(userID string) (MyPartiesResult, error) {
	parties, err := a.store.ListPartiesByMember(userID)
	if err != nil {
		return MyPartiesResult{}, fmt.Errorf("list parties: %w", err)
	}
	result := MyPartiesResult{
		Created: make([]domain.Party, 0),
		Joined:  make([]domain.Party, 0),
	}
	for _, party := range parties {
		if party.Owner.ID == userID {
			result.Created = append(result.Created, party)
		} else {
			result.Joined = append(result.Joined, party)
		}
	}
	return result, nil
}

// partyImageKey is the fixed object key for a party's cover image, so
// replacing the image overwrites the previous object.
func partyImageKey(partyID string) string {
	return "parties/" + partyID + "/cover"
}

// SetPartyImage uploads a party image to object storage and records its
// key as the party's image URL.
func (a *App) SetPartyImage(ctx context.Context, partyID, requesterID string, r io.Reader, size int64, contentType string) (domain.Party, error) {
	if a.objects == nil {
		return domain.Party{}, E(KindService, "object storage not configured")
	}
	party, ok, err := a.store.GetParty(partyID)
	if err != nil {
		return domain.Party{}, fmt.Errorf("load party: %w", err)
	}
	if !ok {
		return domain.Party{}, E(KindNotFound, "party not found")
	}
	if party.Owner.ID != requesterID {
		return domain.Party{}, E(KindForbidden, "only the owner can change the party image")
	}
	key := partyImageKey(partyID)
	if err := a.objects.Put(ctx, key, r, size, contentType); err != nil {
		return domain.Party{}, wrapE(KindService, "image upload failed", err)
	}
	imageURL, err := a.objects.PresignGet(ctx, key, 7*24*time.Hour)
	if err != nil {
		return domain.Party{}, wrapE(KindService, "image upload failed", err)
	}
	if err := a.store.UpdateParty(partyID, store.PartyPatch{ImageURL: &imageURL}); err != nil {
		return domain.Party{}, fmt.Errorf("update party image: %w", err)
	}
	return a.GetParty(partyID)
}
