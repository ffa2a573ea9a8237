package app

import (
	"fmt"
	"strings"
	"time"

	"tripparty/internal/util"
	"tripparty/pkg/domain"
)

const listAttractionLimit = 3

// CreateDestinationInput carries the fields for a new curated destination.
type CreateDestinationInput struct {
	Name             string              `json:"name"`
	ShortDescription string              `json:"shortDescription"`
	LongDescription  string              `json:"longDescription"`
	BannerURL        string              `json:"bannerUrl"`
	Weather          domain.Weather      `json:"weather"`
	Currency         domain.Currency     `json:"currency"`
	Languages        []domain.Language   `json:"languages"`
	Attractions      []domain.Attraction `json:"attractions"`
}

// DestinationListResult is the list view of destinations: attractions are
// truncated and the total matches the returned set.
type DestinationListResult struct {
	Destinations []domain.Destination `json:"destinations"`
	Total        int                  `json:"total"`
}

// ListDestinations returns destinations matching the optional query,
// sorted by name. The list view keeps only the first few attractions.
func (a *App) ListDestinations(query string) (DestinationListResult, error) {
	destinations, err := a.store.SearchDestinations(strings.TrimSpace(query))
	if err != nil {
		return DestinationListResult{}, fmt.Errorf("search destinations: %w", err)
	}
	for i := range destinations {
		if len(destinations[i].Attractions) > listAttractionLimit {
			destinations[i].Attractions = destinations[i].Attractions[:listAttractionLimit]
		}
		destinations[i].LongDescription = ""
	}
	return DestinationListResult{Destinations: destinations, Total: len(destinations)}, nil
}

// CreateDestination adds a curated destination. Names are unique, compared
// case insensitively.
func (a *App) CreateDestination(in CreateDestinationInput) (domain.Destination, error) {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return domain.Destination{}, E(KindValidation, "name is required")
	case strings.TrimSpace(in.ShortDescription) == "":
		return domain.Destination{}, E(KindValidation, "shortDescription is required")
	case strings.TrimSpace(in.LongDescription) == "":
		return domain.Destination{}, E(KindValidation, "longDescription is required")
	case strings.TrimSpace(in.BannerURL) == "":
		return domain.Destination{}, E(KindValidation, "bannerUrl is required")
	case in.Weather.Average == "":
		return domain.Destination{}, E(KindValidation, "weather is required")
	case in.Currency.Code == "":
		return domain.Destination{}, E(KindValidation, "currency is required")
	case len(in.Languages) == 0:
		return domain.Destination{}, E(KindValidation, "languages are required")
	case len(in.Attractions) == 0:
		return domain.Destination{}, E(KindValidation, "attractions are required")
	}
	if _, exists, err := a.store.GetDestinationByName(in.Name); err != nil {
		return domain.Destination{}, fmt.Errorf("check destination name: %w", err)
	} else if exists {
		return domain.Destination{}, E(KindConflict, "a destination with this name already exists")
	}

	now := time.Now().UTC()
	dest := domain.Destination{
		ID:               util.NewID(),
		Name:             in.Name,
		ShortDescription: in.ShortDescription,
		LongDescription:  in.LongDescription,
		BannerURL:        in.BannerURL,
		Weather:          in.Weather,
		Currency:         in.Currency,
		Languages:        in.Languages,
		Attractions:      in.Attractions,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := a.store.SaveDestination(dest); err != nil {
		return domain.Destination{}, fmt.Errorf("save destination: %w", err)
	}
	return dest, nil
}

// GetDestination returns the full destination document.
func (a *App) GetDestination(id string) (domain.Destination, error) {
	dest, ok, err := a.store.GetDestination(id)
	if err != nil {
		return domain.Destination{}, fmt.Errorf("load destination: %w", err)
	}
	if !ok {
		return domain.Destination{}, E(KindNotFound, "destination not found")
	}
	return dest, nil
}
