package places

import (
	"context"

	"googlemaps.github.io/maps"
)

// Summary is the slice of a Place Details response that gets persisted on a
// meeting request.
type Summary struct {
	GooglePlaceID string  `json:"google_place_id"`
	Name          string  `json:"name"`
	Address       string  `json:"address"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}

type Client interface {
	Details(ctx context.Context, placeID string) (*Summary, error)
}

type googleClient struct {
	c *maps.Client
}

func NewGoogleClient(apiKey string) (Client, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &googleClient{c: c}, nil
}

func (g *googleClient) Details(ctx context.Context, placeID string) (*Summary, error) {
	res, err := g.c.PlaceDetails(ctx, &maps.PlaceDetailsRequest{PlaceID: placeID})
	if err != nil {
		return nil, err
	}

	return &Summary{
		GooglePlaceID: res.PlaceID,
		Name:          res.Name,
		Address:       res.FormattedAddress,
		Latitude:      res.Geometry.Location.Lat,
		Longitude:     res.Geometry.Location.Lng,
	}, nil
}
