package domain

import "context"

// Place is an address search result.
type Place struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Relevance float64 `json:"relevance"`
}

// PlaceSearcher resolves free-text address queries near Juneau.
type PlaceSearcher interface {
	Search(ctx context.Context, query string) ([]Place, error)
}
