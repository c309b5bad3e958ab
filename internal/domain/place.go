package domain

import "strings"

// Location is where a place sits, plus the address parts used in prompts.
type Location struct {
	Latitude  float64
	Longitude float64
	Address   string
	City      string
	Country   string
}

// String renders the human-readable part of the location, e.g. "Seoul, South Korea".
func (l Location) String() string {
	var parts []string
	for _, p := range []string{l.Address, l.City, l.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// PlaceCandidate is a point of interest returned by the locator. It is a read-only
// snapshot owned by the locator.
type PlaceCandidate struct {
	ID        PlaceID
	Name      string
	Location  Location
	Narrative string
	PhotoURLs []string
	Active    bool

	// DistanceMeters is filled by locators that rank by distance.
	DistanceMeters float64
}

// HasNarrative reports whether the place has a story to tell.
func (p *PlaceCandidate) HasNarrative() bool {
	return strings.TrimSpace(p.Narrative) != ""
}

// FirstPhotoURL returns the first photo, or "" when there are none.
func (p *PlaceCandidate) FirstPhotoURL() string {
	if len(p.PhotoURLs) == 0 {
		return ""
	}
	return p.PhotoURLs[0]
}

// CompactedPlace is the subset of a place that goes into prompts.
type CompactedPlace struct {
	Name      string `json:"name"`
	Location  string `json:"location,omitempty"`
	Narrative string `json:"narrative,omitempty"`
}

// Compact projects the place onto the fields worth spending prompt tokens on.
func (p *PlaceCandidate) Compact() CompactedPlace {
	return CompactedPlace{
		Name:      p.Name,
		Location:  p.Location.String(),
		Narrative: strings.TrimSpace(p.Narrative),
	}
}

// NearbyQuery describes a radius search around a coordinate.
type NearbyQuery struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
	ActiveOnly   bool
	HasNarrative bool
	Limit        int
}
