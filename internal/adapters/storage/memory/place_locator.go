package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/PabloGalante/docent-agent/internal/domain"
)

const earthRadiusMeters = 6371008.8

// PlaceLocator searches a fixed set of places by great-circle distance.
// Used in local mode and tests in place of the PostGIS locator.
type PlaceLocator struct {
	mu     sync.RWMutex
	places []domain.PlaceCandidate
}

func NewPlaceLocator(places ...domain.PlaceCandidate) *PlaceLocator {
	return &PlaceLocator{places: places}
}

// AddPlace registers another place.
func (l *PlaceLocator) AddPlace(p domain.PlaceCandidate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.places = append(l.places, p)
}

// SearchNearby returns the places inside the radius, closest first.
func (l *PlaceLocator) SearchNearby(_ context.Context, q domain.NearbyQuery) ([]*domain.PlaceCandidate, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*domain.PlaceCandidate
	for _, p := range l.places {
		if q.ActiveOnly && !p.Active {
			continue
		}
		if q.HasNarrative && !p.HasNarrative() {
			continue
		}
		d := haversineMeters(q.Latitude, q.Longitude, p.Location.Latitude, p.Location.Longitude)
		if d > q.RadiusMeters {
			continue
		}

		c := p
		c.PhotoURLs = append([]string(nil), p.PhotoURLs...)
		c.DistanceMeters = d
		out = append(out, &c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceMeters < out[j].DistanceMeters
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}
