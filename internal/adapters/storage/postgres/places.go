package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PabloGalante/docent-agent/internal/domain"
	"github.com/PabloGalante/docent-agent/internal/observability"
)

// PlaceLocator answers radius searches against PostGIS tables laid out as in
// SchemaSQL.
type PlaceLocator struct {
	pool *pgxpool.Pool
}

// Connect opens a pool and waits for the database to answer a ping, backing off
// between attempts for up to maxWait.
func Connect(ctx context.Context, databaseURL string, maxWait time.Duration) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect to database: %w", err)
	}

	log := observability.LoggerFromContext(ctx)
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, pool.Ping(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxWait),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("database not ready", "error", err, "retry_in", next.String())
		}),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping database: %w", err)
	}
	return pool, nil
}

func NewPlaceLocator(pool *pgxpool.Pool) *PlaceLocator {
	return &PlaceLocator{pool: pool}
}

// SchemaSQL creates the tables PlaceLocator reads. It is idempotent.
const SchemaSQL = `
CREATE EXTENSION IF NOT EXISTS postgis;
CREATE TABLE IF NOT EXISTS places (
    id        text PRIMARY KEY,
    name      text NOT NULL,
    location  geography(Point, 4326) NOT NULL,
    address   text,
    city      text,
    country   text,
    narrative text,
    is_active bool NOT NULL DEFAULT true
);
CREATE INDEX IF NOT EXISTS places_location_idx ON places USING GIST (location);
CREATE TABLE IF NOT EXISTS place_photos (
    place_id text NOT NULL REFERENCES places (id) ON DELETE CASCADE,
    url      text NOT NULL,
    position int  NOT NULL DEFAULT 0
);`

// Photos are aggregated per row in a subquery, so no GROUP BY is needed.
const searchNearbySQL = `
SELECT p.id, p.name,
       ST_Y(p.location::geometry), ST_X(p.location::geometry),
       COALESCE(p.address, ''), COALESCE(p.city, ''), COALESCE(p.country, ''),
       COALESCE(p.narrative, ''), p.is_active,
       COALESCE((SELECT array_agg(ph.url ORDER BY ph.position)
                 FROM place_photos ph WHERE ph.place_id = p.id), '{}'),
       ST_Distance(p.location, ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography) AS distance
FROM places p
WHERE ST_DWithin(p.location, ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography, $3)
  AND ($4 = false OR p.is_active)
  AND ($5 = false OR COALESCE(btrim(p.narrative), '') <> '')
ORDER BY distance
LIMIT $6`

// SearchNearby returns places within the radius (meters), closest first.
func (l *PlaceLocator) SearchNearby(ctx context.Context, q domain.NearbyQuery) ([]*domain.PlaceCandidate, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}

	rows, err := l.pool.Query(ctx, searchNearbySQL,
		q.Latitude, q.Longitude, q.RadiusMeters, q.ActiveOnly, q.HasNarrative, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: search nearby: %w", err)
	}

	places, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.PlaceCandidate, error) {
		var (
			p  domain.PlaceCandidate
			id string
		)
		err := row.Scan(&id, &p.Name,
			&p.Location.Latitude, &p.Location.Longitude,
			&p.Location.Address, &p.Location.City, &p.Location.Country,
			&p.Narrative, &p.Active, &p.PhotoURLs, &p.DistanceMeters)
		p.ID = domain.PlaceID(id)
		return &p, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan nearby places: %w", err)
	}
	return places, nil
}
