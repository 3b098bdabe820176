package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geoagg/internal/adapters/geojson"
	"github.com/samirrijal/geoagg/internal/adapters/postgres"
	"github.com/samirrijal/geoagg/internal/adapters/valkey"
	"github.com/samirrijal/geoagg/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Aggregations *usecases.AggregationService
	Encoder      geojson.Encoder
	NATS         *nats.Conn
	DB           *postgres.DB
	Cache        *valkey.Cache
	Version      string
}
