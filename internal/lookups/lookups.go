// Package lookups serves the shared code/name reference lists.
package lookups

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	FuelTypes        = "fuel_type"
	LubeOilTypes     = "lube_oil_type"
	ShipTypes        = "ship_type"
	IceClasses       = "ice_class"
	MachineryTypes   = "machinery_type"
	ReportTypes      = "report_type"
	TaskStatuses     = "task_status"
	Products         = "product"
	WaterTypes       = "water_type"
	OilyResidueTypes = "oily_residue_type"
)

var ErrUnknownCategory = errors.New("unknown lookup category")

var known = map[string]bool{
	FuelTypes: true, LubeOilTypes: true, ShipTypes: true, IceClasses: true, MachineryTypes: true,
	ReportTypes: true, TaskStatuses: true, Products: true, WaterTypes: true, OilyResidueTypes: true,
}

type Item struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Source loads one category from the database.
type Source interface {
	List(ctx context.Context, category string) ([]Item, error)
}

type Repo struct {
	pg *pgxpool.Pool
}

func NewRepo(pg *pgxpool.Pool) *Repo { return &Repo{pg: pg} }

func (r *Repo) List(ctx context.Context, category string) ([]Item, error) {
	const q = `
SELECT code, name FROM lookup_values
WHERE category = $1 AND is_active
ORDER BY sort_order, name`
	rows, err := r.pg.Query(ctx, q, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.Code, &it.Name); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Service caches Source results in redis. A nil client disables caching.
type Service struct {
	src    Source
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewService(src Source, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{src: src, rdb: rdb, ttl: ttl, logger: logger}
}

func cacheKey(category string) string { return "lookup:" + category }

func (s *Service) List(ctx context.Context, category string) ([]Item, error) {
	if !known[category] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	if s.rdb != nil {
		raw, err := s.rdb.Get(ctx, cacheKey(category)).Bytes()
		switch {
		case err == nil:
			var items []Item
			if json.Unmarshal(raw, &items) == nil {
				return items, nil
			}
		case !errors.Is(err, redis.Nil):
			s.logger.Warn("lookup cache read failed", zap.String("category", category), zap.Error(err))
		}
	}

	items, err := s.src.List(ctx, category)
	if err != nil {
		return nil, err
	}
	if s.rdb != nil {
		if raw, err := json.Marshal(items); err == nil {
			if err := s.rdb.Set(ctx, cacheKey(category), raw, s.ttl).Err(); err != nil {
				s.logger.Warn("lookup cache write failed", zap.String("category", category), zap.Error(err))
			}
		}
	}
	return items, nil
}

// Has reports whether code is an active value of category.
func (s *Service) Has(ctx context.Context, category, code string) (bool, error) {
	items, err := s.List(ctx, category)
	if err != nil {
		return false, err
	}
	for _, it := range items {
		if it.Code == code {
			return true, nil
		}
	}
	return false, nil
}
