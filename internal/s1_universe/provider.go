package s1_universe

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/sp500scope/backend/internal/contracts"
	"github.com/wonny/sp500scope/backend/internal/external/wikipedia"
	"github.com/wonny/sp500scope/backend/pkg/logger"
	"github.com/wonny/sp500scope/backend/pkg/redis"
)

// ListingSource returns the raw constituents rows
type ListingSource interface {
	FetchConstituents(ctx context.Context) ([]wikipedia.Constituent, error)
}

// Provider resolves the universe for one refresh
type Provider struct {
	source ListingSource
	cache  *redis.Cache
	logger *logger.Logger
	now    func() time.Time
}

// NewProvider creates a new universe provider. cache may be nil.
func NewProvider(source ListingSource, cache *redis.Cache, log *logger.Logger) *Provider {
	return &Provider{
		source: source,
		cache:  cache,
		logger: log.WithField("module", "s1_universe"),
		now:    time.Now,
	}
}

// WithClock sets the clock that dates the universe cache key
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	return p
}

// Resolve returns the constituents in listing order, normalized and de-duplicated.
// Any failure to obtain at least one symbol is ErrSourceUnavailable.
func (p *Provider) Resolve(ctx context.Context) ([]contracts.SymbolMeta, error) {
	key := p.cacheKey()

	if p.cache != nil {
		var cached []contracts.SymbolMeta
		if found, err := p.cache.Get(ctx, key, &cached); err == nil && found && len(cached) > 0 {
			p.logger.WithField("count", len(cached)).Debug("Universe served from cache")
			return cached, nil
		}
	}

	rows, err := p.source.FetchConstituents(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve universe: %w: %w", contracts.ErrSourceUnavailable, err)
	}

	symbols := Normalize(rows)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("resolve universe: listing has no usable rows: %w", contracts.ErrSourceUnavailable)
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, symbols, redis.TTLLong); err != nil {
			p.logger.WithError(err).Warn("Failed to cache universe")
		}
	}

	p.logger.WithFields(map[string]interface{}{
		"listed":   len(rows),
		"resolved": len(symbols),
	}).Info("Universe resolved")

	return symbols, nil
}

func (p *Provider) cacheKey() string {
	return redis.UniverseKey(contracts.DateOf(p.now()))
}

// Normalize converts raw listing rows into SymbolMeta.
// Symbols are normalized ("BRK.B" -> "BRK-B"), the first occurrence of a
// duplicate wins, and a missing sector or industry becomes the unknown sentinel.
func Normalize(rows []wikipedia.Constituent) []contracts.SymbolMeta {
	seen := make(map[string]bool, len(rows))
	out := make([]contracts.SymbolMeta, 0, len(rows))

	for _, row := range rows {
		symbol := contracts.NormalizeSymbol(row.Symbol)
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true

		industry := row.SubIndustry
		if industry == "" {
			industry = contracts.UnknownSector
		}

		name := row.Security
		if name == "" {
			name = symbol
		}

		out = append(out, contracts.SymbolMeta{
			Symbol:   symbol,
			Name:     name,
			Sector:   contracts.NormalizeSector(row.Sector),
			Industry: industry,
		})
	}

	return out
}
