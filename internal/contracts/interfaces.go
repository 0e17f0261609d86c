package contracts

import "context"

// UniverseProvider resolves the tradable symbols for this refresh
type UniverseProvider interface {
	Resolve(ctx context.Context) ([]SymbolMeta, error)
}

// MetricFetcher builds one symbol's record in two stages.
// FetchPrices fails with ErrInsufficientHistory or ErrSourceUnavailable.
// FetchFundamentals is best-effort; callers treat its failure as ErrPartialData.
type MetricFetcher interface {
	FetchPrices(ctx context.Context, meta SymbolMeta) (*MetricRecord, error)
	FetchFundamentals(ctx context.Context, symbol string) (*Fundamentals, error)
}

// SnapshotStore persists the snapshot as a whole
type SnapshotStore interface {
	Load() ([]MetricRecord, error)
	Save(records []MetricRecord) error
}
