package geo

import (
	"context"
	"errors"
	"time"

	"github.com/sourcegraph/conc/pool"
	"nmcweather/api"
	"nmcweather/internal/errorutil"
	"nmcweather/internal/logger"
)

// DefaultStageTimeout bounds each of the two bootstrap stages
const DefaultStageTimeout = 10 * time.Second

// ReferenceSource serves the province and station reference lists.
// Implementations must return promptly once ctx is done; the stage bounds
// rely on it because stage 2 waits for every request it started.
type ReferenceSource interface {
	Provinces(ctx context.Context) ([]api.ProvinceRecord, error)
	Stations(ctx context.Context, provinceCode string) ([]api.StationRecord, error)
}

// Bootstrapper builds a Directory from the network in two stages: the
// province list, then every province's station list concurrently.
type Bootstrapper struct {
	source ReferenceSource

	// StageTimeout bounds stage 1 and, separately, the whole stage-2 fan-out
	StageTimeout time.Duration
	// MaxConcurrent caps stage-2 requests in flight; zero means one per province
	MaxConcurrent int
}

// NewBootstrapper creates a bootstrapper with the default stage timeout
func NewBootstrapper(source ReferenceSource) *Bootstrapper {
	return &Bootstrapper{
		source:       source,
		StageTimeout: DefaultStageTimeout,
	}
}

type provinceStations struct {
	code     string
	stations []Station
}

// Bootstrap fetches the full directory. Any stage-2 failure fails the whole
// bootstrap; a partial station table is never returned.
func (b *Bootstrapper) Bootstrap(ctx context.Context) (*Directory, error) {
	complete := logger.LogOperationStart("geo_bootstrap", nil)

	provinces, err := b.fetchProvinces(ctx)
	if err != nil {
		complete(err)
		return nil, err
	}

	stations, err := b.fetchStations(ctx, provinces)
	if err != nil {
		complete(err)
		return nil, err
	}

	complete(nil)
	logger.Info("Bootstrapped geo directory: %d provinces", len(provinces))
	return NewDirectory(provinces, stations), nil
}

func (b *Bootstrapper) stageTimeout() time.Duration {
	if b.StageTimeout <= 0 {
		return DefaultStageTimeout
	}
	return b.StageTimeout
}

func (b *Bootstrapper) fetchProvinces(ctx context.Context) ([]Province, error) {
	stageCtx, cancel := context.WithTimeout(ctx, b.stageTimeout())
	defer cancel()

	records, err := b.source.Provinces(stageCtx)
	if err != nil {
		if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
			return nil, stageTimeoutError("fetch provinces", err)
		}
		return nil, err
	}

	provinces := make([]Province, 0, len(records))
	for _, r := range records {
		provinces = append(provinces, provinceFromRecord(r))
	}
	return provinces, nil
}

func (b *Bootstrapper) fetchStations(ctx context.Context, provinces []Province) (map[string][]Station, error) {
	stageCtx, cancel := context.WithTimeout(ctx, b.stageTimeout())
	defer cancel()

	p := pool.NewWithResults[provinceStations]().
		WithContext(stageCtx).
		WithCancelOnError().
		WithFirstError()
	if b.MaxConcurrent > 0 {
		p = p.WithMaxGoroutines(b.MaxConcurrent)
	}

	for _, province := range provinces {
		province := province
		p.Go(func(ctx context.Context) (provinceStations, error) {
			records, err := b.source.Stations(ctx, province.Code)
			if err != nil {
				return provinceStations{}, err
			}
			list := make([]Station, 0, len(records))
			for _, r := range records {
				list = append(list, stationFromRecord(province, r))
			}
			return provinceStations{code: province.Code, stations: list}, nil
		})
	}

	results, err := p.Wait()
	if err != nil {
		if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
			return nil, stageTimeoutError("fetch stations", err)
		}
		return nil, &errorutil.NetworkError{
			Kind:       errorutil.KindNetwork,
			Operation:  "fetch stations",
			Underlying: err,
		}
	}

	stations := make(map[string][]Station, len(results))
	for _, r := range results {
		stations[r.code] = r.stations
	}
	return stations, nil
}

func stageTimeoutError(operation string, err error) *errorutil.NetworkError {
	return &errorutil.NetworkError{
		Kind:       errorutil.KindTimeout,
		Operation:  operation,
		Underlying: err,
	}
}
