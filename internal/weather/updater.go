package weather

import (
	"context"
	"fmt"
	"sync"

	"nmcweather/internal/geo"
	"nmcweather/internal/logger"
)

// DirectorySource hands out the reference directory, bootstrapping it if needed
type DirectorySource interface {
	ResolveOrBootstrap(ctx context.Context) (*geo.Directory, error)
}

// Updater is the entry point for callers: it tracks the last resolved
// location and refreshes the snapshot for it.
type Updater struct {
	directory DirectorySource
	client    *Client

	mu       sync.Mutex
	location geo.ResolvedLocation
}

// NewUpdater creates an updater whose last known location starts at fallback
func NewUpdater(directory DirectorySource, client *Client, fallback geo.ResolvedLocation) *Updater {
	client.Snapshot().SetLocation(fallback)
	return &Updater{
		directory: directory,
		client:    client,
		location:  fallback,
	}
}

// ResolveAndRefresh resolves placemark to a station and refreshes it. A nil
// placemark refreshes the last known station. If the directory cannot be
// loaded or the placemark does not resolve, the last known location is kept,
// nothing is fetched and the error is returned.
func (u *Updater) ResolveAndRefresh(ctx context.Context, placemark *geo.Placemark, notify func(View)) error {
	if placemark == nil {
		u.RefreshByLastKnownStation(ctx, notify)
		return nil
	}

	dir, err := u.directory.ResolveOrBootstrap(ctx)
	if err != nil {
		return err
	}

	loc, err := geo.Resolve(dir, *placemark)
	if err != nil {
		return fmt.Errorf("resolve placemark: %w", err)
	}
	logger.Info("Resolved %s %s %s to station %s", loc.ProvinceName, loc.CityName, loc.DistrictName, loc.Station.Code)

	u.mu.Lock()
	u.location = *loc
	u.mu.Unlock()
	u.client.Snapshot().SetLocation(*loc)

	u.client.Refresh(ctx, loc.Station.Code, notify)
	return nil
}

// RefreshByLastKnownStation refreshes the station of the last resolved location
func (u *Updater) RefreshByLastKnownStation(ctx context.Context, notify func(View)) Outcome {
	loc := u.Location()
	if loc.Station == nil {
		logger.Warn("No known station to refresh")
		return Outcome{}
	}
	return u.client.Refresh(ctx, loc.Station.Code, notify)
}

// Snapshot returns a copy of the current weather snapshot
func (u *Updater) Snapshot() View {
	return u.client.Snapshot().View()
}

// Location returns the last known location
func (u *Updater) Location() geo.ResolvedLocation {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.location
}
