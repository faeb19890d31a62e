package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc"
	"nmcweather/api"
	"nmcweather/internal/errorutil"
	"nmcweather/internal/logger"
)

// DefaultRefreshTimeout bounds the whole refresh fan-out
const DefaultRefreshTimeout = 10 * time.Second

// Source serves per-station weather payloads. Implementations must return
// promptly once ctx is done, since Refresh waits for every sub-fetch.
type Source interface {
	Realtime(ctx context.Context, stationCode string) (*api.RealtimeResponse, error)
	Forecast(ctx context.Context, stationCode string) ([]api.ForecastResponse, error)
	AirQuality(ctx context.Context, stationCode string) (*api.AirQualityResponse, error)
}

// Outcome reports which field groups a refresh updated
type Outcome struct {
	Current    bool
	Forecast   bool
	AirQuality bool
}

// Any reports whether at least one group was updated
func (o Outcome) Any() bool {
	return o.Current || o.Forecast || o.AirQuality
}

// Client fetches weather for a station and merges it into a snapshot
type Client struct {
	source   Source
	snapshot *Snapshot

	RefreshTimeout time.Duration
}

// NewClient creates a client writing into snapshot
func NewClient(source Source, snapshot *Snapshot) *Client {
	return &Client{
		source:         source,
		snapshot:       snapshot,
		RefreshTimeout: DefaultRefreshTimeout,
	}
}

// Snapshot returns the snapshot the client writes into
func (c *Client) Snapshot() *Snapshot {
	return c.snapshot
}

// Refresh runs the sub-fetches for stationCode concurrently and waits for all
// of them, bounded by RefreshTimeout. A failed sub-fetch is logged and leaves
// its fields untouched. notify, if set, receives a view after every successful
// sub-fetch and may be called from several goroutines at once.
func (c *Client) Refresh(ctx context.Context, stationCode string, notify func(View)) Outcome {
	timeout := c.RefreshTimeout
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if notify == nil {
		notify = func(View) {}
	}

	var outcome Outcome
	var wg conc.WaitGroup
	wg.Go(func() {
		outcome.Current = c.run(ctx, "fetch current conditions", stationCode, notify, c.fetchCurrent)
	})
	wg.Go(func() {
		outcome.Forecast = c.run(ctx, "fetch forecast", stationCode, notify, c.fetchForecast)
	})
	wg.Go(func() {
		outcome.AirQuality = c.run(ctx, "fetch air quality", stationCode, notify, c.fetchAirQuality)
	})
	wg.Wait()

	logger.Debug("Refresh of station %s finished: current=%t forecast=%t air_quality=%t",
		stationCode, outcome.Current, outcome.Forecast, outcome.AirQuality)
	return outcome
}

func (c *Client) run(ctx context.Context, operation, stationCode string, notify func(View), fetch func(context.Context, string) (View, error)) bool {
	view, err := fetch(ctx, stationCode)
	if err != nil {
		if !errors.Is(err, api.ErrAirQualityDisabled) {
			errorutil.LogWarning(logger.Get().Logger, operation, err, errorutil.StationContext(stationCode)...)
		}
		return false
	}
	notify(view)
	return true
}

func (c *Client) fetchCurrent(ctx context.Context, stationCode string) (View, error) {
	realtime, err := c.source.Realtime(ctx, stationCode)
	if err != nil {
		return View{}, err
	}
	if realtime == nil || realtime.PublishTime.IsZero() {
		return View{}, &errorutil.DecodeError{Payload: "realtime", Underlying: errors.New("empty payload")}
	}

	return c.snapshot.ApplyCurrent(Current{
		Temperature: realtime.Weather.Temperature,
		Condition:   realtime.Weather.Info,
		PublishedAt: realtime.PublishTime.Time,
		Wind: Wind{
			Direction: realtime.Wind.Direct,
			Power:     realtime.Wind.Power,
			Speed:     float64(realtime.Wind.Speed),
		},
	}), nil
}

// fetchForecast takes today's figures from the first day record: night is the
// minimum and day the maximum, without comparing them
func (c *Client) fetchForecast(ctx context.Context, stationCode string) (View, error) {
	forecast, err := c.source.Forecast(ctx, stationCode)
	if err != nil {
		return View{}, err
	}
	if len(forecast) == 0 || len(forecast[0].Detail) == 0 {
		return View{}, &errorutil.DecodeError{Payload: "forecast", Underlying: errors.New("no day records")}
	}

	today := forecast[0].Detail[0]
	low, err := today.Night.Weather.TemperatureValue()
	if err != nil {
		return View{}, fmt.Errorf("night temperature: %w", err)
	}
	high, err := today.Day.Weather.TemperatureValue()
	if err != nil {
		return View{}, fmt.Errorf("day temperature: %w", err)
	}

	return c.snapshot.ApplyForecast(low, high), nil
}

func (c *Client) fetchAirQuality(ctx context.Context, stationCode string) (View, error) {
	aqi, err := c.source.AirQuality(ctx, stationCode)
	if err != nil {
		return View{}, err
	}
	if aqi == nil {
		return View{}, &errorutil.DecodeError{Payload: "air quality", Underlying: errors.New("empty payload")}
	}
	return c.snapshot.ApplyAirQuality(aqi.AQI, aqi.Text), nil
}
