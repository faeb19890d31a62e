package weather

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"nmcweather/api"
	"nmcweather/internal/errorutil"
	"nmcweather/internal/geo"
	"nmcweather/internal/logger"
)

type fakeSource struct {
	realtime    *api.RealtimeResponse
	realtimeErr error
	forecast    []api.ForecastResponse
	forecastErr error
	aqi         *api.AirQualityResponse
	aqiErr      error

	mu    sync.Mutex
	codes []string
}

func (f *fakeSource) record(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
}

func (f *fakeSource) Realtime(ctx context.Context, code string) (*api.RealtimeResponse, error) {
	f.record(code)
	return f.realtime, f.realtimeErr
}

func (f *fakeSource) Forecast(ctx context.Context, code string) ([]api.ForecastResponse, error) {
	f.record(code)
	return f.forecast, f.forecastErr
}

func (f *fakeSource) AirQuality(ctx context.Context, code string) (*api.AirQualityResponse, error) {
	f.record(code)
	if f.aqi == nil && f.aqiErr == nil {
		return nil, api.ErrAirQualityDisabled
	}
	return f.aqi, f.aqiErr
}

var publishedAt = time.Date(2019, 10, 6, 14, 15, 0, 0, api.ServiceZone)

func realtimeFixture() *api.RealtimeResponse {
	return &api.RealtimeResponse{
		PublishTime: api.PublishTime{Time: publishedAt},
		Weather:     api.RealtimeWeather{Temperature: 21.5, Info: "晴"},
		Wind:        api.RealtimeWind{Direct: "北风", Power: "3级", Speed: 4.2},
	}
}

func forecastFixture(day, night string) []api.ForecastResponse {
	return []api.ForecastResponse{{
		Detail: []api.ForecastDay{{
			Day:   api.HalfDay{Weather: api.HalfDayWeather{Temperature: day}},
			Night: api.HalfDay{Weather: api.HalfDayWeather{Temperature: night}},
		}},
	}}
}

var serverErr = errorutil.NewStatusError("fetch", "http://x", 500)

func fallbackLocation() geo.ResolvedLocation {
	return geo.ResolvedLocation{
		CountryName:  "中国",
		ProvinceName: "北京",
		CityName:     "北京市",
		DistrictName: "大兴区",
		Province:     geo.Province{Code: "ABJ", Name: "北京市"},
		Station:      &geo.Station{ProvinceName: "北京市", Name: "大兴", Code: "54594"},
	}
}

func TestRefreshCurrentOnly(t *testing.T) {
	source := &fakeSource{realtime: realtimeFixture(), forecastErr: serverErr}
	client := NewClient(source, NewSnapshot(fallbackLocation()))

	outcome := client.Refresh(context.Background(), "54594", nil)
	if !outcome.Current || outcome.Forecast || outcome.AirQuality {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	view := client.Snapshot().View()
	if view.CurrentTemperature == nil || *view.CurrentTemperature != 21.5 {
		t.Errorf("CurrentTemperature = %v", view.CurrentTemperature)
	}
	if view.CurrentCondition == nil || *view.CurrentCondition != "晴" {
		t.Errorf("CurrentCondition = %v", view.CurrentCondition)
	}
	if view.LastUpdatedAt == nil || !view.LastUpdatedAt.Equal(publishedAt) {
		t.Errorf("LastUpdatedAt = %v", view.LastUpdatedAt)
	}
	if view.Wind == nil || view.Wind.Direction != "北风" {
		t.Errorf("Wind = %+v", view.Wind)
	}
	if view.MinTemperatureToday != nil || view.MaxTemperatureToday != nil {
		t.Error("current-conditions fetch touched forecast fields")
	}
}

func TestRefreshForecastOnly(t *testing.T) {
	source := &fakeSource{realtimeErr: serverErr, forecast: forecastFixture("24", "9")}
	client := NewClient(source, NewSnapshot(fallbackLocation()))

	outcome := client.Refresh(context.Background(), "54594", nil)
	if outcome.Current || !outcome.Forecast {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	view := client.Snapshot().View()
	if view.MinTemperatureToday == nil || *view.MinTemperatureToday != 9 {
		t.Errorf("MinTemperatureToday = %v", view.MinTemperatureToday)
	}
	if view.MaxTemperatureToday == nil || *view.MaxTemperatureToday != 24 {
		t.Errorf("MaxTemperatureToday = %v", view.MaxTemperatureToday)
	}
	if view.CurrentTemperature != nil || view.CurrentCondition != nil || view.LastUpdatedAt != nil {
		t.Error("forecast fetch touched current-conditions fields")
	}
}

func TestRefreshTrustsFieldSemantics(t *testing.T) {
	source := &fakeSource{forecast: forecastFixture("5", "12"), realtimeErr: serverErr}
	client := NewClient(source, NewSnapshot(fallbackLocation()))

	client.Refresh(context.Background(), "54594", nil)
	view := client.Snapshot().View()
	if *view.MinTemperatureToday != 12 || *view.MaxTemperatureToday != 5 {
		t.Errorf("min/max reordered: min=%v max=%v", *view.MinTemperatureToday, *view.MaxTemperatureToday)
	}
}

func TestRefreshFailureKeepsStaleFields(t *testing.T) {
	source := &fakeSource{realtime: realtimeFixture(), forecast: forecastFixture("24", "9")}
	client := NewClient(source, NewSnapshot(fallbackLocation()))
	client.Refresh(context.Background(), "54594", nil)

	tests := []struct {
		name   string
		mutate func(*fakeSource)
	}{
		{"server errors", func(f *fakeSource) { f.realtimeErr, f.forecastErr = serverErr, serverErr }},
		{"empty payloads", func(f *fakeSource) {
			f.realtimeErr, f.forecastErr = nil, nil
			f.realtime, f.forecast = &api.RealtimeResponse{}, nil
		}},
		{"unparseable temperature", func(f *fakeSource) {
			f.realtimeErr = serverErr
			f.forecast = forecastFixture("24", "n/a")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mutate(source)
			if outcome := client.Refresh(context.Background(), "54594", nil); outcome.Any() {
				t.Fatalf("expected no updates, got %+v", outcome)
			}

			view := client.Snapshot().View()
			if view.CurrentTemperature == nil || *view.CurrentTemperature != 21.5 {
				t.Errorf("current temperature lost: %v", view.CurrentTemperature)
			}
			if view.MaxTemperatureToday == nil || *view.MaxTemperatureToday != 24 {
				t.Errorf("forecast lost: %v", view.MaxTemperatureToday)
			}
		})
	}
}

func TestRefreshAirQuality(t *testing.T) {
	source := &fakeSource{
		realtimeErr: serverErr,
		forecastErr: serverErr,
		aqi:         &api.AirQualityResponse{AQI: 42, Text: "优"},
	}
	client := NewClient(source, NewSnapshot(fallbackLocation()))

	var mu sync.Mutex
	var notified []View
	outcome := client.Refresh(context.Background(), "54594", func(v View) {
		mu.Lock()
		defer mu.Unlock()
		notified = append(notified, v)
	})

	if !outcome.AirQuality || outcome.Current || outcome.Forecast {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if len(notified) != 1 {
		t.Fatalf("notify called %d times, want 1", len(notified))
	}
	if v := notified[0]; v.CurrentAirQualityIndex == nil || *v.CurrentAirQualityIndex != 42 || *v.CurrentAirQuality != "优" {
		t.Errorf("unexpected air quality view: %+v", v)
	}
}

func TestRefreshNotifiesPerSuccessfulFetch(t *testing.T) {
	source := &fakeSource{realtime: realtimeFixture(), forecast: forecastFixture("24", "9")}
	client := NewClient(source, NewSnapshot(fallbackLocation()))

	var mu sync.Mutex
	calls := 0
	client.Refresh(context.Background(), "54594", func(View) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if calls != 2 {
		t.Errorf("notify called %d times, want 2", calls)
	}
}

func TestRefreshBoundedWait(t *testing.T) {
	client := NewClient(blockingSource{}, NewSnapshot(fallbackLocation()))
	client.RefreshTimeout = 50 * time.Millisecond

	start := time.Now()
	outcome := client.Refresh(context.Background(), "54594", nil)
	if outcome.Any() {
		t.Errorf("expected no updates, got %+v", outcome)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("refresh took %s, expected the timeout to bound it", elapsed)
	}
}

type blockingSource struct{}

func (blockingSource) Realtime(ctx context.Context, code string) (*api.RealtimeResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingSource) Forecast(ctx context.Context, code string) ([]api.ForecastResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingSource) AirQuality(ctx context.Context, code string) (*api.AirQualityResponse, error) {
	return nil, api.ErrAirQualityDisabled
}

type fakeDirectory struct {
	dir *geo.Directory
	err error
}

func (f fakeDirectory) ResolveOrBootstrap(ctx context.Context) (*geo.Directory, error) {
	return f.dir, f.err
}

func testDirectory() *geo.Directory {
	return geo.NewDirectory(
		[]geo.Province{{Code: "ABJ", Name: "北京市"}, {Code: "AZJ", Name: "浙江省"}},
		map[string][]geo.Station{
			"ABJ": {{ProvinceName: "北京市", Name: "大兴", Code: "54594"}, {ProvinceName: "北京市", Name: "海淀", Code: "54399"}},
			"AZJ": {{ProvinceName: "浙江省", Name: "杭州", Code: "58457"}},
		},
	)
}

func TestUpdaterResolveAndRefresh(t *testing.T) {
	source := &fakeSource{realtime: realtimeFixture(), forecast: forecastFixture("24", "9")}
	updater := NewUpdater(fakeDirectory{dir: testDirectory()}, NewClient(source, NewSnapshot(geo.ResolvedLocation{})), fallbackLocation())

	err := updater.ResolveAndRefresh(context.Background(), &geo.Placemark{
		Country: "中国", AdministrativeArea: "浙江省", Locality: "杭州", SubLocality: "西湖区",
	}, nil)
	if err != nil {
		t.Fatalf("ResolveAndRefresh failed: %v", err)
	}

	if code := updater.Location().Station.Code; code != "58457" {
		t.Errorf("last known station = %s, want 58457", code)
	}
	view := updater.Snapshot()
	if view.StationCode != "58457" || view.ProvinceName != "浙江省" {
		t.Errorf("snapshot location not updated: %+v", view)
	}
	if view.CurrentTemperature == nil || view.MaxTemperatureToday == nil {
		t.Error("snapshot not refreshed")
	}
	for _, code := range source.codes {
		if code != "58457" {
			t.Errorf("fetched station %s, want 58457", code)
		}
	}
}

func TestUpdaterKeepsStationOnLookupFailure(t *testing.T) {
	source := &fakeSource{realtime: realtimeFixture()}
	updater := NewUpdater(fakeDirectory{dir: testDirectory()}, NewClient(source, NewSnapshot(geo.ResolvedLocation{})), fallbackLocation())

	err := updater.ResolveAndRefresh(context.Background(), &geo.Placemark{AdministrativeArea: "火星省", Locality: "奥林匹斯"}, nil)
	if !errors.Is(err, geo.ErrProvinceNotFound) {
		t.Fatalf("expected ErrProvinceNotFound, got %v", err)
	}
	if code := updater.Location().Station.Code; code != "54594" {
		t.Errorf("last known station changed to %s", code)
	}
	if view := updater.Snapshot(); view.StationCode != "54594" || view.CurrentTemperature != nil {
		t.Errorf("snapshot changed after failed resolution: %+v", view)
	}
	if len(source.codes) != 0 {
		t.Errorf("fetched %v after failed resolution", source.codes)
	}
}

func TestUpdaterBootstrapFailure(t *testing.T) {
	bootErr := &errorutil.NetworkError{Kind: errorutil.KindTimeout, Operation: "fetch provinces"}
	source := &fakeSource{realtime: realtimeFixture()}
	updater := NewUpdater(fakeDirectory{err: bootErr}, NewClient(source, NewSnapshot(geo.ResolvedLocation{})), fallbackLocation())

	err := updater.ResolveAndRefresh(context.Background(), &geo.Placemark{Locality: "北京市", SubLocality: "海淀区"}, nil)
	if kind, ok := errorutil.KindOf(err); !ok || kind != errorutil.KindTimeout {
		t.Fatalf("expected timeout kind, got %v", err)
	}
	if len(source.codes) != 0 {
		t.Errorf("fetched %v without a directory", source.codes)
	}

	outcome := updater.RefreshByLastKnownStation(context.Background(), nil)
	if !outcome.Current || source.codes[0] != "54594" {
		t.Errorf("fallback refresh: outcome %+v, codes %v", outcome, source.codes)
	}
}

func TestUpdaterNilPlacemarkUsesLastKnownStation(t *testing.T) {
	source := &fakeSource{realtime: realtimeFixture()}
	updater := NewUpdater(fakeDirectory{err: errors.New("directory must not be consulted")},
		NewClient(source, NewSnapshot(geo.ResolvedLocation{})), fallbackLocation())

	if err := updater.ResolveAndRefresh(context.Background(), nil, nil); err != nil {
		t.Fatalf("ResolveAndRefresh(nil) failed: %v", err)
	}
	if len(source.codes) == 0 || source.codes[0] != "54594" {
		t.Errorf("expected refresh of the fallback station, got %v", source.codes)
	}
}

func TestUpdaterWithoutStation(t *testing.T) {
	source := &fakeSource{}
	updater := NewUpdater(fakeDirectory{}, NewClient(source, NewSnapshot(geo.ResolvedLocation{})), geo.ResolvedLocation{})

	if outcome := updater.RefreshByLastKnownStation(context.Background(), nil); outcome.Any() {
		t.Errorf("expected no updates, got %+v", outcome)
	}
	if len(source.codes) != 0 {
		t.Errorf("fetched %v with no station", source.codes)
	}
}

func TestUpdaterLookupFailureIsNotLoggedAsError(t *testing.T) {
	if err := logger.Initialize(logger.Config{
		Enabled:         true,
		Directory:       t.TempDir(),
		FilenamePattern: "updater.log",
		Level:           "debug",
	}); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Initialize(logger.Config{ConsoleOutput: true})
	logFile := logger.Get().FileName()

	updater := NewUpdater(fakeDirectory{dir: testDirectory()},
		NewClient(&fakeSource{}, NewSnapshot(geo.ResolvedLocation{})), fallbackLocation())
	err := updater.ResolveAndRefresh(context.Background(), &geo.Placemark{AdministrativeArea: "浙江省", Locality: "宁波"}, nil)
	if !errors.Is(err, geo.ErrStationNotFound) {
		t.Fatalf("expected ErrStationNotFound, got %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if strings.Contains(string(data), "level=ERROR") || strings.Contains(string(data), "宁波") {
		t.Errorf("lookup failure must be left to the caller to log, got:\n%s", data)
	}
}
