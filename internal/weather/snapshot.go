package weather

import (
	"sync"
	"time"

	"nmcweather/internal/geo"
)

// Wind is the observed wind at the station
type Wind struct {
	Direction string
	Power     string
	Speed     float64
}

// View is a point-in-time copy of a Snapshot. Nil fields have not been fetched yet.
type View struct {
	CountryName          string
	ProvinceName         string
	CityName             string
	DistrictName         string
	IsDirectAdministered bool
	StationName          string
	StationCode          string

	CurrentTemperature     *float64
	MinTemperatureToday    *float64
	MaxTemperatureToday    *float64
	CurrentCondition       *string
	CurrentAirQuality      *string
	CurrentAirQualityIndex *int
	Wind                   *Wind
	LastUpdatedAt          *time.Time
}

// Current is the field group written by a successful current-conditions fetch
type Current struct {
	Temperature float64
	Condition   string
	PublishedAt time.Time
	Wind        Wind
}

// Snapshot accumulates weather fields for the current station. Each field
// group is overwritten only by its own successful fetch and never cleared.
type Snapshot struct {
	mu   sync.RWMutex
	view View
}

// NewSnapshot creates an empty snapshot for loc
func NewSnapshot(loc geo.ResolvedLocation) *Snapshot {
	s := &Snapshot{}
	s.SetLocation(loc)
	return s
}

// View returns a copy of the snapshot. Setters always store fresh pointers,
// so the copy shares no mutable state with the snapshot.
func (s *Snapshot) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// SetLocation replaces the location identity fields, leaving weather fields as they are
func (s *Snapshot) SetLocation(loc geo.ResolvedLocation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view.CountryName = loc.CountryName
	s.view.ProvinceName = loc.ProvinceName
	s.view.CityName = loc.CityName
	s.view.DistrictName = loc.DistrictName
	s.view.IsDirectAdministered = loc.IsDirectAdministered
	s.view.StationName, s.view.StationCode = "", ""
	if loc.Station != nil {
		s.view.StationName = loc.Station.Name
		s.view.StationCode = loc.Station.Code
	}
}

// ApplyCurrent overwrites the current-conditions group
func (s *Snapshot) ApplyCurrent(c Current) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	wind := c.Wind
	s.view.CurrentTemperature = &c.Temperature
	s.view.CurrentCondition = &c.Condition
	s.view.LastUpdatedAt = &c.PublishedAt
	s.view.Wind = &wind
	return s.view
}

// ApplyForecast overwrites today's minimum and maximum
func (s *Snapshot) ApplyForecast(low, high float64) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view.MinTemperatureToday = &low
	s.view.MaxTemperatureToday = &high
	return s.view
}

// ApplyAirQuality overwrites the air-quality group
func (s *Snapshot) ApplyAirQuality(index int, text string) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view.CurrentAirQualityIndex = &index
	s.view.CurrentAirQuality = &text
	return s.view
}
