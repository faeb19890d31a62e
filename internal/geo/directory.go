package geo

import "nmcweather/api"

// Province is an administrative region grouping stations. Identity is Code.
type Province struct {
	Code string `json:"code"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Station is a weather-reporting site. Identity is Code.
type Station struct {
	ProvinceName string `json:"province"`
	Name         string `json:"city"`
	Code         string `json:"code"`
	URL          string `json:"url"`
	ID           string `json:"id,omitempty"`
}

// Directory is the in-memory reference table of provinces and their stations.
// It is read-only once built; replacing it whole is the only update.
type Directory struct {
	provinces []Province
	stations  map[string][]Station
}

// NewDirectory builds a directory from provinces in server order and their
// station lists keyed by province code. Both inputs are copied.
func NewDirectory(provinces []Province, stations map[string][]Station) *Directory {
	d := &Directory{
		provinces: append([]Province(nil), provinces...),
		stations:  make(map[string][]Station, len(stations)),
	}
	for code, list := range stations {
		d.stations[code] = append([]Station(nil), list...)
	}
	return d
}

// Provinces returns a copy of the province list in server order
func (d *Directory) Provinces() []Province {
	return append([]Province(nil), d.provinces...)
}

// Stations returns a copy of the station list for a province
func (d *Directory) Stations(p Province) []Station {
	return append([]Station(nil), d.stations[p.Code]...)
}

// StationTable returns a copy of the whole station table keyed by province code
func (d *Directory) StationTable() map[string][]Station {
	table := make(map[string][]Station, len(d.stations))
	for code, list := range d.stations {
		table[code] = append([]Station(nil), list...)
	}
	return table
}

// ProvinceByName returns the first province whose name equals name exactly
func (d *Directory) ProvinceByName(name string) (Province, bool) {
	for _, p := range d.provinces {
		if p.Name == name {
			return p, true
		}
	}
	return Province{}, false
}

// StationByName returns the first station in province p whose name equals name exactly
func (d *Directory) StationByName(p Province, name string) (Station, bool) {
	for _, s := range d.stations[p.Code] {
		if s.Name == name {
			return s, true
		}
	}
	return Station{}, false
}

// complete reports whether every province has a station list
func (d *Directory) complete() bool {
	for _, p := range d.provinces {
		if _, ok := d.stations[p.Code]; !ok {
			return false
		}
	}
	return true
}

func provinceFromRecord(r api.ProvinceRecord) Province {
	return Province{Code: r.Code, Name: r.Name, URL: r.URL}
}

// stationFromRecord converts a wire record, taking the province name from the
// owning province so every station in a list agrees with its key
func stationFromRecord(p Province, r api.StationRecord) Station {
	return Station{
		ProvinceName: p.Name,
		Name:         r.City,
		Code:         r.Code,
		URL:          r.URL,
		ID:           r.ID,
	}
}
