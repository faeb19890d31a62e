package geo

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// unknownField stands in for placemark fields the location source left empty
const unknownField = "unknown"

var (
	ErrProvinceNotFound = errors.New("province not found")
	ErrStationNotFound  = errors.New("station not found")
)

// Placemark is a free-text description of a place. Empty fields are missing.
type Placemark struct {
	Country            string
	AdministrativeArea string
	Locality           string
	SubLocality        string
}

// ResolvedLocation is a placemark matched against the directory
type ResolvedLocation struct {
	CountryName          string
	ProvinceName         string
	CityName             string
	DistrictName         string
	IsDirectAdministered bool
	Province             Province
	Station              *Station
}

// LookupErrorKind identifies which lookup failed
type LookupErrorKind int

const (
	ProvinceNotFound LookupErrorKind = iota
	StationNotFound
)

// LookupError reports a placemark name with no match in the directory
type LookupError struct {
	Kind LookupErrorKind
	Name string
}

func (e *LookupError) Error() string {
	if e.Kind == ProvinceNotFound {
		return fmt.Sprintf("province %q not found", e.Name)
	}
	return fmt.Sprintf("station %q not found", e.Name)
}

// Is matches ErrProvinceNotFound and ErrStationNotFound
func (e *LookupError) Is(target error) bool {
	switch target {
	case ErrProvinceNotFound:
		return e.Kind == ProvinceNotFound
	case ErrStationNotFound:
		return e.Kind == StationNotFound
	}
	return false
}

func orUnknown(s string) string {
	if s == "" {
		return unknownField
	}
	return s
}

// dropLastRune strips the trailing administrative suffix glyph, e.g. 大兴区 -> 大兴
func dropLastRune(s string) string {
	_, size := utf8.DecodeLastRuneInString(s)
	return s[:len(s)-size]
}

// Resolve maps a placemark to a station. A placemark without an administrative
// area names a direct-administered city: the province is looked up by the
// locality and the station by the sub-locality minus its final character.
func Resolve(dir *Directory, pm Placemark) (*ResolvedLocation, error) {
	loc := &ResolvedLocation{
		CountryName:          orUnknown(pm.Country),
		ProvinceName:         orUnknown(pm.AdministrativeArea),
		CityName:             orUnknown(pm.Locality),
		DistrictName:         orUnknown(pm.SubLocality),
		IsDirectAdministered: pm.AdministrativeArea == "",
	}

	provinceName, stationName := loc.ProvinceName, loc.CityName
	if loc.IsDirectAdministered {
		provinceName, stationName = loc.CityName, dropLastRune(loc.DistrictName)
	}

	province, ok := dir.ProvinceByName(provinceName)
	if !ok {
		return nil, &LookupError{Kind: ProvinceNotFound, Name: provinceName}
	}
	station, ok := dir.StationByName(province, stationName)
	if !ok {
		return nil, &LookupError{Kind: StationNotFound, Name: stationName}
	}

	loc.Province = province
	loc.Station = &station
	return loc, nil
}
