package geo

import "nmcweather/api"

// PlacemarkFromAddress maps a reverse-geocoded address onto placemark fields.
// Municipalities come back from the geocoder without a state, which yields a
// direct-administered placemark.
func PlacemarkFromAddress(addr api.Address) Placemark {
	return Placemark{
		Country:            addr.Country,
		AdministrativeArea: firstNonEmpty(addr.State, addr.Province),
		Locality:           firstNonEmpty(addr.City, addr.Town, addr.County),
		SubLocality:        firstNonEmpty(addr.CityDistrict, addr.District, addr.Suburb),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
