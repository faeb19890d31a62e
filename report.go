package main

import (
	"fmt"
	"io"
	"strings"

	"nmcweather/api"
	"nmcweather/internal/weather"
)

const unknown = "unknown"

// printReport writes a plain-text summary of a snapshot
func printReport(w io.Writer, v weather.View) {
	place := strings.TrimSpace(strings.Join([]string{v.CityName, v.DistrictName}, " "))
	if !v.IsDirectAdministered {
		place = strings.TrimSpace(v.ProvinceName + " " + place)
	}

	fmt.Fprintf(w, "%s (station %s %s)\n", place, v.StationName, v.StationCode)
	fmt.Fprintf(w, "  Now:      %s %s\n", formatTemp(v.CurrentTemperature), formatText(v.CurrentCondition))
	fmt.Fprintf(w, "  Today:    %s / %s\n", formatTemp(v.MinTemperatureToday), formatTemp(v.MaxTemperatureToday))
	if v.Wind != nil {
		fmt.Fprintf(w, "  Wind:     %s %s\n", v.Wind.Direction, v.Wind.Power)
	}
	if v.CurrentAirQualityIndex != nil {
		fmt.Fprintf(w, "  AQI:      %d %s\n", *v.CurrentAirQualityIndex, formatText(v.CurrentAirQuality))
	}
	updated := unknown
	if v.LastUpdatedAt != nil {
		updated = v.LastUpdatedAt.In(api.ServiceZone).Format("2006-01-02 15:04")
	}
	fmt.Fprintf(w, "  Updated:  %s\n", updated)
}

func formatTemp(t *float64) string {
	if t == nil {
		return unknown
	}
	return fmt.Sprintf("%.0f℃", *t)
}

func formatText(s *string) string {
	if s == nil {
		return unknown
	}
	return *s
}
