package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"nmcweather/internal/errorutil"
	"nmcweather/internal/logger"
)

const (
	// DateLayout is the date-only form used by forecast days
	DateLayout = "2006-01-02"
	// DateTimeLayout is the minute-precision form used by publish times
	DateTimeLayout = "2006-01-02 15:04"
)

// ServiceZone is the zone NMC timestamps are expressed in (China Standard Time, no DST)
var ServiceZone = time.FixedZone("CST", 8*60*60)

// ParseServiceDate accepts either a date or a date-time, trying the date-only layout first
func ParseServiceDate(value string) (time.Time, error) {
	layouts := []string{DateLayout, DateTimeLayout}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, ServiceZone); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &errorutil.DecodeError{
		Payload: "date",
		Value:   value,
		Formats: layouts,
	}
}

// ParsePublishTime parses the strict date-time layout of realtime publish times
func ParsePublishTime(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateTimeLayout, value, ServiceZone)
	if err != nil {
		return time.Time{}, &errorutil.DecodeError{
			Payload:    "publish time",
			Value:      value,
			Formats:    []string{DateTimeLayout},
			Underlying: err,
		}
	}
	return t, nil
}

// ServiceDate is a timestamp that may arrive as "2006-01-02" or "2006-01-02 15:04"
type ServiceDate struct {
	time.Time
}

func (d *ServiceDate) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errorutil.NewDecodeError("date", err)
	}
	t, err := ParseServiceDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d ServiceDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.In(ServiceZone).Format(DateTimeLayout))
}

// PublishTime is a timestamp that must arrive as "2006-01-02 15:04"
type PublishTime struct {
	time.Time
}

func (p *PublishTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errorutil.NewDecodeError("publish time", err)
	}
	t, err := ParsePublishTime(s)
	if err != nil {
		return err
	}
	p.Time = t
	return nil
}

func (p PublishTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.In(ServiceZone).Format(DateTimeLayout))
}

// ProvinceRecord is one entry of the province list
type ProvinceRecord struct {
	Code string `json:"code"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// StationRecord is one entry of a province's station list
type StationRecord struct {
	Province string `json:"province"`
	City     string `json:"city"`
	Code     string `json:"code"`
	URL      string `json:"url"`
	ID       string `json:"id,omitempty"`
}

// RealtimeResponse is the current-conditions payload for one station
type RealtimeResponse struct {
	Station     StationRecord   `json:"station"`
	PublishTime PublishTime     `json:"publish_time"`
	Weather     RealtimeWeather `json:"weather"`
	Wind        RealtimeWind    `json:"wind"`
}

// RealtimeWeather holds the observed values of a realtime payload
type RealtimeWeather struct {
	Temperature     float64 `json:"temperature"`
	TemperatureDiff float64 `json:"temperatureDiff"`
	AirPressure     float64 `json:"airpressure"`
	Humidity        float64 `json:"humidity"`
	Rain            float64 `json:"rain"`
	Info            string  `json:"info"`
	Img             string  `json:"img"`
	FeelsLike       float64 `json:"feelst"`
}

// RealtimeWind is the wind block of a realtime payload
type RealtimeWind struct {
	Direct string `json:"direct"`
	Power  string `json:"power"`
	Speed  Number `json:"speed"`
}

// UnmarshalJSON decodes the wind block leniently: a block that does not
// decode leaves the wind zero instead of failing the whole payload.
func (w *RealtimeWind) UnmarshalJSON(data []byte) error {
	type plain RealtimeWind
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		logger.Debug("Ignoring undecodable realtime wind %s: %v", data, err)
		*w = RealtimeWind{}
		return nil
	}
	*w = RealtimeWind(decoded)
	return nil
}

// Number is a float that may arrive as a JSON number or a numeric string
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(strings.Trim(string(data), `"`))
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return &errorutil.DecodeError{Payload: "number", Value: s, Underlying: err}
	}
	*n = Number(v)
	return nil
}

// ForecastResponse is one element of the detailed forecast array
type ForecastResponse struct {
	Station     StationRecord `json:"station"`
	PublishTime ServiceDate   `json:"publish_time"`
	Detail      []ForecastDay `json:"detail"`
}

// ForecastDay is a per-day record with day and night halves
type ForecastDay struct {
	Date  ServiceDate `json:"date"`
	PT    ServiceDate `json:"pt"`
	Day   HalfDay     `json:"day"`
	Night HalfDay     `json:"night"`
}

// HalfDay is the day or night half of a forecast day
type HalfDay struct {
	Weather HalfDayWeather `json:"weather"`
	Wind    HalfDayWind    `json:"wind"`
}

// HalfDayWeather carries temperatures as numeric strings
type HalfDayWeather struct {
	Info        string `json:"info"`
	Img         string `json:"img"`
	Temperature string `json:"temperature"`
}

// TemperatureValue parses the numeric-string temperature
func (w HalfDayWeather) TemperatureValue() (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(w.Temperature), 64)
	if err != nil {
		return 0, &errorutil.DecodeError{Payload: "forecast temperature", Value: w.Temperature, Underlying: err}
	}
	return v, nil
}

// HalfDayWind is the wind block of a forecast half
type HalfDayWind struct {
	Direct string `json:"direct"`
	Power  string `json:"power"`
}

// AirQualityResponse is the air-quality payload for one station
type AirQualityResponse struct {
	ForecastTime ServiceDate `json:"forecasttime"`
	AQI          int         `json:"aqi"`
	Text         string      `json:"text"`
}
