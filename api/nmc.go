package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"nmcweather/internal/errorutil"
	"nmcweather/internal/logger"
)

const (
	// NMC REST endpoints
	DefaultProvinceURL = "http://www.nmc.cn/f/rest/province/"
	DefaultRealtimeURL = "http://www.nmc.cn/f/rest/real/"
	DefaultDetailURL   = "http://www.nmc.cn/f/rest/weather/"

	// Per-request transport timeout; callers bound whole operations with contexts
	defaultTimeout = 10 * time.Second

	userAgent = "NMCWeather/1.0"
)

// Endpoints holds the base URLs of the NMC REST service.
// AirQualityURL is optional; an empty value disables air-quality requests.
type Endpoints struct {
	ProvinceURL   string
	RealtimeURL   string
	DetailURL     string
	AirQualityURL string
}

// DefaultEndpoints returns the public NMC endpoints
func DefaultEndpoints() Endpoints {
	return Endpoints{
		ProvinceURL: DefaultProvinceURL,
		RealtimeURL: DefaultRealtimeURL,
		DetailURL:   DefaultDetailURL,
	}
}

// ErrAirQualityDisabled is returned by AirQuality when no endpoint is configured
var ErrAirQualityDisabled = errors.New("air quality endpoint not configured")

// NMCClient handles NMC REST API interactions
type NMCClient struct {
	client    *resty.Client
	endpoints Endpoints
	breakers  map[string]*gobreaker.CircuitBreaker
}

// NewNMCClient creates a client for the given endpoints.
// Requests are never retried; each endpoint family sits behind its own circuit breaker.
func NewNMCClient(endpoints Endpoints, timeout time.Duration) *NMCClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New().
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)

	client.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		logger.LogAPIRequest(req.Method, req.URL)
		return nil
	})

	client.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logger.LogAPIResponse(resp.Request.Method, resp.Request.URL, resp.StatusCode(), resp.Time(), len(resp.Body()))
		return nil
	})

	breakers := make(map[string]*gobreaker.CircuitBreaker)
	for _, name := range []string{"province", "realtime", "detail", "aqi"} {
		breakers[name] = newBreaker(name)
	}

	return &NMCClient{
		client:    client,
		endpoints: endpoints,
		breakers:  breakers,
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nmc-" + name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Requests cancelled by the caller say nothing about the endpoint's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker %s changed from %s to %s", name, from, to)
		},
	})
}

// Endpoints returns the configured base URLs
func (c *NMCClient) Endpoints() Endpoints {
	return c.endpoints
}

// Provinces fetches the full province list, in server order
func (c *NMCClient) Provinces(ctx context.Context) ([]ProvinceRecord, error) {
	endpoint, err := c.resolve("fetch provinces", c.endpoints.ProvinceURL, "")
	if err != nil {
		return nil, err
	}

	var provinces []ProvinceRecord
	if err := c.get(ctx, "province", "fetch provinces", endpoint, "province list", &provinces); err != nil {
		return nil, err
	}
	return provinces, nil
}

// Stations fetches the station list of one province, in server order
func (c *NMCClient) Stations(ctx context.Context, provinceCode string) ([]StationRecord, error) {
	endpoint, err := c.resolve("fetch stations", c.endpoints.ProvinceURL, provinceCode)
	if err != nil {
		return nil, err
	}

	var stations []StationRecord
	if err := c.get(ctx, "province", "fetch stations", endpoint, "station list", &stations); err != nil {
		return nil, err
	}
	return stations, nil
}

// Realtime fetches current conditions for a station
func (c *NMCClient) Realtime(ctx context.Context, stationCode string) (*RealtimeResponse, error) {
	endpoint, err := c.resolve("fetch realtime", c.endpoints.RealtimeURL, stationCode)
	if err != nil {
		return nil, err
	}

	var realtime RealtimeResponse
	if err := c.get(ctx, "realtime", "fetch realtime", endpoint, "realtime", &realtime); err != nil {
		return nil, err
	}
	return &realtime, nil
}

// Forecast fetches the detailed multi-day forecast for a station
func (c *NMCClient) Forecast(ctx context.Context, stationCode string) ([]ForecastResponse, error) {
	endpoint, err := c.resolve("fetch forecast", c.endpoints.DetailURL, stationCode)
	if err != nil {
		return nil, err
	}

	var forecast []ForecastResponse
	if err := c.get(ctx, "detail", "fetch forecast", endpoint, "forecast", &forecast); err != nil {
		return nil, err
	}
	return forecast, nil
}

// AirQuality fetches the air-quality index for a station
func (c *NMCClient) AirQuality(ctx context.Context, stationCode string) (*AirQualityResponse, error) {
	if c.endpoints.AirQualityURL == "" {
		return nil, ErrAirQualityDisabled
	}
	endpoint, err := c.resolve("fetch air quality", c.endpoints.AirQualityURL, stationCode)
	if err != nil {
		return nil, err
	}

	var aqi AirQualityResponse
	if err := c.get(ctx, "aqi", "fetch air quality", endpoint, "air quality", &aqi); err != nil {
		return nil, err
	}
	return &aqi, nil
}

// resolve appends segment to base as an escaped path element
func (c *NMCClient) resolve(operation, base, segment string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		if err == nil {
			err = fmt.Errorf("base URL %q must be absolute", base)
		}
		return "", &errorutil.NetworkError{
			Kind:       errorutil.KindBadURL,
			Operation:  operation,
			URL:        base,
			Underlying: err,
		}
	}
	if segment == "" {
		return u.String(), nil
	}
	return u.JoinPath(segment).String(), nil
}

// get performs a GET through the named breaker and decodes the JSON body into result
func (c *NMCClient) get(ctx context.Context, breaker, operation, endpoint, payload string, result any) error {
	body, err := c.breakers[breaker].Execute(func() (interface{}, error) {
		resp, err := c.client.R().
			SetContext(ctx).
			Get(endpoint)
		if err != nil {
			return nil, errorutil.NewNetworkError(operation, endpoint, err)
		}
		if !resp.IsSuccess() {
			return nil, errorutil.NewStatusError(operation, endpoint, resp.StatusCode())
		}
		return resp.Body(), nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &errorutil.NetworkError{
				Kind:       errorutil.KindNetwork,
				Operation:  operation,
				URL:        endpoint,
				Underlying: err,
			}
		}
		return err
	}

	if err := json.Unmarshal(body.([]byte), result); err != nil {
		var decodeErr *errorutil.DecodeError
		if errors.As(err, &decodeErr) {
			return err
		}
		return errorutil.NewDecodeError(payload, err)
	}
	return nil
}
