// Package weather is a small example tool plugin demonstrating a
// bare-bones external-API lookup (spec §4.4 "representative tool"
// catalog's illustrative non-RAG entry): it fetches the current weather
// for a configured location from a public forecast API.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lamb-project/lamb-core/pkg/assistant"
	"github.com/lamb-project/lamb-core/pkg/httpclient"
	"github.com/lamb-project/lamb-core/pkg/plugins"
)

const defaultEndpoint = "https://api.open-meteo.com/v1/forecast"

// Weather is the example tool: no authentication required, a single GET
// against a forecast API, and a domain allowlist check (grounded on
// pkg/tool/webtool.NewWebRequest's domain-validation pattern) so that,
// when an allowlist is given, a misconfigured endpoint can't be used to
// reach arbitrary hosts.
type Weather struct {
	http           *httpclient.Client
	allowedDomains []string
}

// New builds a Weather tool. allowedDomains restricts which hosts the
// configured endpoint may resolve to; empty means no restriction, so any
// endpoint host is accepted.
func New(allowedDomains ...string) *Weather {
	return &Weather{http: httpclient.New(), allowedDomains: allowedDomains}
}

// configSchema is weather's typed configuration surface, reflected into
// ConfigSchema below rather than hand-maintained as a parallel map.
type configSchema struct {
	Latitude  float64 `json:"latitude" jsonschema:"required,description=Latitude in decimal degrees"`
	Longitude float64 `json:"longitude" jsonschema:"required,description=Longitude in decimal degrees"`
	Endpoint  string  `json:"endpoint,omitempty" jsonschema:"description=Override forecast API base URL"`
}

// Declaration describes weather's configuration surface.
func (t *Weather) Declaration() plugins.ToolDeclaration {
	return plugins.ToolDeclaration{
		Name:         "weather",
		DisplayName:  "Weather Lookup",
		Placeholder:  "weather",
		Category:     "example",
		ConfigSchema: plugins.SchemaFor(configSchema{}),
	}
}

type forecastResponse struct {
	CurrentWeather struct {
		Temperature float64 `json:"temperature"`
		WindSpeed   float64 `json:"windspeed"`
		WeatherCode int     `json:"weathercode"`
	} `json:"current_weather"`
}

// Execute fetches the current weather for the configured coordinates.
func (t *Weather) Execute(ctx context.Context, req plugins.OrchestrationRequest, a assistant.Assistant, cfg assistant.ToolConfig) plugins.ToolResult {
	placeholder := cfg.Placeholder
	if placeholder == "" {
		placeholder = "weather"
	}

	lat, latOK := floatField(cfg.Config, "latitude")
	lon, lonOK := floatField(cfg.Config, "longitude")
	if !latOK || !lonOK {
		return plugins.ToolResult{Placeholder: placeholder, Error: "latitude and longitude are required"}
	}

	endpoint := defaultEndpoint
	if s, ok := cfg.Config["endpoint"].(string); ok && s != "" {
		endpoint = s
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return plugins.ToolResult{Placeholder: placeholder, Error: fmt.Sprintf("invalid endpoint: %v", err)}
	}
	if err := t.validateDomain(parsed.Hostname()); err != nil {
		return plugins.ToolResult{Placeholder: placeholder, Error: err.Error()}
	}

	q := parsed.Query()
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("current_weather", "true")
	parsed.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return plugins.ToolResult{Placeholder: placeholder, Error: fmt.Sprintf("build request: %v", err)}
	}

	resp, err := t.http.Do(httpReq)
	if err != nil {
		return plugins.ToolResult{Placeholder: placeholder, Error: fmt.Sprintf("weather lookup failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return plugins.ToolResult{Placeholder: placeholder, Error: fmt.Sprintf("weather API returned status %d: %s", resp.StatusCode, string(body))}
	}

	var out forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return plugins.ToolResult{Placeholder: placeholder, Error: fmt.Sprintf("decode weather response: %v", err)}
	}

	content := fmt.Sprintf("Current temperature is %.1f°C with wind speed %.1f km/h.",
		out.CurrentWeather.Temperature, out.CurrentWeather.WindSpeed)
	return plugins.ToolResult{Placeholder: placeholder, Content: content}
}

func (t *Weather) validateDomain(host string) error {
	if len(t.allowedDomains) == 0 {
		return nil
	}
	for _, allowed := range t.allowedDomains {
		if matchesDomain(host, allowed) {
			return nil
		}
	}
	return fmt.Errorf("domain not allowed: %s", host)
}

func matchesDomain(host, pattern string) bool {
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	if host == pattern {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(host, pattern[1:])
	}
	return false
}

func floatField(cfg map[string]any, key string) (float64, bool) {
	v, ok := cfg[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
