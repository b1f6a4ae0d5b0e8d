package agents

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/agentoracle/platform/pkg/fetch"
	"gopkg.in/yaml.v3"
)

// SourceRef names one provider in an agent's fallback chain. BaseURL and
// APIKey override the provider defaults when set.
type SourceRef struct {
	Name      string `yaml:"name"`
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
	Transport string `yaml:"transport,omitempty"` // "rest" or "ws"; all current providers are rest
}

// AgentConfig is one fetch identity: its id, display name, and the ordered
// source chains it uses per data type.
type AgentConfig struct {
	ID             string      `yaml:"id"`
	Name           string      `yaml:"name"`
	Stake          float64     `yaml:"stake"`
	CryptoSources  []SourceRef `yaml:"crypto_sources"`
	WeatherSources []SourceRef `yaml:"weather_sources"`
}

type FleetConfig struct {
	Agents []AgentConfig `yaml:"agents"`
}

// DefaultFleet mirrors the deployed five-agent fleet: every agent answers both
// data types, with different source orderings so a single provider outage
// cannot take out the whole fleet at once.
func DefaultFleet() FleetConfig {
	return FleetConfig{
		Agents: []AgentConfig{
			{
				ID: "agent-001", Name: "DataPulse", Stake: 1000,
				CryptoSources:  []SourceRef{{Name: "coingecko"}, {Name: "binance"}, {Name: "coinbase"}},
				WeatherSources: []SourceRef{{Name: "open-meteo"}, {Name: "weatherapi"}},
			},
			{
				ID: "agent-002", Name: "CryptoSentinel", Stake: 1000,
				CryptoSources:  []SourceRef{{Name: "binance"}, {Name: "coingecko"}, {Name: "kraken"}},
				WeatherSources: []SourceRef{{Name: "open-meteo"}, {Name: "weatherapi"}},
			},
			{
				ID: "agent-003", Name: "ChainReader", Stake: 1000,
				CryptoSources:  []SourceRef{{Name: "kraken"}, {Name: "coinbase"}, {Name: "coingecko"}},
				WeatherSources: []SourceRef{{Name: "weatherapi"}, {Name: "open-meteo"}},
			},
			{
				ID: "agent-004", Name: "OracleSeeker", Stake: 1000,
				CryptoSources:  []SourceRef{{Name: "coinbase"}, {Name: "kraken"}, {Name: "binance"}},
				WeatherSources: []SourceRef{{Name: "open-meteo"}, {Name: "weatherapi"}},
			},
			{
				ID: "agent-005", Name: "MarketWatcher", Stake: 1000,
				CryptoSources:  []SourceRef{{Name: "coingecko"}, {Name: "kraken"}, {Name: "coinbase"}},
				WeatherSources: []SourceRef{{Name: "weatherapi"}, {Name: "open-meteo"}},
			},
		},
	}
}

// LoadFleet reads a fleet definition from a YAML file. An empty path yields
// the default fleet.
func LoadFleet(path string) (FleetConfig, error) {
	if path == "" {
		return DefaultFleet(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return FleetConfig{}, fmt.Errorf("reading fleet config: %w", err)
	}

	var cfg FleetConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FleetConfig{}, fmt.Errorf("parsing fleet config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return FleetConfig{}, err
	}
	return cfg, nil
}

func (c FleetConfig) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("fleet config defines no agents")
	}

	seen := make(map[string]struct{}, len(c.Agents))
	for _, agent := range c.Agents {
		if strings.TrimSpace(agent.ID) == "" {
			return fmt.Errorf("agent with empty id")
		}
		if _, dup := seen[agent.ID]; dup {
			return fmt.Errorf("duplicate agent id %s", agent.ID)
		}
		seen[agent.ID] = struct{}{}

		if len(agent.CryptoSources) == 0 && len(agent.WeatherSources) == 0 {
			return fmt.Errorf("agent %s has no data sources", agent.ID)
		}
	}
	return nil
}

// Identity is one runnable agent: its registry fields plus the fetcher that
// owns its private cache and fallback chains.
type Identity struct {
	ID      string
	Name    string
	Stake   float64
	Fetcher *fetch.Fetcher
}

// BuildIdentities constructs the runnable fleet from configuration. Each
// identity gets its own Fetcher so caches stay per-agent.
func BuildIdentities(cfg FleetConfig, client *http.Client, cacheTTL, sourceTimeout time.Duration) ([]Identity, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	identities := make([]Identity, 0, len(cfg.Agents))
	for _, agent := range cfg.Agents {
		sources := make(map[fetch.DataType][]fetch.SourceClient)

		if len(agent.CryptoSources) > 0 {
			chain, err := buildChain(agent.CryptoSources, client)
			if err != nil {
				return nil, fmt.Errorf("agent %s: %w", agent.ID, err)
			}
			sources[fetch.DataTypeCryptoPrice] = chain
		}
		if len(agent.WeatherSources) > 0 {
			chain, err := buildChain(agent.WeatherSources, client)
			if err != nil {
				return nil, fmt.Errorf("agent %s: %w", agent.ID, err)
			}
			sources[fetch.DataTypeWeather] = chain
		}

		identities = append(identities, Identity{
			ID:      agent.ID,
			Name:    agent.Name,
			Stake:   agent.Stake,
			Fetcher: fetch.NewFetcher(sources, cacheTTL, sourceTimeout),
		})
	}
	return identities, nil
}

func buildChain(refs []SourceRef, client *http.Client) ([]fetch.SourceClient, error) {
	chain := make([]fetch.SourceClient, 0, len(refs))
	for _, ref := range refs {
		src, err := buildSource(ref, client)
		if err != nil {
			return nil, err
		}
		chain = append(chain, src)
	}
	return chain, nil
}

func buildSource(ref SourceRef, client *http.Client) (fetch.SourceClient, error) {
	switch strings.ToLower(strings.TrimSpace(ref.Name)) {
	case "coingecko":
		return fetch.NewCoinGecko(ref.BaseURL, client), nil
	case "binance":
		return fetch.NewBinance(ref.BaseURL, client), nil
	case "coinbase":
		return fetch.NewCoinbase(ref.BaseURL, client), nil
	case "kraken":
		return fetch.NewKraken(ref.BaseURL, client), nil
	case "open-meteo", "openmeteo":
		return fetch.NewOpenMeteo(ref.BaseURL, client), nil
	case "weatherapi":
		return fetch.NewWeatherAPI(ref.BaseURL, ref.APIKey, client), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", ref.Name)
	}
}
