package agents

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentoracle/platform/pkg/fetch"
)

func TestDefaultFleetIsValid(t *testing.T) {
	cfg := DefaultFleet()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default fleet invalid: %v", err)
	}
	if len(cfg.Agents) != 5 {
		t.Fatalf("expected 5 agents, got %d", len(cfg.Agents))
	}
	for _, agent := range cfg.Agents {
		if len(agent.CryptoSources) < 2 {
			t.Fatalf("agent %s: expected at least 2 crypto sources", agent.ID)
		}
		if len(agent.WeatherSources) < 2 {
			t.Fatalf("agent %s: expected at least 2 weather sources", agent.ID)
		}
	}
}

func TestLoadFleetFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	content := []byte(`agents:
  - id: agent-test
    name: Test Agent
    stake: 500
    crypto_sources:
      - name: coingecko
      - name: binance
        base_url: https://example.com/api
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, err := LoadFleet(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Agents) != 1 {
		t.Fatalf("expected 1 agent, got %d", len(cfg.Agents))
	}
	agent := cfg.Agents[0]
	if agent.ID != "agent-test" || agent.Stake != 500 {
		t.Fatalf("unexpected agent %+v", agent)
	}
	if agent.CryptoSources[1].BaseURL != "https://example.com/api" {
		t.Fatalf("base_url override lost: %+v", agent.CryptoSources[1])
	}
}

func TestLoadFleetEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadFleet("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Agents) != len(DefaultFleet().Agents) {
		t.Fatal("expected default fleet for empty path")
	}
}

func TestValidateRejectsDuplicateIDs(t *testing.T) {
	cfg := FleetConfig{Agents: []AgentConfig{
		{ID: "a", CryptoSources: []SourceRef{{Name: "coingecko"}}},
		{ID: "a", CryptoSources: []SourceRef{{Name: "binance"}}},
	}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for duplicate agent ids")
	}
}

func TestBuildIdentitiesRejectsUnknownSource(t *testing.T) {
	cfg := FleetConfig{Agents: []AgentConfig{
		{ID: "a", Name: "A", CryptoSources: []SourceRef{{Name: "nasdaq"}}},
	}}
	if _, err := BuildIdentities(cfg, http.DefaultClient, time.Second, time.Second); err == nil {
		t.Fatal("expected error for unknown source name")
	}
}

func TestBuildIdentitiesGivesEachAgentItsOwnFetcher(t *testing.T) {
	identities, err := BuildIdentities(DefaultFleet(), http.DefaultClient, fetch.DefaultCacheTTL, fetch.DefaultSourceTimeout)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(identities) != 5 {
		t.Fatalf("expected 5 identities, got %d", len(identities))
	}
	seen := make(map[*fetch.Fetcher]struct{})
	for _, identity := range identities {
		if identity.Fetcher == nil {
			t.Fatalf("agent %s has no fetcher", identity.ID)
		}
		if _, dup := seen[identity.Fetcher]; dup {
			t.Fatalf("agent %s shares a fetcher with another agent", identity.ID)
		}
		seen[identity.Fetcher] = struct{}{}
	}
}
