package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// SourceClient performs a single call against one external data provider and
// parses its response into a numeric value.
type SourceClient interface {
	Name() string
	Fetch(ctx context.Context, q Query) (float64, error)
}

const (
	DefaultCoinGeckoBaseURL = "https://api.coingecko.com/api/v3"
	DefaultBinanceBaseURL   = "https://api.binance.com/api/v3"
	DefaultCoinbaseBaseURL  = "https://api.coinbase.com/v2"
	DefaultKrakenBaseURL    = "https://api.kraken.com/0/public"
)

func cryptoPair(q Query) (string, error) {
	if q.DataType != DataTypeCryptoPrice || q.Crypto == nil {
		return "", fmt.Errorf("query is not a crypto_price query")
	}
	pair := strings.TrimSpace(q.Crypto.Pair)
	if pair == "" {
		return "", fmt.Errorf("empty pair")
	}
	return pair, nil
}

func getJSON(ctx context.Context, client *http.Client, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func finite(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("non-finite value")
	}
	return nil
}

// CoinGeckoClient reads USD spot prices from the CoinGecko simple price API.
type CoinGeckoClient struct {
	baseURL string
	client  *http.Client
}

func NewCoinGecko(baseURL string, client *http.Client) *CoinGeckoClient {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoBaseURL
	}
	return &CoinGeckoClient{baseURL: baseURL, client: client}
}

func (c *CoinGeckoClient) Name() string { return "CoinGecko" }

func (c *CoinGeckoClient) Fetch(ctx context.Context, q Query) (float64, error) {
	pair, err := cryptoPair(q)
	if err != nil {
		return 0, err
	}

	id := strings.ToLower(pair)
	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", c.baseURL, url.QueryEscape(id))

	var body map[string]map[string]float64
	if err := getJSON(ctx, c.client, u, &body); err != nil {
		return 0, fmt.Errorf("coingecko request: %w", err)
	}

	quote, ok := body[id]
	if !ok {
		return 0, fmt.Errorf("coingecko: no quote for %s", id)
	}
	price, ok := quote["usd"]
	if !ok {
		return 0, fmt.Errorf("coingecko: no usd price for %s", id)
	}
	if err := finite(price); err != nil {
		return 0, fmt.Errorf("coingecko: %w", err)
	}
	return price, nil
}

// BinanceClient reads USDT ticker prices from the Binance public API.
type BinanceClient struct {
	baseURL string
	client  *http.Client
}

func NewBinance(baseURL string, client *http.Client) *BinanceClient {
	if baseURL == "" {
		baseURL = DefaultBinanceBaseURL
	}
	return &BinanceClient{baseURL: baseURL, client: client}
}

func (c *BinanceClient) Name() string { return "Binance" }

func (c *BinanceClient) Fetch(ctx context.Context, q Query) (float64, error) {
	pair, err := cryptoPair(q)
	if err != nil {
		return 0, err
	}

	symbol := strings.ToUpper(pair) + "USDT"
	u := fmt.Sprintf("%s/ticker/price?symbol=%s", c.baseURL, url.QueryEscape(symbol))

	var body struct {
		Price string `json:"price"`
	}
	if err := getJSON(ctx, c.client, u, &body); err != nil {
		return 0, fmt.Errorf("binance request: %w", err)
	}

	price, err := strconv.ParseFloat(body.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("binance: parsing price %q: %w", body.Price, err)
	}
	if err := finite(price); err != nil {
		return 0, fmt.Errorf("binance: %w", err)
	}
	return price, nil
}

// CoinbaseClient reads USD spot prices from the Coinbase public API.
type CoinbaseClient struct {
	baseURL string
	client  *http.Client
}

func NewCoinbase(baseURL string, client *http.Client) *CoinbaseClient {
	if baseURL == "" {
		baseURL = DefaultCoinbaseBaseURL
	}
	return &CoinbaseClient{baseURL: baseURL, client: client}
}

func (c *CoinbaseClient) Name() string { return "Coinbase" }

func (c *CoinbaseClient) Fetch(ctx context.Context, q Query) (float64, error) {
	pair, err := cryptoPair(q)
	if err != nil {
		return 0, err
	}

	u := fmt.Sprintf("%s/prices/%s-USD/spot", c.baseURL, url.PathEscape(strings.ToUpper(pair)))

	var body struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	if err := getJSON(ctx, c.client, u, &body); err != nil {
		return 0, fmt.Errorf("coinbase request: %w", err)
	}

	price, err := strconv.ParseFloat(body.Data.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("coinbase: parsing amount %q: %w", body.Data.Amount, err)
	}
	if err := finite(price); err != nil {
		return 0, fmt.Errorf("coinbase: %w", err)
	}
	return price, nil
}

// KrakenClient reads USD ticker prices from the Kraken public API.
type KrakenClient struct {
	baseURL string
	client  *http.Client
}

func NewKraken(baseURL string, client *http.Client) *KrakenClient {
	if baseURL == "" {
		baseURL = DefaultKrakenBaseURL
	}
	return &KrakenClient{baseURL: baseURL, client: client}
}

func (c *KrakenClient) Name() string { return "Kraken" }

func (c *KrakenClient) Fetch(ctx context.Context, q Query) (float64, error) {
	pair, err := cryptoPair(q)
	if err != nil {
		return 0, err
	}

	symbol := strings.ToUpper(pair) + "USD"
	u := fmt.Sprintf("%s/Ticker?pair=%s", c.baseURL, url.QueryEscape(symbol))

	var body struct {
		Error  []string `json:"error"`
		Result map[string]struct {
			C []string `json:"c"` // last trade closed: [price, lot volume]
		} `json:"result"`
	}
	if err := getJSON(ctx, c.client, u, &body); err != nil {
		return 0, fmt.Errorf("kraken request: %w", err)
	}
	if len(body.Error) > 0 {
		return 0, fmt.Errorf("kraken: %s", strings.Join(body.Error, "; "))
	}

	for _, ticker := range body.Result {
		if len(ticker.C) == 0 {
			continue
		}
		price, err := strconv.ParseFloat(ticker.C[0], 64)
		if err != nil {
			return 0, fmt.Errorf("kraken: parsing price %q: %w", ticker.C[0], err)
		}
		if err := finite(price); err != nil {
			return 0, fmt.Errorf("kraken: %w", err)
		}
		return price, nil
	}

	return 0, fmt.Errorf("kraken: no ticker for %s", symbol)
}
