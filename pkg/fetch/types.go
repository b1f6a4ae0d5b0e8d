package fetch

import (
	"fmt"
	"strings"
	"time"
)

// DataType identifies the kind of fact a request asks for.
type DataType string

const (
	DataTypeCryptoPrice DataType = "crypto_price"
	DataTypeWeather     DataType = "weather"
)

// CryptoParams are the parameters for a crypto_price query.
type CryptoParams struct {
	Pair string `json:"pair"`
}

// WeatherParams are the parameters for a weather query.
type WeatherParams struct {
	Location string `json:"location"`
}

// Query is the typed form of a request's parameter bag. Exactly one of the
// variant fields matching DataType is set; creation-time validation enforces it.
type Query struct {
	DataType DataType
	Crypto   *CryptoParams
	Weather  *WeatherParams
}

// CacheKey normalizes the query into a cache key, e.g. "crypto_price:bitcoin".
func (q Query) CacheKey() string {
	switch q.DataType {
	case DataTypeCryptoPrice:
		pair := ""
		if q.Crypto != nil {
			pair = q.Crypto.Pair
		}
		return fmt.Sprintf("%s:%s", q.DataType, strings.ToLower(strings.TrimSpace(pair)))
	case DataTypeWeather:
		location := ""
		if q.Weather != nil {
			location = q.Weather.Location
		}
		return fmt.Sprintf("%s:%s", q.DataType, strings.ToLower(strings.TrimSpace(location)))
	default:
		return string(q.DataType)
	}
}

// Result is produced once per fetch call and never mutated after return.
type Result struct {
	Success   bool
	Value     float64
	Source    string
	Timestamp time.Time
	Cached    bool
	Attempts  int
	Error     string
}
