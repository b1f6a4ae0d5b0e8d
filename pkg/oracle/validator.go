package oracle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agentoracle/platform/pkg/common/models"
	"github.com/agentoracle/platform/pkg/fetch"
	"gorm.io/datatypes"
)

var (
	errUnknownDataType = errors.New("unknown data type")
	errInvalidParams   = errors.New("invalid params")
)

const (
	defaultCryptoPair      = "bitcoin"
	defaultWeatherLocation = "Melbourne"
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Validator turns the untyped creation payload into a typed fetch query,
// rejecting unknown data types and malformed params before anything is
// persisted or dispatched.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Validate(req models.CreateRequest) (fetch.Query, error) {
	switch strings.TrimSpace(req.DataType) {
	case models.DataTypeCryptoPrice:
		pair, err := stringParam(req.Params, "pair", defaultCryptoPair)
		if err != nil {
			return fetch.Query{}, ValidationError{reason: err}
		}
		return fetch.Query{
			DataType: fetch.DataTypeCryptoPrice,
			Crypto:   &fetch.CryptoParams{Pair: pair},
		}, nil

	case models.DataTypeWeather:
		location, err := stringParam(req.Params, "location", defaultWeatherLocation)
		if err != nil {
			return fetch.Query{}, ValidationError{reason: err}
		}
		return fetch.Query{
			DataType: fetch.DataTypeWeather,
			Weather:  &fetch.WeatherParams{Location: location},
		}, nil

	default:
		return fetch.Query{}, ValidationError{
			reason: fmt.Errorf("data type '%s' not supported: %w", req.DataType, errUnknownDataType),
		}
	}
}

func stringParam(params map[string]interface{}, key, defaultValue string) (string, error) {
	if params == nil {
		return defaultValue, nil
	}
	raw, ok := params[key]
	if !ok {
		return defaultValue, nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("param '%s' must be a string: %w", key, errInvalidParams)
	}
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed, nil
	}
	return defaultValue, nil
}

// ParamsMap renders a validated query back into the JSON column stored on the
// request record.
func ParamsMap(q fetch.Query) datatypes.JSONMap {
	switch q.DataType {
	case fetch.DataTypeCryptoPrice:
		return datatypes.JSONMap{"pair": q.Crypto.Pair}
	case fetch.DataTypeWeather:
		return datatypes.JSONMap{"location": q.Weather.Location}
	default:
		return datatypes.JSONMap{}
	}
}

// QueryFromRecord rebuilds the typed query from a stored request. Records are
// written only after validation, so a failure here means the stored row is
// corrupt.
func QueryFromRecord(req *Request) (fetch.Query, error) {
	v := NewValidator()
	return v.Validate(models.CreateRequest{
		Query:    req.Query,
		DataType: req.DataType,
		Params:   map[string]interface{}(req.Params),
	})
}
