// Package restapi provides a generic JSON-over-HTTP property connector for
// providers exposing the common listing wire shape. Provider-specific field
// mapping beyond that shape belongs in a dedicated connector; this one
// covers commercial APIs that already speak the canonical schema.
package restapi

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/hearthdata/hearth/pkg/config"
	"github.com/hearthdata/hearth/pkg/connector/base"
	"github.com/hearthdata/hearth/pkg/connector/core"
	"github.com/hearthdata/hearth/pkg/errors"
	"github.com/hearthdata/hearth/pkg/models"
)

// Source is a REST API property connector built on BaseConnector.
type Source struct {
	*base.BaseConnector
}

// New creates a REST API connector from its configuration.
func New(cfg *config.ConnectorConfig) (core.Connector, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "restapi connector requires base_url")
	}
	return &Source{BaseConnector: base.NewBaseConnector(cfg)}, nil
}

// searchResponse is the canonical search wire shape.
type searchResponse struct {
	Properties []core.RawRecord `json:"properties"`
}

// SearchProperties queries GET /properties/search for a location.
func (s *Source) SearchProperties(ctx context.Context, location string, opts *core.SearchOptions) ([]core.RawRecord, error) {
	params := map[string]string{"location": location}
	if opts != nil {
		if opts.MinPrice > 0 {
			params["min_price"] = fmt.Sprintf("%.0f", opts.MinPrice)
		}
		if opts.MaxPrice > 0 {
			params["max_price"] = fmt.Sprintf("%.0f", opts.MaxPrice)
		}
		if opts.MinBedrooms > 0 {
			params["min_beds"] = fmt.Sprintf("%d", opts.MinBedrooms)
		}
		if opts.MinBathrooms > 0 {
			params["min_baths"] = fmt.Sprintf("%.1f", opts.MinBathrooms)
		}
		if opts.PropertyType != "" {
			params["property_type"] = opts.PropertyType
		}
		if opts.Limit > 0 {
			params["limit"] = fmt.Sprintf("%d", opts.Limit)
		}
	}

	var out searchResponse
	err := s.ExecuteWithRetry(ctx, func() error {
		resp, err := s.Client().R().
			SetContext(ctx).
			SetQueryParams(params).
			Get("/properties/search")
		if cerr := base.ClassifyResponse(resp, err); cerr != nil {
			return cerr
		}
		return decode(resp.Body(), &out)
	})
	if err != nil {
		return nil, err
	}
	return out.Properties, nil
}

// GetPropertyDetails queries GET /properties/{id}.
func (s *Source) GetPropertyDetails(ctx context.Context, externalID string) (core.RawRecord, error) {
	var out core.RawRecord
	err := s.ExecuteWithRetry(ctx, func() error {
		resp, err := s.Client().R().
			SetContext(ctx).
			SetPathParam("id", externalID).
			Get("/properties/{id}")
		if cerr := base.ClassifyResponse(resp, err); cerr != nil {
			return cerr
		}
		return decode(resp.Body(), &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetMarketTrends queries GET /market/trends for a location.
func (s *Source) GetMarketTrends(ctx context.Context, location string, opts *core.TrendOptions) (core.RawRecord, error) {
	params := map[string]string{"location": location}
	if opts != nil && opts.PeriodMonths > 0 {
		params["period_months"] = fmt.Sprintf("%d", opts.PeriodMonths)
	}

	var out core.RawRecord
	err := s.ExecuteWithRetry(ctx, func() error {
		resp, err := s.Client().R().
			SetContext(ctx).
			SetQueryParams(params).
			Get("/market/trends")
		if cerr := base.ClassifyResponse(resp, err); cerr != nil {
			return cerr
		}
		return decode(resp.Body(), &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StandardizeProperty maps the canonical wire shape into a PropertyRecord.
// The untouched payload is preserved under Metadata.
func (s *Source) StandardizeProperty(raw core.RawRecord) (*models.PropertyRecord, error) {
	rec := &models.PropertyRecord{
		ExternalID: stringField(raw, "id", "external_id"),
		Source:     s.Name(),
		Address: models.Address{
			Street: nestedString(raw, "address", "street"),
			City:   nestedString(raw, "address", "city"),
			State:  nestedString(raw, "address", "state"),
			Zip:    nestedString(raw, "address", "zip"),
		},
		Price:      floatField(raw, "price"),
		Bedrooms:   int(floatField(raw, "bedrooms")),
		Bathrooms:  floatField(raw, "bathrooms"),
		SquareFeet: int(floatField(raw, "square_feet")),
		Status:     stringField(raw, "status"),
		Metadata:   raw,
	}
	if rec.ExternalID == "" {
		return nil, errors.New(errors.ErrorTypeData, "payload has no id field")
	}
	return rec, nil
}

func decode(body []byte, out interface{}) error {
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to decode response body")
	}
	return nil
}

func stringField(raw core.RawRecord, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func nestedString(raw core.RawRecord, outer, inner string) string {
	if m, ok := raw[outer].(map[string]interface{}); ok {
		if v, ok := m[inner].(string); ok {
			return v
		}
	}
	return ""
}

func floatField(raw core.RawRecord, key string) float64 {
	switch v := raw[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}
