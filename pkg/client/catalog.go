package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"staybid/pkg/model"
	"time"
)

// CatalogClient reads units from the listing catalog service.
type CatalogClient struct {
	httpClient *HttpClient
}

func NewCatalogClient(baseURL string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{
		httpClient: NewHttpClient(baseURL, timeout),
	}
}

// ErrUnitNotFound is returned when the catalog answers 404.
var ErrUnitNotFound = errors.New("unit not found in catalog")

func (c *CatalogClient) GetUnit(ctx context.Context, uid string) (*model.Unit, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/units/"+url.PathEscape(uid))
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrUnitNotFound
	default:
		return nil, fmt.Errorf("catalog returned %d: %s", resp.StatusCode, GetErrorMessage(resp))
	}

	var envelope struct {
		Data model.Unit `json:"data"`
	}
	if err := resp.DecodeJSON(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode unit: %w", err)
	}
	return &envelope.Data, nil
}

func (c *CatalogClient) GetUnitByID(ctx context.Context, id int64) (*model.Unit, error) {
	resp, err := c.httpClient.GET(ctx, fmt.Sprintf("/api/v1/units/id/%d", id))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrUnitNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned %d: %s", resp.StatusCode, GetErrorMessage(resp))
	}

	var envelope struct {
		Data model.Unit `json:"data"`
	}
	if err := resp.DecodeJSON(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode unit: %w", err)
	}
	return &envelope.Data, nil
}
