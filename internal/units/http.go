package units

import (
	"context"
	"errors"
	"fmt"
	"time"

	unitserrors "staybid/internal/units/errors"
	"staybid/pkg/client"
	"staybid/pkg/model"
)

type httpSource struct {
	client *client.CatalogClient
}

// NewHTTPSource calls the remote catalog service at baseURL.
func NewHTTPSource(baseURL string, timeout time.Duration) Source {
	return &httpSource{client: client.NewCatalogClient(baseURL, timeout)}
}

func (s *httpSource) UnitByUID(ctx context.Context, uid string) (*model.Unit, error) {
	unit, err := s.client.GetUnit(ctx, uid)
	return unit, translate(err, uid)
}

func (s *httpSource) UnitByID(ctx context.Context, id int64) (*model.Unit, error) {
	unit, err := s.client.GetUnitByID(ctx, id)
	return unit, translate(err, id)
}

func translate(err error, ref any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, client.ErrUnitNotFound) {
		return fmt.Errorf("%w: %v", unitserrors.ErrNotFound, ref)
	}
	return fmt.Errorf("catalog request failed: %w", err)
}
