package nvdbapi

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is number of layers fetched at once
const DefaultWorkers = 4

// LayerRequest describes one dataset to fetch: the road network when ObjectType is zero,
// road objects of ObjectType otherwise
type LayerRequest struct {
	Name       string
	ObjectType int
	Filter     map[string]string
}

// Fetcher is implemented by Client
type Fetcher interface {
	Segments(ctx context.Context, filter map[string]string) ([]map[string]interface{}, error)
	RoadObjects(ctx context.Context, objectType int, filter map[string]string) ([]map[string]interface{}, error)
}

// Fetch runs single request
func (req LayerRequest) Fetch(ctx context.Context, f Fetcher) ([]map[string]interface{}, error) {
	if req.ObjectType > 0 {
		return f.RoadObjects(ctx, req.ObjectType, req.Filter)
	}
	return f.Segments(ctx, req.Filter)
}

// FetchLayers fetches every requested layer concurrently with at most workers requests in flight.
// Result i holds rows of request i. First error cancels the rest
func FetchLayers(ctx context.Context, f Fetcher, requests []LayerRequest, workers int) ([][]map[string]interface{}, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	results := make([][]map[string]interface{}, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range requests {
		i := i
		g.Go(func() error {
			req := requests[i]
			rows, err := req.Fetch(gctx, f)
			if err != nil {
				return errors.Wrapf(err, "Can't fetch layer '%s'", req.Name)
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// LogRequests writes requested layers to logger
func LogRequests(logger *zap.Logger, requests []LayerRequest) {
	for _, req := range requests {
		logger.Info("Layer request", zap.String("name", req.Name), zap.Int("object_type", req.ObjectType), zap.String("filter", FilterString(req.Filter)))
	}
}
