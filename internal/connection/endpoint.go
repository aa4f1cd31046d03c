package connection

import (
	"context"
	"fmt"

	"github.com/samber/mo"

	"github.com/splax/branchenv/internal/neon"
)

// EndpointResolver picks one endpoint per branch.
type EndpointResolver struct {
	api API
}

// NewEndpointResolver returns an EndpointResolver backed by api.
func NewEndpointResolver(api API) EndpointResolver {
	return EndpointResolver{api: api}
}

// Resolve returns the first endpoint of the wanted type. Without an explicit
// type the first read-write endpoint wins, falling back to the first endpoint
// of any type.
func (r EndpointResolver) Resolve(ctx context.Context, projectID, branchID string, wanted mo.Option[neon.EndpointType]) (neon.Endpoint, error) {
	endpoints, err := r.api.ListEndpoints(ctx, projectID, branchID)
	if err != nil {
		return neon.Endpoint{}, fmt.Errorf("list endpoints: %w", err)
	}
	outcome := selectEndpoint(endpoints, wanted)
	if outcome.Kind != Resolved {
		return neon.Endpoint{}, &NoEndpointFoundError{BranchID: branchID, Type: wanted.OrEmpty()}
	}
	return outcome.Value, nil
}

func selectEndpoint(endpoints []neon.Endpoint, wanted mo.Option[neon.EndpointType]) Outcome[neon.Endpoint] {
	match := wanted.OrElse(neon.EndpointReadWrite)
	for _, ep := range endpoints {
		if ep.Type == match {
			return resolved(ep)
		}
	}
	if wanted.IsAbsent() && len(endpoints) > 0 {
		return resolved(endpoints[0])
	}
	return notFound[neon.Endpoint]()
}
