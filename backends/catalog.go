// Package backends lists the execution targets a program can run on.
package backends

import (
	"context"

	qi "github.com/quantum-inspire/qi-go"
	"github.com/quantum-inspire/qi-go/api"
)

// Catalog reads the service's backend listing. Each List call is one
// round trip; nothing is cached.
type Catalog struct {
	client *api.Client
}

// NewCatalog creates a catalog over client.
func NewCatalog(client *api.Client) *Catalog {
	return &Catalog{client: client}
}

// List returns every backend with its operational status, so callers
// can filter out unavailable ones before submitting.
func (c *Catalog) List(ctx context.Context) ([]qi.Backend, error) {
	var page qi.Page[qi.Backend]
	if err := c.client.Get(ctx, "/backends", &page); err != nil {
		return nil, err
	}
	for _, b := range page.Items {
		if b.ID == "" || b.Name == "" {
			return nil, api.Malformedf("backend record is missing id or name")
		}
	}
	return page.Items, nil
}
