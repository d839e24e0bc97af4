package weaviate

import (
	"context"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// schemaClient exposes the schema calls vector.EnsureSchema needs.
type schemaClient struct {
	client *weaviate.Client
}

func (c schemaClient) ClassExists(ctx context.Context, class string) (bool, error) {
	return c.client.Schema().ClassExistenceChecker().WithClassName(class).Do(ctx)
}

func (c schemaClient) CreateClass(ctx context.Context, class *models.Class) error {
	return c.client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (c schemaClient) GetClass(ctx context.Context, class string) (*models.Class, error) {
	return c.client.Schema().ClassGetter().WithClassName(class).Do(ctx)
}

func (c schemaClient) AddProperty(ctx context.Context, class string, prop *models.Property) error {
	return c.client.Schema().PropertyCreator().WithClassName(class).WithProperty(prop).Do(ctx)
}
