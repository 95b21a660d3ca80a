// internal/campaign/service.go
package campaign

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence contract of campaigns.
type Repository interface {
	Create(ctx context.Context, c *Campaign) error
	Get(ctx context.Context, id uuid.UUID) (*Campaign, error)
	List(ctx context.Context, hospitalID *uuid.UUID) ([]Campaign, error)
	Update(ctx context.Context, c *Campaign) error
	Delete(ctx context.Context, c *Campaign) error
}

// Service defines the interface for the campaign service.
type Service interface {
	CreateCampaign(ctx context.Context, req CreateRequest) (*View, error)
	GetCampaign(ctx context.Context, id uuid.UUID) (*View, error)
	ListCampaigns(ctx context.Context, filter ListFilter) ([]View, error)
	UpdateCampaign(ctx context.Context, id uuid.UUID, req UpdateRequest) (*View, error)
	DeleteCampaign(ctx context.Context, id uuid.UUID) error
}
