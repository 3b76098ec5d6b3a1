package port

import (
	"context"

	"github.com/olyamironova/lending-engine/internal/domain"
)

type Cache interface {
	SetDepth(ctx context.Context, snap *domain.DepthSnapshot) error
	GetDepth(ctx context.Context, asset string, side domain.Side) (*domain.DepthSnapshot, error)
}
