package interfaces

import (
	"context"

	"ess-loan-gateway/internal/pkg/store/models"
)

type ProductCatalogInterface interface {
	FindByCode(ctx context.Context, productCode string) (*models.LoanProduct, error)
}

type ProductRepositoryInterface interface {
	ProductCatalogInterface
	Save(ctx context.Context, product models.LoanProduct) error
	ListActive(ctx context.Context) ([]models.LoanProduct, error)
}
