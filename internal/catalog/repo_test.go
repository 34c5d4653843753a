package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avilesmarco/storefront-backend/pkg/db"
	"github.com/avilesmarco/storefront-backend/pkg/db/models"
)

func setupCatalog(t *testing.T) (*Repository, *db.Client) {
	t.Helper()

	client, err := db.OpenSQLite("file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRepository(client.DB()), client
}

func seedProduct(t *testing.T, repo *Repository, stock int, active bool) *models.Product {
	t.Helper()
	product, err := repo.Create(context.Background(), &models.Product{
		Name:           "widget",
		UnitPriceCents: 2500,
		Stock:          stock,
		IsActive:       active,
	})
	require.NoError(t, err)
	return product
}

func TestDecrementStockSucceedsWithinBounds(t *testing.T) {
	repo, _ := setupCatalog(t)
	product := seedProduct(t, repo, 5, true)

	ok, err := repo.DecrementStock(context.Background(), product.ID, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Stock)
}

func TestDecrementStockRefusesOversell(t *testing.T) {
	repo, _ := setupCatalog(t)
	product := seedProduct(t, repo, 2, true)

	ok, err := repo.DecrementStock(context.Background(), product.ID, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Stock)
}

func TestDecrementStockRefusesInactiveProduct(t *testing.T) {
	repo, _ := setupCatalog(t)
	product := seedProduct(t, repo, 10, false)

	ok, err := repo.DecrementStock(context.Background(), product.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReleaseStockRestores(t *testing.T) {
	repo, _ := setupCatalog(t)
	product := seedProduct(t, repo, 1, true)

	require.NoError(t, repo.ReleaseStock(context.Background(), product.ID, 4))

	stored, err := repo.FindByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Stock)
}

func TestListActiveFiltersInactive(t *testing.T) {
	repo, _ := setupCatalog(t)
	seedProduct(t, repo, 1, true)
	seedProduct(t, repo, 1, false)

	products, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 1)
}
