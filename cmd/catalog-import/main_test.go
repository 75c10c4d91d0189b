package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/plantpass/internal/domain/catalog"
	"github.com/xenking/plantpass/internal/domain/order"
	"github.com/xenking/plantpass/internal/storage/memory"
)

const seed = `{
  "products": [
    {"SKU": "FERN", "item": "Boston Fern", "price_ea": 12.5, "sort_order": 1},
    {"SKU": "bad sku", "item": "Broken", "price_ea": 1}
  ],
  "discounts": [
    {"name": "Club member", "type": "percent", "value": 10},
    {"name": "Five off", "type": "dollar", "value": 5, "sort_order": 1}
  ]
}`

func writeFile(t *testing.T, name string, gz bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	if !gz {
		_, err = f.WriteString(seed)
		require.NoError(t, err)
		return path
	}
	w := pgzip.NewWriter(f)
	_, err = w.Write([]byte(seed))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return path
}

func TestLoadCatalog(t *testing.T) {
	for _, tt := range []struct {
		name string
		gz   bool
	}{
		{"catalog.json", false},
		{"catalog.json.gz", true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f, err := loadCatalog(writeFile(t, tt.name, tt.gz))
			require.NoError(t, err)
			require.Len(t, f.Products, 2)
			assert.Equal(t, "Boston Fern", f.Products[0].Name)
			assert.Equal(t, "12.5", f.Products[0].UnitPrice.String())
			require.Len(t, f.Discounts, 2)
			assert.Nil(t, f.PaymentMethods)
		})
	}
}

func TestLoadCatalog_Errors(t *testing.T) {
	_, err := loadCatalog(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0o600))
	_, err = loadCatalog(path)
	assert.Error(t, err)
}

func TestImportCatalog(t *testing.T) {
	f, err := loadCatalog(writeFile(t, "catalog.json", false))
	require.NoError(t, err)

	methods := &memory.CatalogStore[catalog.PaymentMethod]{}
	_, err = methods.ReplaceAll(context.Background(), []catalog.PaymentMethod{{Name: "Cash"}})
	require.NoError(t, err)

	svc := catalog.NewService(
		&memory.CatalogStore[catalog.Product]{},
		&memory.CatalogStore[catalog.Discount]{},
		methods,
	)
	require.NoError(t, importCatalog(context.Background(), svc, f))

	products, err := svc.Products(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "FERN", products[0].SKU)

	discounts, err := svc.Discounts(context.Background())
	require.NoError(t, err)
	require.Len(t, discounts, 2)
	assert.Equal(t, order.KindFixed, discounts[1].Kind)

	kept, err := svc.PaymentMethods(context.Background())
	require.NoError(t, err)
	assert.Len(t, kept, 1, "absent lists are left untouched")
}
