package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/plantpass/internal/domain/auth"
	"github.com/xenking/plantpass/internal/domain/catalog"
	"github.com/xenking/plantpass/internal/domain/order"
	"github.com/xenking/plantpass/internal/domain/settings"
)

func TestOrderStore(t *testing.T) {
	s := NewOrderStore()
	ctx := context.Background()
	o := order.New("ABC-DEF", order.Draft{
		CreatedAt: 10,
		Items:     []order.LineItem{{SKU: "A", Name: "Fern", Quantity: 1, UnitPrice: decimal.NewFromInt(3)}},
	})

	require.NoError(t, s.Create(ctx, o))
	require.ErrorIs(t, s.Create(ctx, o), order.ErrDuplicateID)

	got, err := s.Get(ctx, "ABC-DEF")
	require.NoError(t, err)
	got.Items[0].Quantity = 99
	again, err := s.Get(ctx, "ABC-DEF")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Items[0].Quantity, "stored order must not alias")

	require.NoError(t, s.Create(ctx, order.New("XYZ-XYZ", order.Draft{CreatedAt: 20})))
	recent, err := s.ListRecentUnpaid(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "XYZ-XYZ", recent[0].ID)

	n, err := s.DeleteMany(ctx, []string{"ABC-DEF", "XYZ-XYZ", "NOP-NOP"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.Get(ctx, "ABC-DEF")
	require.ErrorIs(t, err, order.ErrNotFound)
	require.NoError(t, s.Delete(ctx, "ABC-DEF"))
}

func TestCatalogStore(t *testing.T) {
	var s CatalogStore[catalog.PaymentMethod]
	ctx := context.Background()

	n, err := s.ReplaceAll(ctx, []catalog.PaymentMethod{{Name: "Cash"}, {Name: "Card"}})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.ReplaceAll(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSettingsStore(t *testing.T) {
	s := NewSettingsStore()
	ctx := context.Background()

	_, err := s.Toggles(ctx)
	require.ErrorIs(t, err, settings.ErrNotFound)
	_, err = s.Lock(ctx, settings.ResourceProducts)
	require.ErrorIs(t, err, settings.ErrNotFound)
	_, err = s.Passphrase(ctx)
	require.ErrorIs(t, err, auth.ErrNotFound)

	require.NoError(t, s.PutLock(ctx, settings.ResourceProducts, true))
	locked, err := s.Lock(ctx, settings.ResourceProducts)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestCredentialStore(t *testing.T) {
	var s CredentialStore
	ctx := context.Background()

	_, err := s.PasswordHash(ctx)
	require.ErrorIs(t, err, auth.ErrNotFound)

	exp := time.Unix(100, 0)
	require.NoError(t, s.PutTempPassword(ctx, []byte("h"), exp))
	h, gotExp, err := s.TempPassword(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("h"), h)
	assert.Equal(t, exp, gotExp)

	require.NoError(t, s.DeleteTempPassword(ctx))
	_, _, err = s.TempPassword(ctx)
	require.ErrorIs(t, err, auth.ErrNotFound)
}
