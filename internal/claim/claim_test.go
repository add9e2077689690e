package claim

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warranty/internal/apperr"
	"github.com/roach88/warranty/internal/dates"
	"github.com/roach88/warranty/internal/model"
	"github.com/roach88/warranty/internal/page"
	"github.com/roach88/warranty/internal/store"
	"github.com/roach88/warranty/internal/testutil"
)

type fixture struct {
	svc   *Service
	store *store.Store
	clock *testutil.FixedClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "claim.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	clk := testutil.NewFixedClock(time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC))
	return &fixture{svc: NewService(s, clk, slog.New(slog.NewTextHandler(io.Discard, nil))), store: s, clock: clk}
}

func (f *fixture) owner(t *testing.T, email string) (model.Identity, int64) {
	t.Helper()
	ctx := context.Background()
	uid, err := f.store.CreateUser(ctx, model.User{FullName: email, Email: email, PasswordHash: "h", CreatedAt: f.clock.Now()})
	require.NoError(t, err)
	wid, err := f.store.InsertWarranty(ctx, model.Warranty{
		UserID: uid, ProductName: "Fridge", Brand: "Acme",
		PurchaseDate: dates.Date(2023, time.January, 1), PeriodMonths: 24,
		ExpiryDate: dates.Date(2025, time.January, 1),
	}, f.clock.Now())
	require.NoError(t, err)
	return model.Identity{UserID: uid}, wid
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann, wid := f.owner(t, "ann@example.com")

	c, err := f.svc.Submit(ctx, ann, wid, "  compressor noise ")
	require.NoError(t, err)
	assert.Equal(t, model.ClaimPending, c.Status)
	assert.Equal(t, "compressor noise", c.Description)

	claims, err := f.svc.ListForUser(ctx, ann)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, c.ID, claims[0].ID)

	_, err = f.svc.Submit(ctx, ann, wid, "   ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestSubmit_ForeignWarrantyWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, annWarranty := f.owner(t, "ann@example.com")
	eve, _ := f.owner(t, "eve@example.com")

	_, err := f.svc.Submit(ctx, eve, annWarranty, "mine now")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	all, err := f.svc.ListAll(ctx, model.AdminIdentity{AdminID: 1}, "", page.New(1, 100))
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := model.AdminIdentity{AdminID: 1}
	ann, wid := f.owner(t, "ann@example.com")
	c, err := f.svc.Submit(ctx, ann, wid, "noise")
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdateStatus(ctx, admin, c.ID, model.ClaimInProgress))
	assert.True(t, apperr.Is(f.svc.UpdateStatus(ctx, admin, c.ID, "Lost"), apperr.KindValidation))
	assert.True(t, apperr.Is(f.svc.UpdateStatus(ctx, admin, 999, model.ClaimDenied), apperr.KindNotFound))

	inProgress, err := f.svc.ListAll(ctx, admin, model.ClaimInProgress, page.New(1, 10))
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, "Fridge", inProgress[0].ProductName)

	_, err = f.svc.ListAll(ctx, admin, "Lost", page.New(1, 10))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
