package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warranty/internal/dates"
	"github.com/roach88/warranty/internal/model"
)

func seedReportData(t *testing.T, s *Store, today time.Time) (ann, bob int64) {
	t.Helper()
	ctx := context.Background()
	ann = createTestUser(t, s, "Ann", "ann@example.com")
	bob = createTestUser(t, s, "Bob", "bob@example.com")

	fridge := insertTestWarranty(t, s, testWarranty(ann, "Fridge", "Acme", dates.AddDays(today, 5)))
	insertTestWarranty(t, s, testWarranty(ann, "Old TV", "Zed", dates.AddDays(today, -20)))
	phone := insertTestWarranty(t, s, testWarranty(bob, "Phone", "Zed", dates.AddDays(today, 200)))
	insertTestWarranty(t, s, testWarranty(bob, "Radio", "", dates.AddDays(today, -1)))

	c1, err := s.InsertClaim(ctx, ann, fridge, "noise", testCreatedAt)
	require.NoError(t, err)
	_, err = s.InsertClaim(ctx, ann, fridge, "leak", testCreatedAt)
	require.NoError(t, err)
	_, err = s.InsertClaim(ctx, bob, phone, "screen", testCreatedAt)
	require.NoError(t, err)
	require.NoError(t, s.UpdateClaimStatus(ctx, c1, model.ClaimCompleted))
	return ann, bob
}

func TestDashboard(t *testing.T) {
	s := createTestStore(t)
	today := dates.Date(2024, time.March, 4)
	seedReportData(t, s, today)

	d, err := s.Dashboard(context.Background(), today, dates.AddDays(today, 30))
	require.NoError(t, err)
	assert.Equal(t, model.Dashboard{Users: 2, Warranties: 4, ExpiringSoon: 1, PendingClaims: 2}, d)
}

func TestExpiryReports(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	today := dates.Date(2024, time.March, 4)
	seedReportData(t, s, today)

	expired, err := s.ExpiredBefore(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, []model.ExpiryEntry{
		{ProductName: "Radio", UserName: "Bob", ExpiryDate: "2024-03-03"},
		{ProductName: "Old TV", UserName: "Ann", ExpiryDate: "2024-02-13"},
	}, expired)

	upcoming, err := s.ExpiringBetween(ctx, today, dates.AddDays(today, 30))
	require.NoError(t, err)
	assert.Equal(t, []model.ExpiryEntry{
		{ProductName: "Fridge", UserName: "Ann", ExpiryDate: "2024-03-09"},
	}, upcoming)
}

func TestClaimsSummary(t *testing.T) {
	s := createTestStore(t)
	seedReportData(t, s, dates.Date(2024, time.March, 4))

	summary, err := s.ClaimsSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.ClaimSummary{
		{UserName: "Ann", ProductName: "Fridge", Total: 2, Pending: 1, Completed: 1},
		{UserName: "Bob", ProductName: "Phone", Total: 1, Pending: 1},
	}, summary)
}

func TestSearchWarranties(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	today := dates.Date(2024, time.March, 4)
	seedReportData(t, s, today)

	zed, err := s.SearchWarranties(ctx, "zed", "", today, 100, 0)
	require.NoError(t, err)
	require.Len(t, zed, 2)
	assert.Equal(t, "Old TV", zed[0].ProductName)
	assert.Equal(t, model.StatusExpired, zed[0].Status)
	assert.Equal(t, "Phone", zed[1].ProductName)
	assert.Equal(t, model.StatusActive, zed[1].Status)

	active, err := s.SearchWarranties(ctx, "", model.StatusActive, today, 100, 0)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	byOwner, err := s.SearchWarranties(ctx, "BOB", model.StatusExpired, today, 100, 0)
	require.NoError(t, err)
	require.Len(t, byOwner, 1)
	assert.Equal(t, "Radio", byOwner[0].ProductName)
}

func TestSearchWarranties_WildcardsAreLiteral(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	today := dates.Date(2024, time.March, 4)
	uid := createTestUser(t, s, "Ann", "ann@example.com")
	insertTestWarranty(t, s, testWarranty(uid, "Dimmer 50%", "", today))
	insertTestWarranty(t, s, testWarranty(uid, "Dimmer 500", "", today))

	got, err := s.SearchWarranties(ctx, "50%", "", today, 100, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Dimmer 50%", got[0].ProductName)

	none, err := s.SearchWarranties(ctx, "_immer", "", today, 100, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
