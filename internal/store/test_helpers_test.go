package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/warranty/internal/dates"
	"github.com/roach88/warranty/internal/model"
)

var testCreatedAt = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestUser inserts a user with the given email and returns its ID.
func createTestUser(t *testing.T, s *Store, name, email string) int64 {
	t.Helper()
	id, err := s.CreateUser(context.Background(), model.User{
		FullName:     name,
		Email:        email,
		PasswordHash: "hash",
		CreatedAt:    testCreatedAt,
	})
	require.NoError(t, err)
	return id
}

// testWarranty builds a warranty with minimal required fields.
func testWarranty(userID int64, name, brand string, expiry time.Time) model.Warranty {
	return model.Warranty{
		UserID:       userID,
		ProductName:  name,
		Brand:        brand,
		PurchaseDate: dates.AddMonths(expiry, -12),
		PeriodMonths: 12,
		ExpiryDate:   expiry,
	}
}

// insertTestWarranty inserts a warranty and returns its ID.
func insertTestWarranty(t *testing.T, s *Store, w model.Warranty) int64 {
	t.Helper()
	id, err := s.InsertWarranty(context.Background(), w, testCreatedAt)
	require.NoError(t, err)
	return id
}

// dropWarrantyIndex simulates a legacy database that predates the uniqueness index.
func dropWarrantyIndex(t *testing.T, s *Store) {
	t.Helper()
	_, err := s.db.Exec("DROP INDEX IF EXISTS " + WarrantyIndexName)
	require.NoError(t, err)
}

// testNotification builds an unread notification stamped at testCreatedAt.
func testNotification(userID, warrantyID int64, message string) model.Notification {
	return model.Notification{
		UserID:     userID,
		WarrantyID: warrantyID,
		Message:    message,
		CreatedAt:  testCreatedAt,
	}
}
