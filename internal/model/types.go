// Package model defines the records shared by the store and the services.
package model

import (
	"time"

	"github.com/roach88/warranty/internal/dates"
)

// Identity is the authenticated caller of a user-scoped operation.
type Identity struct {
	UserID int64
}

// AdminIdentity is the authenticated caller of an admin operation.
type AdminIdentity struct {
	AdminID int64
}

// User is a registered account.
type User struct {
	ID           int64     `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Admin is a dashboard operator.
type Admin struct {
	ID           int64  `json:"id"`
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
}

// Product is a catalog entry identified by (brand, model).
type Product struct {
	ID        int64  `json:"id"`
	Brand     string `json:"brand"`
	ModelName string `json:"model_name"`
	Category  string `json:"category,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`

	// Verified distinguishes admin-curated entries from auto-created ones.
	Verified bool `json:"verified"`
}

// Warranty is a user's registered product warranty.
type Warranty struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	ProductID    *int64    `json:"product_id,omitempty"`
	ProductName  string    `json:"product_name"`
	Brand        string    `json:"brand"`
	PurchaseDate time.Time `json:"purchase_date"`
	PeriodMonths int       `json:"warranty_period_months"`
	ExpiryDate   time.Time `json:"expiry_date"`
	InvoicePath  string    `json:"invoice_path,omitempty"`
}

// Status reports Active when the expiry date is today or later.
func (w Warranty) Status(today time.Time) string {
	if !dates.Of(w.ExpiryDate).Before(dates.Of(today)) {
		return StatusActive
	}
	return StatusExpired
}

// Warranty status labels.
const (
	StatusActive  = "Active"
	StatusExpired = "Expired"
)

// ClaimStatus is the lifecycle state of a service claim.
type ClaimStatus string

const (
	ClaimPending    ClaimStatus = "Pending"
	ClaimInProgress ClaimStatus = "In Progress"
	ClaimCompleted  ClaimStatus = "Completed"
	ClaimDenied     ClaimStatus = "Denied"
)

// ClaimStatuses lists every valid claim status in display order.
var ClaimStatuses = []ClaimStatus{ClaimPending, ClaimInProgress, ClaimCompleted, ClaimDenied}

// Valid reports whether s is a known claim status.
func (s ClaimStatus) Valid() bool {
	for _, v := range ClaimStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Claim is a service request against a warranty.
type Claim struct {
	ID          int64       `json:"id"`
	WarrantyID  int64       `json:"warranty_id"`
	ProductName string      `json:"product_name,omitempty"`
	UserName    string      `json:"user_name,omitempty"`
	Description string      `json:"description"`
	ClaimDate   time.Time   `json:"claim_date"`
	Status      ClaimStatus `json:"status"`
}

// NotificationStatus is the read state of a notification.
type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "Unread"
	NotificationRead   NotificationStatus = "Read"
)

// Notification is a recorded expiry reminder.
type Notification struct {
	ID         int64              `json:"id"`
	UserID     int64              `json:"user_id"`
	WarrantyID int64              `json:"warranty_id"`
	Message    string             `json:"message"`
	CreatedAt  time.Time          `json:"created_at"`
	Status     NotificationStatus `json:"status"`
}

// DueWarranty is a warranty joined with its owner's contact details,
// as read by the reminder scan.
type DueWarranty struct {
	WarrantyID  int64
	UserID      int64
	Email       string
	FullName    string
	ProductName string
	ExpiryDate  time.Time
}
