package model

import "time"

// WarrantyListing is a warranty row on the admin dashboard.
type WarrantyListing struct {
	WarrantyID   int64     `json:"warranty_id"`
	UserName     string    `json:"user_name"`
	ProductName  string    `json:"product_name"`
	Brand        string    `json:"brand"`
	PurchaseDate time.Time `json:"purchase_date"`
	ExpiryDate   time.Time `json:"expiry_date"`
	Status       string    `json:"status"`
}

// ExpiryEntry is a row of the expired / upcoming report sections.
type ExpiryEntry struct {
	ProductName string `json:"product_name"`
	UserName    string `json:"user_name"`
	ExpiryDate  string `json:"expiry_date"`
}

// ClaimSummary aggregates claim counts per (user, product).
type ClaimSummary struct {
	UserName    string `json:"user_name"`
	ProductName string `json:"product_name"`
	Total       int    `json:"total_claims"`
	Pending     int    `json:"pending_claims"`
	InProgress  int    `json:"in_progress_claims"`
	Completed   int    `json:"completed_claims"`
	Denied      int    `json:"denied_claims"`
}

// Dashboard holds the admin landing-page counters.
type Dashboard struct {
	Users         int `json:"users"`
	Warranties    int `json:"warranties"`
	ExpiringSoon  int `json:"expiring_soon"`
	PendingClaims int `json:"pending_claims"`
}
