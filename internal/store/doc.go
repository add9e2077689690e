// Package store provides the SQLite-backed persistence gateway for the
// warranty tracker.
//
// The store owns six tables:
//   - users, admins: accounts
//   - products: the shared (brand, model) catalog
//   - warranties: per-user warranty records
//   - service_claims: claims filed against a warranty
//   - notifications: recorded expiry reminders
//
// # Uniqueness Rules
//
// Warranty uniqueness:
//   - UNIQUE INDEX (user_id, name_key, brand_key), the Fold of product_name and brand
//   - Inserts and updates that collide return ErrConflict
//
// Notification idempotency:
//   - UNIQUE(user_id, warranty_id, message)
//   - InsertNotification uses ON CONFLICT DO NOTHING and reports whether a row was written
//
// No in-process lock guards either rule. Concurrent writers race at the
// database and the constraint decides.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Every value reaches SQLite as a bound parameter.
package store
