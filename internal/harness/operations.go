package harness

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/warranty/internal/account"
	"github.com/roach88/warranty/internal/apperr"
	"github.com/roach88/warranty/internal/attach"
	"github.com/roach88/warranty/internal/catalog"
	"github.com/roach88/warranty/internal/claim"
	"github.com/roach88/warranty/internal/clock"
	"github.com/roach88/warranty/internal/dates"
	"github.com/roach88/warranty/internal/mail"
	"github.com/roach88/warranty/internal/model"
	"github.com/roach88/warranty/internal/notify"
	"github.com/roach88/warranty/internal/page"
	"github.com/roach88/warranty/internal/report"
	"github.com/roach88/warranty/internal/store"
	"github.com/roach88/warranty/internal/testutil"
	"github.com/roach88/warranty/internal/warranty"
)

// env is the wired application a scenario runs against.
type env struct {
	store      *store.Store
	clock      *testutil.FixedClock
	sink       *mail.Recorder
	accounts   *account.Service
	catalog    *catalog.Service
	warranties *warranty.Service
	claims     *claim.Service
	reports    *report.Service
	notifier   *notify.Engine

	// passwords remembers credentials by email so "as" can re-authenticate.
	passwords map[string]string
}

// operation executes one named action. A returned *apperr.Error becomes the
// completion case; any other error aborts the run.
type operation func(ctx context.Context, e *env, as string, a args) (map[string]interface{}, error)

var operations = map[string]operation{
	"user.register":     userRegister,
	"user.password":     userPassword,
	"admin.seed":        adminSeed,
	"catalog.add":       catalogAdd,
	"warranty.add":      warrantyAdd,
	"warranty.edit":     warrantyEdit,
	"warranty.delete":   warrantyDelete,
	"warranty.dedupe":   warrantyDedupe,
	"warranty.list":     warrantyList,
	"warranty.expiring": warrantyExpiring,
	"claim.submit":      claimSubmit,
	"claim.status":      claimStatus,
	"notify.run":        notifyRun,
	"notify.generate":   notifyGenerate,
	"notify.unread":     notifyUnread,
	"notify.read":       notifyRead,
	"report.dashboard":  reportDashboard,
	"clock.advance":     clockAdvance,
	"mail.outage":       mailOutage,
	"legacy.duplicate":  legacyDuplicate,
	"legacy.reindex":    legacyReindex,
}

// args reads loosely typed YAML arguments.
type args map[string]interface{}

func (a args) str(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (a args) num(key string, def int) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func (a args) id(key string) int64 {
	return int64(a.num(key, 0))
}

func (a args) flag(key string) bool {
	v, _ := a[key].(bool)
	return v
}

func (e *env) user(ctx context.Context, as string) (model.Identity, error) {
	return e.accounts.Authenticate(ctx, as, e.passwords[as])
}

func (e *env) admin(ctx context.Context, as string) (model.AdminIdentity, error) {
	if as == "" {
		as = account.DefaultAdminEmail
	}
	return e.accounts.AuthenticateAdmin(ctx, as, e.passwords[as])
}

func userRegister(ctx context.Context, e *env, _ string, a args) (map[string]interface{}, error) {
	p, err := e.accounts.Register(ctx, account.Registration{
		FullName: a.str("full_name"),
		Email:    a.str("email"),
		Password: a.str("password"),
	})
	if err != nil {
		return nil, err
	}
	e.passwords[p.Email] = a.str("password")
	return map[string]interface{}{"id": p.ID, "email": p.Email}, nil
}

func userPassword(ctx context.Context, e *env, as string, a args) (map[string]interface{}, error) {
	id, err := e.user(ctx, as)
	if err != nil {
		return nil, err
	}
	if err := e.accounts.ChangePassword(ctx, id, a.str("current"), a.str("new"), a.str("confirm")); err != nil {
		return nil, err
	}
	e.passwords[as] = a.str("new")
	return map[string]interface{}{}, nil
}

func adminSeed(ctx context.Context, e *env, _ string, a args) (map[string]interface{}, error) {
	created, err := e.accounts.SeedAdmin(ctx, a.str("token"))
	if err != nil {
		return nil, err
	}
	e.passwords[account.DefaultAdminEmail] = account.DefaultAdminPassword
	return map[string]interface{}{"created": created}, nil
}

func catalogAdd(ctx context.Context, e *env, as string, a args) (map[string]interface{}, error) {
	if _, err := e.admin(ctx, as); err != nil {
		return nil, err
	}
	p, err := e.catalog.AddVerified(ctx, a.str("brand"), a.str("model"), a.str("category"))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": p.ID, "verified": p.Verified}, nil
}

func warrantyInput(a args) warranty.Input {
	in := warranty.Input{
		ProductName:  a.str("product_name"),
		Brand:        a.str("brand"),
		PurchaseDate: a.str("purchase_date"),
		Period:       a.num("period", 0),
		Unit:         warranty.Unit(a.str("unit")),
	}
	if in.Unit == "" {
		in.Unit = warranty.UnitYears
	}
	if fn := a.str("invoice"); fn != "" {
		in.Invoice = &attach.Upload{Filename: fn, Body: strings.NewReader("%PDF-1.4")}
	}
	return in
}

func warrantyResult(w model.Warranty) map[string]interface{} {
	r := map[string]interface{}{
		"id":            w.ID,
		"expiry_date":   dates.Format(w.ExpiryDate),
		"period_months": w.PeriodMonths,
		"has_invoice":   w.InvoicePath != "",
		"linked":        w.ProductID != nil,
	}
	return r
}

func warrantyAdd(ctx context.Context, e *env, as string, a args) (map[string]interface{}, error) {
	id, err := e.user(ctx, as)
	if err != nil {
		return nil, err
	}
	w, err := e.warranties.Add(ctx, id, warrantyInput(a))
	if err != nil {
		return nil, err
	}
	return warrantyResult(w), nil
}

func warrantyEdit(ctx context.Context, e *env, as string, a args) (map[string]interface{}, error) {
	id, err := e.user(ctx, as)
	if err != nil {
		return nil, err
	}
	w, err := e.warranties.Edit(ctx, id, a.id("id"), warrantyInput(a))
	if err != nil {
		return nil, err
	}
	return warrantyResult(w), nil
}

func warrantyDelete(ctx context.Context, e *env, as string, a args) (map[string]interface{}, error) {
	id, err := e.user(ctx, as)
	if err != nil {
		return nil, err
	}
	if err := e.warranties.Delete(ctx, id, a.id("id")); err != nil {
		return nil, err
	}
	return map[string]interface{}{}, nil
}

func warrantyDedupe(ctx context.Context, e *env, as string, _ args) (map[string]interface{}, error) {
	id, err := e.user(ctx, as)
	if err != nil {
		return nil, err
	}
	removed, err := e.warranties.Dedupe(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"removed": removed}, nil
}

func warrantyList(ctx context.Context, e *env, as string, a args) (map[string]interface{}, error) {
	id, err := e.user(ctx, as)
	if err != nil {
		return nil, err
	}
	p, err := e.warranties.List(ctx, id, page.New(a.num("page", 1), a.num("size", page.DefaultSize)))
	if err != nil {
		return nil, err
	}
	items := make([]interface{}, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, map[string]interface{}{
			"id":           it.ID,
			"product_name": it.ProductName,
			"status":       it.Status,
		})
	}
	return map[string]interface{}{"total": p.Total, "items": items}, nil
}

func warrantyExpiring(ctx context.Context, e *env, as string, a args) (map[string]interface{}, error) {
	id, err := e.user(ctx, as)
	if err != nil {
		return nil, err
	}
	items, err := e.warranties.Expiring(ctx, id, a.num("days", warranty.DefaultExpiringDays))
	if err != nil {
		return nil, err
	}
	names := make([]interface{}, 0, len(items))
	for _, it := range items {
		names = append(names, it.ProductName)
	}
	return map[string]interface{}{"products": names}, nil
}

func claimSubmit(ctx context.Context, e *env, as string, a args) (map[string]interface{}, error) {
	id, err := e.user(ctx, as)
	if err != nil {
		return nil, err
	}
	c, err := e.claims.Submit(ctx, id, a.id("warranty_id"), a.str("description"))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": c.ID, "status": string(c.Status)}, nil
}

func claimStatus(ctx context.Context, e *env, as string, a args) (map[string]interface{}, error) {
	admin, err := e.admin(ctx, as)
	if err != nil {
		return nil, err
	}
	if err := e.claims.UpdateStatus(ctx, admin, a.id("id"), model.ClaimStatus(a.str("status"))); err != nil {
		return nil, err
	}
	return map[string]interface{}{}, nil
}

func notifyRun(ctx context.Context, e *env, _ string, _ args) (map[string]interface{}, error) {
	r, err := e.notifier.RunBatch(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"date":      r.Date,
		"scanned":   r.Scanned,
		"eligible":  r.Eligible,
		"inserted":  r.Inserted,
		"delivered": r.Delivered,
		"failed":    r.Failed,
	}, nil
}

func notifyGenerate(ctx context.Context, e *env, as string, a args) (map[string]interface{}, error) {
	id, err := e.user(ctx, as)
	if err != nil {
		return nil, err
	}
	r, err := e.notifier.GenerateForUser(ctx, id.UserID, a.num("lookahead", notify.DefaultLookahead), a.flag("deliver"))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"eligible":  r.Eligible,
		"inserted":  r.Inserted,
		"delivered": r.Delivered,
	}, nil
}

func notifyUnread(ctx context.Context, e *env, as string, _ args) (map[string]interface{}, error) {
	id, err := e.user(ctx, as)
	if err != nil {
		return nil, err
	}
	n, err := e.notifier.UnreadCount(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"unread": n}, nil
}

func notifyRead(ctx context.Context, e *env, as string, _ args) (map[string]interface{}, error) {
	id, err := e.user(ctx, as)
	if err != nil {
		return nil, err
	}
	n, err := e.notifier.MarkAllRead(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"marked": n}, nil
}

func reportDashboard(ctx context.Context, e *env, as string, _ args) (map[string]interface{}, error) {
	admin, err := e.admin(ctx, as)
	if err != nil {
		return nil, err
	}
	d, err := e.reports.Dashboard(ctx, admin)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"users":          d.Users,
		"warranties":     d.Warranties,
		"expiring_soon":  d.ExpiringSoon,
		"pending_claims": d.PendingClaims,
	}, nil
}

func clockAdvance(_ context.Context, e *env, _ string, a args) (map[string]interface{}, error) {
	e.clock.AdvanceDays(a.num("days", 1))
	return map[string]interface{}{"today": dates.Format(clock.Today(e.clock))}, nil
}

func mailOutage(_ context.Context, e *env, _ string, a args) (map[string]interface{}, error) {
	e.sink.Fail = a.flag("down")
	return map[string]interface{}{}, nil
}

// legacyDuplicate writes a row the way a database that predates the
// uniqueness index would have allowed: the index is dropped and the row is
// inserted without the duplicate pre-check.
func legacyDuplicate(ctx context.Context, e *env, as string, a args) (map[string]interface{}, error) {
	id, err := e.user(ctx, as)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.DB().ExecContext(ctx, "DROP INDEX IF EXISTS "+store.WarrantyIndexName); err != nil {
		return nil, fmt.Errorf("legacy.duplicate: drop index: %w", err)
	}
	expiry, err := dates.Parse(a.str("expiry_date"))
	if err != nil {
		return nil, fmt.Errorf("legacy.duplicate: %w", err)
	}
	months := a.num("period_months", 12)
	wid, err := e.store.InsertWarranty(ctx, model.Warranty{
		UserID:       id.UserID,
		ProductName:  a.str("product_name"),
		Brand:        a.str("brand"),
		PurchaseDate: dates.AddMonths(expiry, -months),
		PeriodMonths: months,
		ExpiryDate:   expiry,
	}, e.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("legacy.duplicate: %w", err)
	}
	return map[string]interface{}{"id": wid}, nil
}

func legacyReindex(ctx context.Context, e *env, _ string, _ args) (map[string]interface{}, error) {
	err := e.store.EnsureWarrantyIndex(ctx)
	if errors.Is(err, store.ErrConflict) {
		return nil, apperr.Duplicate("store.ensure_index", "duplicate warranties block the uniqueness index")
	}
	if err != nil {
		return nil, apperr.Persistence("store.ensure_index", err)
	}
	return map[string]interface{}{}, nil
}

// startOfDay pins the scenario clock to 09:00 UTC on day.
func startOfDay(day time.Time) time.Time {
	return day.Add(9 * time.Hour)
}
