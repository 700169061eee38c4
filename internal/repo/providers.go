package repo

import (
	"context"
	"database/sql"
	"strings"

	"servicehub/internal/db"
	"servicehub/internal/domain"
	"servicehub/internal/events"
)

const providerColumns = `id,user_id,business_name,business_description,category,COALESCE(subcategory,''),location,COALESCE(phone,''),email,COALESCE(website,''),verified,verified_at,rating_average,rating_count,created_at,updated_at`

// ProviderFilter narrows provider listings. Zero values mean "any".
type ProviderFilter struct {
	Category string
	Location string
	Verified *bool
	Search   string
	Page     int
	Limit    int
}

func scanProvider(row rowScanner) (domain.Provider, error) {
	var p domain.Provider
	var verified int
	var verifiedAt sql.NullString
	var created, updated string
	err := row.Scan(&p.ID, &p.UserID, &p.BusinessName, &p.BusinessDescription, &p.Category, &p.Subcategory, &p.Location,
		&p.Phone, &p.Email, &p.Website, &verified, &verifiedAt, &p.RatingAverage, &p.RatingCount, &created, &updated)
	if err != nil {
		return p, err
	}
	p.Verified = verified != 0
	if p.VerifiedAt, err = parseNullTime(verifiedAt); err != nil {
		return p, err
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return p, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return p, err
	}
	return p, nil
}

func (r Repo) InsertProvider(ctx context.Context, p domain.Provider) error {
	_, err := r.exec(ctx, nil, `INSERT INTO service_providers(id,user_id,business_name,business_description,category,subcategory,location,phone,email,website,verified,verified_at,rating_average,rating_count,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.UserID, p.BusinessName, p.BusinessDescription, p.Category, nullable(p.Subcategory), p.Location, nullable(p.Phone),
		p.Email, nullable(p.Website), boolInt(p.Verified), nullableTime(p.VerifiedAt), p.RatingAverage, p.RatingCount,
		db.FormatTime(p.CreatedAt), db.FormatTime(p.UpdatedAt))
	return storeErr("insert provider", err)
}

func (r Repo) GetProvider(ctx context.Context, id string) (domain.Provider, error) {
	p, err := scanProvider(r.DB.QueryRowContext(ctx, r.q(`SELECT `+providerColumns+` FROM service_providers WHERE id=?`), id))
	if err != nil {
		return p, notFoundOr("get provider", "service provider", id, err)
	}
	return p, nil
}

func (r Repo) UpdateProvider(ctx context.Context, p domain.Provider) error {
	res, err := r.exec(ctx, nil, `UPDATE service_providers SET business_name=?, business_description=?, category=?, subcategory=?, location=?, phone=?, email=?, website=?, updated_at=? WHERE id=?`,
		p.BusinessName, p.BusinessDescription, p.Category, nullable(p.Subcategory), p.Location, nullable(p.Phone), p.Email,
		nullable(p.Website), db.FormatTime(p.UpdatedAt), p.ID)
	if err != nil {
		return storeErr("update provider", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundError{Kind: "service provider", ID: p.ID}
	}
	return nil
}

// SetProviderVerified records a verification decision and its audit event.
func (r Repo) SetProviderVerified(ctx context.Context, p domain.Provider, actorID string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin", err)
	}
	defer tx.Rollback()
	res, err := r.exec(ctx, tx, `UPDATE service_providers SET verified=?, verified_at=?, updated_at=? WHERE id=?`,
		boolInt(p.Verified), nullableTime(p.VerifiedAt), db.FormatTime(p.UpdatedAt), p.ID)
	if err != nil {
		return storeErr("verify provider", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundError{Kind: "service provider", ID: p.ID}
	}
	if err := r.Events.Append(ctx, tx, events.ProviderVerified, "provider", p.ID, actorID, events.EventPayload{"verified": p.Verified}); err != nil {
		return storeErr("append event", err)
	}
	return storeErr("commit", tx.Commit())
}

func (r Repo) DeleteProvider(ctx context.Context, id string) error {
	res, err := r.exec(ctx, nil, `DELETE FROM service_providers WHERE id=?`, id)
	if err != nil {
		return storeErr("delete provider", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundError{Kind: "service provider", ID: id}
	}
	return nil
}

func providerWhere(f ProviderFilter) (string, []any) {
	var clauses []string
	var args []any
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	if f.Location != "" {
		clauses = append(clauses, "LOWER(location) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Location)+"%")
	}
	if f.Verified != nil {
		clauses = append(clauses, "verified=?")
		args = append(args, boolInt(*f.Verified))
	}
	if f.Search != "" {
		clauses = append(clauses, "(LOWER(business_name) LIKE ? OR LOWER(business_description) LIKE ?)")
		like := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, like, like)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListProviders returns one page of providers and the total matching count.
func (r Repo) ListProviders(ctx context.Context, f ProviderFilter) ([]domain.Provider, int, error) {
	where, args := providerWhere(f)
	var total int
	if err := r.DB.QueryRowContext(ctx, r.q(`SELECT COUNT(*) FROM service_providers`+where), args...).Scan(&total); err != nil {
		return nil, 0, storeErr("count providers", err)
	}
	query := `SELECT ` + providerColumns + ` FROM service_providers` + where +
		` ORDER BY verified DESC, rating_average DESC, created_at DESC, id ASC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, offset(f.Page, f.Limit))
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, 0, storeErr("list providers", err)
	}
	defer rows.Close()
	res := []domain.Provider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, 0, storeErr("scan provider", err)
		}
		res = append(res, p)
	}
	return res, total, storeErr("list providers", rows.Err())
}

// ProviderIDsOwnedBy returns the ids of providers registered by a user.
func (r Repo) ProviderIDsOwnedBy(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT id FROM service_providers WHERE user_id=? ORDER BY id`), userID)
	if err != nil {
		return nil, storeErr("list owned providers", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("scan provider id", err)
		}
		ids = append(ids, id)
	}
	return ids, storeErr("list owned providers", rows.Err())
}
