package engine

import (
	"context"
	"net/mail"
	"strings"
	"unicode/utf8"

	"servicehub/internal/domain"
	"servicehub/internal/repo"
)

// ProviderInput carries the caller-editable provider fields.
type ProviderInput struct {
	BusinessName        string
	BusinessDescription string
	Category            string
	Subcategory         string
	Location            string
	Phone               string
	Email               string
	Website             string
}

func (in ProviderInput) validate() error {
	if n := utf8.RuneCountInString(strings.TrimSpace(in.BusinessName)); n < 2 || n > 100 {
		return domain.Invalid("business_name", "must be between 2 and 100 characters")
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(in.BusinessDescription)); n < 10 || n > 1000 {
		return domain.Invalid("business_description", "must be between 10 and 1000 characters")
	}
	if strings.TrimSpace(in.Category) == "" {
		return domain.Invalid("category", "is required")
	}
	if strings.TrimSpace(in.Location) == "" {
		return domain.Invalid("location", "is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return domain.Invalid("email", "must be a valid email address")
	}
	return nil
}

func (in ProviderInput) apply(p *domain.Provider) {
	p.BusinessName = strings.TrimSpace(in.BusinessName)
	p.BusinessDescription = strings.TrimSpace(in.BusinessDescription)
	p.Category = strings.TrimSpace(in.Category)
	p.Subcategory = strings.TrimSpace(in.Subcategory)
	p.Location = strings.TrimSpace(in.Location)
	p.Phone = strings.TrimSpace(in.Phone)
	p.Email = strings.TrimSpace(in.Email)
	p.Website = strings.TrimSpace(in.Website)
}

func requireCaller(caller domain.Caller) error {
	if caller.ID == "" {
		return domain.PermissionError{Message: "authentication required"}
	}
	return nil
}

// CreateProvider registers a business owned by the caller. New providers start unverified.
func (e Engine) CreateProvider(ctx context.Context, caller domain.Caller, in ProviderInput) (domain.Provider, error) {
	if err := requireCaller(caller); err != nil {
		return domain.Provider{}, err
	}
	if err := in.validate(); err != nil {
		return domain.Provider{}, err
	}
	now := e.now()
	p := domain.Provider{ID: newID(), UserID: caller.ID, CreatedAt: now, UpdatedAt: now}
	in.apply(&p)
	if err := e.Records.InsertProvider(ctx, p); err != nil {
		return domain.Provider{}, err
	}
	e.log().Info("provider created", "provider_id", p.ID, "user_id", caller.ID)
	return p, nil
}

func (e Engine) GetProvider(ctx context.Context, id string) (domain.Provider, error) {
	return e.Records.GetProvider(ctx, id)
}

func (e Engine) ownedProvider(ctx context.Context, caller domain.Caller, id string) (domain.Provider, error) {
	p, err := e.Records.GetProvider(ctx, id)
	if err != nil {
		return p, err
	}
	if !caller.IsAdmin() && (caller.ID == "" || caller.ID != p.UserID) {
		return p, domain.PermissionError{Message: "only the provider owner or an admin can modify this provider"}
	}
	return p, nil
}

func (e Engine) UpdateProvider(ctx context.Context, caller domain.Caller, id string, in ProviderInput) (domain.Provider, error) {
	p, err := e.ownedProvider(ctx, caller, id)
	if err != nil {
		return domain.Provider{}, err
	}
	if err := in.validate(); err != nil {
		return domain.Provider{}, err
	}
	in.apply(&p)
	p.UpdatedAt = e.now()
	if err := e.Records.UpdateProvider(ctx, p); err != nil {
		return domain.Provider{}, err
	}
	return p, nil
}

func (e Engine) DeleteProvider(ctx context.Context, caller domain.Caller, id string) error {
	if _, err := e.ownedProvider(ctx, caller, id); err != nil {
		return err
	}
	if err := e.Records.DeleteProvider(ctx, id); err != nil {
		return err
	}
	e.log().Info("provider deleted", "provider_id", id, "actor_id", caller.ID)
	return nil
}

// VerifyProvider sets or clears the verified flag. Admin only.
func (e Engine) VerifyProvider(ctx context.Context, caller domain.Caller, id string, verified bool) (domain.Provider, error) {
	if !caller.IsAdmin() {
		return domain.Provider{}, domain.PermissionError{Message: "only admins can verify providers"}
	}
	p, err := e.Records.GetProvider(ctx, id)
	if err != nil {
		return domain.Provider{}, err
	}
	now := e.now()
	p.Verified = verified
	p.VerifiedAt = nil
	if verified {
		p.VerifiedAt = &now
	}
	p.UpdatedAt = now
	if err := e.Records.SetProviderVerified(ctx, p, caller.ID); err != nil {
		return domain.Provider{}, err
	}
	e.log().Info("provider verification changed", "provider_id", id, "verified", verified, "actor_id", caller.ID)
	return p, nil
}

// ProviderQuery is the public provider search.
type ProviderQuery struct {
	Category string
	Location string
	Verified *bool
	Search   string
	Page     int
	Limit    int
}

type ProviderList struct {
	Providers  []domain.Provider `json:"providers"`
	Pagination Page              `json:"pagination"`
}

func (e Engine) ListProviders(ctx context.Context, q ProviderQuery) (ProviderList, error) {
	page, limit, err := normalizePage(q.Page, q.Limit, 20, 100)
	if err != nil {
		return ProviderList{}, err
	}
	items, total, err := e.Records.ListProviders(ctx, repo.ProviderFilter{
		Category: strings.TrimSpace(q.Category),
		Location: strings.TrimSpace(q.Location),
		Verified: q.Verified,
		Search:   strings.TrimSpace(q.Search),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return ProviderList{}, err
	}
	return ProviderList{Providers: items, Pagination: newPage(page, limit, total)}, nil
}
