package insights

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/clearline-consulting/clearline/internal/authz"
	"github.com/clearline-consulting/clearline/internal/shared"
)

// Service provides business logic for insights. Every mutation checks the
// acting user against the capability registry before touching the repository,
// so a request that slipped past the navigation guard still cannot write.
type Service struct {
	repo Repository
}

// NewService constructs an insights service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListPublished returns published insights for the public site, newest first.
func (s *Service) ListPublished(ctx context.Context, limit int) ([]Insight, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListPublished(ctx, limit)
}

// BySlug returns one published insight for the public site.
func (s *Service) BySlug(ctx context.Context, slug string) (Insight, error) {
	return s.repo.BySlug(ctx, slug)
}

// ListAll returns every insight for the backoffice listing.
func (s *Service) ListAll(ctx context.Context, actor *authz.Actor) ([]Insight, error) {
	if !authz.HasCapability(actorRole(actor), authz.CapManageInsights) {
		return nil, shared.ErrForbidden
	}
	return s.repo.ListAll(ctx)
}

// ByID returns one insight for the backoffice edit form.
func (s *Service) ByID(ctx context.Context, actor *authz.Actor, id string) (Insight, error) {
	if !authz.HasCapability(actorRole(actor), authz.CapManageInsights) {
		return Insight{}, shared.ErrForbidden
	}
	return s.repo.ByID(ctx, id)
}

// Create persists a new insight authored by the actor.
func (s *Service) Create(ctx context.Context, actor *authz.Actor, draft Draft) (Insight, error) {
	if actor == nil || !actor.Active || !authz.HasCapability(actor.Role, authz.CapCreate) {
		return Insight{}, shared.ErrForbidden
	}

	ins := Insight{
		ID:        NewID(),
		Slug:      Slugify(draft.Title),
		Title:     draft.Title,
		Summary:   draft.Summary,
		Body:      draft.Body,
		AuthorID:  actor.ID,
		Published: draft.Published,
	}
	if ins.Published {
		ins.PublishedAt = time.Now().UTC()
	}

	if err := s.repo.Insert(ctx, ins); err != nil {
		return Insight{}, fmt.Errorf("insert insight: %w", err)
	}
	return ins, nil
}

// Update applies the draft to an existing insight. Consultants may only touch
// insights they authored; administrators may touch any.
func (s *Service) Update(ctx context.Context, actor *authz.Actor, id string, draft Draft) (Insight, error) {
	existing, err := s.repo.ByID(ctx, id)
	if err != nil {
		return Insight{}, fmt.Errorf("get insight: %w", err)
	}

	if !authz.CanEditEntity(actor, existing) {
		return Insight{}, shared.ErrForbidden
	}

	existing.Title = draft.Title
	existing.Summary = draft.Summary
	existing.Body = draft.Body
	existing.Slug = Slugify(draft.Title)
	if draft.Published && !existing.Published {
		existing.PublishedAt = time.Now().UTC()
	}
	existing.Published = draft.Published

	if err := s.repo.Update(ctx, existing); err != nil {
		return Insight{}, fmt.Errorf("update insight: %w", err)
	}
	return existing, nil
}

// Delete removes an insight under the same ownership rules as Update.
func (s *Service) Delete(ctx context.Context, actor *authz.Actor, id string) error {
	existing, err := s.repo.ByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get insight: %w", err)
	}

	if !authz.CanDeleteEntity(actor, existing) {
		return shared.ErrForbidden
	}

	if err := s.repo.Delete(ctx, existing.ID); err != nil {
		return fmt.Errorf("delete insight: %w", err)
	}
	return nil
}

// Counts returns totals for the backoffice dashboard.
func (s *Service) Counts(ctx context.Context) (total, published int64, err error) {
	return s.repo.Counts(ctx)
}

func actorRole(actor *authz.Actor) authz.Role {
	if actor == nil || !actor.Active {
		return ""
	}
	return actor.Role
}

// Slugify lowercases the title and collapses everything outside [a-z0-9]
// into single hyphens.
func Slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r) && r < 128:
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
