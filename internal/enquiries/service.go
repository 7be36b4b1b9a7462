package enquiries

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clearline-consulting/clearline/internal/authz"
	"github.com/clearline-consulting/clearline/internal/shared"
)

// Notifier enqueues an acknowledgement for a received enquiry.
type Notifier interface {
	EnquiryReceived(ctx context.Context, e Enquiry) error
}

// Service handles enquiry submissions and the backoffice listing.
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *slog.Logger
}

// NewService builds a Service instance. notifier may be nil if no worker is
// running.
func NewService(repo Repository, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// Submit stores an enquiry from the public contact form and queues an
// acknowledgement email. A queue failure does not lose the enquiry.
func (s *Service) Submit(ctx context.Context, name, email, message string) (Enquiry, error) {
	e := Enquiry{
		ID:         uuid.NewString(),
		Name:       name,
		Email:      email,
		Message:    message,
		ReceivedAt: time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, e); err != nil {
		return Enquiry{}, fmt.Errorf("insert enquiry: %w", err)
	}
	if s.notifier != nil {
		if err := s.notifier.EnquiryReceived(ctx, e); err != nil {
			s.logger.Warn("enqueue enquiry ack", slog.String("enquiry_id", e.ID), slog.Any("error", err))
		}
	}
	return e, nil
}

// List returns recent enquiries for actors holding view_reports.
func (s *Service) List(ctx context.Context, actor *authz.Actor, limit int) ([]Enquiry, error) {
	if actor == nil || !actor.Active || !authz.HasCapability(actor.Role, authz.CapViewReports) {
		return nil, shared.ErrForbidden
	}
	if limit <= 0 {
		limit = 100
	}
	return s.repo.List(ctx, limit)
}

// Count returns the number of enquiries for the dashboard.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
