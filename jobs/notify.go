package jobs

import (
	"context"
	"fmt"

	"github.com/clearline-consulting/clearline/internal/enquiries"
)

// EnquiryNotifier queues acknowledgement emails for contact-form submissions.
type EnquiryNotifier struct {
	client *Client
}

// NewEnquiryNotifier constructs an EnquiryNotifier.
func NewEnquiryNotifier(client *Client) *EnquiryNotifier {
	return &EnquiryNotifier{client: client}
}

// EnquiryReceived enqueues the acknowledgement mail for one enquiry.
func (n *EnquiryNotifier) EnquiryReceived(ctx context.Context, e enquiries.Enquiry) error {
	_, err := n.client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      e.Email,
		Subject: "We received your enquiry",
		Body: fmt.Sprintf(
			"Hello %s,\n\nThanks for getting in touch with Clearline. We read every enquiry and reply within two working days.\n\nYour message:\n%s\n",
			e.Name, e.Message),
	})
	return err
}

var _ enquiries.Notifier = (*EnquiryNotifier)(nil)
