package enquiries

import "time"

// Enquiry is a contact-form submission from the public site.
type Enquiry struct {
	ID         string
	Name       string
	Email      string
	Message    string
	ReceivedAt time.Time
}
