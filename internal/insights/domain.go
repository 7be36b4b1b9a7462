package insights

import "time"

// Insight is a published or draft article authored by a backoffice user.
// It is the ownership-scoped entity: consultants may edit and delete only
// what they authored, administrators anything.
type Insight struct {
	ID          string
	Slug        string
	Title       string
	Summary     string
	Body        string
	AuthorID    string
	Published   bool
	PublishedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OwnerID returns the identity id of the author, satisfying authz.Owned.
func (i Insight) OwnerID() string { return i.AuthorID }

// Draft carries the editable fields of an insight.
type Draft struct {
	Title     string
	Summary   string
	Body      string
	Published bool
}
