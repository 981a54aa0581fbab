package petalpress

import "time"

// Post is the core content type stored in the document database and
// rendered by the public viewer.
type Post struct {
	ID        string    // store-assigned, immutable
	Title     string
	Body      string    // free text, double-newline paragraph breaks
	Image     string    // filename from the available image set; "" means none
	Published bool      // visitors only ever see published posts
	CreatedAt time.Time // server-assigned, immutable
	UpdatedAt time.Time // bumped on every mutation
}

// PostFields carries the mutable fields of a post through create and
// update operations. IDs and timestamps are always store-assigned.
type PostFields struct {
	Title     string
	Body      string
	Image     string
	Published bool
}

// Severity classifies a notification shown for a terminal operation outcome.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)
