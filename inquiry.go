package petalpress

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Inquiry is one contact-form submission.
type Inquiry struct {
	ID          int64
	Name        string
	Email       string
	InquiryType string
	Message     string
	ReceivedAt  time.Time
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validate applies the contact-form rules. The returned slice lists every
// problem so the form can show them all at once.
func (i Inquiry) Validate() []string {
	var errs []string
	if len(strings.TrimSpace(i.Name)) < 2 {
		errs = append(errs, "Please enter a valid name")
	}
	if !emailPattern.MatchString(i.Email) {
		errs = append(errs, "Please enter a valid email address")
	}
	if strings.TrimSpace(i.InquiryType) == "" {
		errs = append(errs, "Please select an inquiry type")
	}
	if len(strings.TrimSpace(i.Message)) < 10 {
		errs = append(errs, "Please enter a message (at least 10 characters)")
	}
	return errs
}

// InquiryStore persists contact inquiries in a local SQLite database.
type InquiryStore struct {
	db *sql.DB
}

// NewInquiryStore opens (or creates) the SQLite database at path, ensures
// the data directory exists, and bootstraps the schema.
func NewInquiryStore(path string) (*InquiryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the request handlers write while the admin list reads; the
	// busy timeout makes writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &InquiryStore{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *InquiryStore) Close() error {
	return s.db.Close()
}

func (s *InquiryStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS inquiries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    inquiry_type TEXT NOT NULL,
    message TEXT NOT NULL,
    received_at TEXT NOT NULL
);
`)
	return err
}

// Save validates and stores an inquiry, assigning its id and timestamp.
func (s *InquiryStore) Save(inq Inquiry) (Inquiry, error) {
	if errs := inq.Validate(); len(errs) > 0 {
		return Inquiry{}, fmt.Errorf("invalid inquiry: %s", strings.Join(errs, "; "))
	}
	inq.ReceivedAt = time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO inquiries (name, email, inquiry_type, message, received_at) VALUES (?, ?, ?, ?, ?)`,
		inq.Name, inq.Email, inq.InquiryType, inq.Message, inq.ReceivedAt.Format(time.RFC3339),
	)
	if err != nil {
		return Inquiry{}, err
	}
	inq.ID, err = res.LastInsertId()
	if err != nil {
		return Inquiry{}, err
	}
	return inq, nil
}

// List returns all inquiries, newest first.
func (s *InquiryStore) List() ([]Inquiry, error) {
	rows, err := s.db.Query(`SELECT id, name, email, inquiry_type, message, received_at FROM inquiries ORDER BY received_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var inquiries []Inquiry
	for rows.Next() {
		var inq Inquiry
		var received string
		if err := rows.Scan(&inq.ID, &inq.Name, &inq.Email, &inq.InquiryType, &inq.Message, &received); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, received); err == nil {
			inq.ReceivedAt = t
		}
		inquiries = append(inquiries, inq)
	}
	return inquiries, rows.Err()
}

// Count returns the number of stored inquiries.
func (s *InquiryStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM inquiries`).Scan(&n)
	return n, err
}
