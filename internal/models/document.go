package models

import "time"

// DocumentKind enumerates the supported student document categories.
type DocumentKind string

const (
	DocumentMedical     DocumentKind = "MEDICAL"
	DocumentLicence     DocumentKind = "LICENCE"
	DocumentEndorsement DocumentKind = "ENDORSEMENT"
	DocumentOther       DocumentKind = "OTHER"
)

// Document is the metadata row for an uploaded student file. The bytes live
// in local storage; downloads go through signed URLs.
type Document struct {
	ID         string       `db:"id" json:"id"`
	StudentID  string       `db:"student_id" json:"student_id"`
	Kind       DocumentKind `db:"kind" json:"kind"`
	FileName   string       `db:"file_name" json:"file_name"`
	MIMEType   string       `db:"mime_type" json:"mime_type"`
	SizeBytes  int64        `db:"size_bytes" json:"size_bytes"`
	StorageKey string       `db:"storage_key" json:"-"`
	UploadedBy string       `db:"uploaded_by" json:"uploaded_by"`
	ExpiresAt  *time.Time   `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}

// DocumentFilter narrows document listings.
type DocumentFilter struct {
	StudentID string
	Kind      *DocumentKind
	Page      int
	PageSize  int
}
