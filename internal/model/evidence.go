package model

import "time"

// EvidenceState is the upload lifecycle of an evidence object.
// idle → uploading → confirmed | failed.
type EvidenceState string

const (
	EvidenceIdle      EvidenceState = "idle"
	EvidenceUploading EvidenceState = "uploading"
	EvidenceConfirmed EvidenceState = "confirmed"
	EvidenceFailed    EvidenceState = "failed"
)

// AllowedEvidenceMimeTypes is the upload allowlist.
var AllowedEvidenceMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// Evidence is an uploaded document backing an entry's figures. Only
// confirmed evidence counts toward tier computation.
type Evidence struct {
	ID        string        `json:"id"`
	EntryID   string        `json:"entry_id,omitempty"` // empty until linked
	OwnerID   string        `json:"owner_id"`
	ObjectKey string        `json:"object_key"`
	MimeType  string        `json:"mime_type"`
	SizeBytes int64         `json:"size_bytes"`
	State     EvidenceState `json:"state"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
