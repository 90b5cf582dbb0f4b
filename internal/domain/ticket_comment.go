package domain

import "time"

// TicketComment is a message on a ticket thread.
type TicketComment struct {
	ID        string
	TicketID  string
	UserID    string
	Body      string
	CreatedAt time.Time
}

// TicketAttachment stores metadata for a file kept in external storage.
type TicketAttachment struct {
	ID         string
	TicketID   string
	UploadedBy string
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
	CreatedAt  time.Time
}
