package models

import (
	"time"
)

// Audit actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// AuditEntry records one write relayed to the upstream API. Only the outcome
// is kept; posting data itself lives upstream.
type AuditEntry struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Action    string    `gorm:"not null;size:16" json:"action"`
	PostingID string    `gorm:"index;size:128" json:"postingId"`
	Operator  string    `gorm:"not null;size:255" json:"operator"`
	Status    int       `gorm:"not null" json:"status"`
	Source    string    `gorm:"not null;size:16;default:api" json:"source"` // "api" or "dashboard"
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// Succeeded reports whether the relayed write got a 2xx answer.
func (e AuditEntry) Succeeded() bool {
	return e.Status >= 200 && e.Status < 300
}
