package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AuditEntryView is the serialized form of one history row
type AuditEntryView struct {
	ActorID   int64      `json:"actor_id"`
	ActorName string     `json:"actor_name"`
	Action    ActionKind `json:"action"`
	Comment   string     `json:"comment"`
	CreatedAt time.Time  `json:"created_at"`
}

// ClaimView is the externally visible shape of a claim. Keep field names stable.
type ClaimView struct {
	ID          int64            `json:"id"`
	OwnerID     int64            `json:"owner_id"`
	OwnerName   string           `json:"owner_name"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Amount      string           `json:"amount"`
	ReceiptURL  string           `json:"receipt_url"`
	Status      string           `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	History     []AuditEntryView `json:"history"`
}

// View projects the claim into its serializable form
func (c *Claim) View() ClaimView {
	history := make([]AuditEntryView, 0, len(c.audit))
	for _, e := range c.audit {
		history = append(history, AuditEntryView{
			ActorID:   e.ActorID,
			ActorName: e.ActorName,
			Action:    e.Action,
			Comment:   e.Comment,
			CreatedAt: e.CreatedAt,
		})
	}

	return ClaimView{
		ID:          c.ID,
		OwnerID:     c.OwnerID,
		OwnerName:   c.OwnerName,
		Title:       c.Title,
		Description: c.Description,
		Amount:      FormatAmount(c.Amount),
		ReceiptURL:  c.ReceiptURL,
		Status:      c.status.String(),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		History:     history,
	}
}

// Views projects a list of claims
func Views(claims []*Claim) []ClaimView {
	out := make([]ClaimView, 0, len(claims))
	for _, c := range claims {
		out = append(out, c.View())
	}
	return out
}

// FormatAmount renders an amount with at least two fractional digits and
// every significant digit beyond that. It never rounds.
func FormatAmount(d decimal.Decimal) string {
	scale := 2
	s := d.String()
	if i := strings.IndexByte(s, '.'); i >= 0 && len(s)-i-1 > scale {
		scale = len(s) - i - 1
	}
	return d.StringFixed(int32(scale))
}
