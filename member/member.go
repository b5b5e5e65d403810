package member

import (
	"context"
	"strings"
)

// Member is the subset of the upstream member record needed to build
// searchable text. The member CRUD service owns the canonical record; this
// subsystem only observes it.
type Member struct {
	ID                 uint64   `json:"id"`
	DisplayName        string   `json:"displayName"`
	LocalizedName      string   `json:"localizedName,omitempty"`
	Description        string   `json:"description,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	PersonalitySummary string   `json:"personalitySummary,omitempty"`
	Active             bool     `json:"active"`
}

// SearchableText flattens the member's semantic fields into the text the
// embedding is computed from. Field order is fixed so identical records
// produce identical text (and therefore identical content hashes).
func (m *Member) SearchableText() string {
	parts := make([]string, 0, 5)
	for _, part := range []string{
		m.DisplayName,
		m.LocalizedName,
		m.Description,
		strings.Join(m.Tags, " "),
		m.PersonalitySummary,
	} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "\n")
}

// Source provides read access to member records.
// Implementations must be thread-safe for concurrent use.
type Source interface {
	// GetMember retrieves one member by ID.
	// Returns an entity-not-found error when the member does not exist.
	GetMember(ctx context.Context, id uint64) (*Member, error)
}
