package roster

import "time"

// ExportRecord is the plain serialized form of a roster entry: all
// timestamps as RFC3339 strings, suitable for file export or handing
// to an external system.
type ExportRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	HasAccess    bool   `json:"has_access"`
	Token        string `json:"token"`
	CreatedAt    string `json:"created_at"`
	LastAccessAt string `json:"last_access_at,omitempty"`
}

// Export converts a roster snapshot into its serialized form,
// preserving order.
func Export(records []PersonRecord) []ExportRecord {
	out := make([]ExportRecord, 0, len(records))
	for _, p := range records {
		rec := ExportRecord{
			ID:        p.ID,
			Name:      p.Name,
			Email:     p.Email,
			Phone:     p.Phone,
			HasAccess: p.HasAccess,
			Token:     p.Token,
			CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
		}
		if p.LastAccessAt != nil {
			rec.LastAccessAt = p.LastAccessAt.UTC().Format(time.RFC3339)
		}
		out = append(out, rec)
	}
	return out
}
