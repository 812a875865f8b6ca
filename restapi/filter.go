package restapi

import (
	"strings"

	"github.com/google/uuid"
)

// parseIDFilter reads the row filter: eq.<uuid> or in.(<uuid>,<uuid>,...).
func parseIDFilter(raw string) ([]uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "eq."):
		id, err := uuid.Parse(strings.TrimPrefix(raw, "eq."))
		if err != nil {
			return nil, badRequest(textCodeBadFilter, "id filter is not a uuid")
		}
		return []uuid.UUID{id}, nil
	case strings.HasPrefix(raw, "in.(") && strings.HasSuffix(raw, ")"):
		inner := strings.TrimSuffix(strings.TrimPrefix(raw, "in.("), ")")
		var ids []uuid.UUID
		for _, part := range strings.Split(inner, ",") {
			part = strings.Trim(strings.TrimSpace(part), `"`)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, badRequest(textCodeBadFilter, "id filter is not a uuid list")
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return nil, badRequest(textCodeBadFilter, "id filter is empty")
		}
		return ids, nil
	}
	return nil, badRequest(textCodeBadFilter, "id filter must be eq.<uuid> or in.(...)")
}
