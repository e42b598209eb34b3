package dataset

import (
	"time"

	"github.com/markMSUIIT/riceprotek-web-app/internal/models"
)

// AreaPointResolver checks the mandatory spatial reference of a batch.
// *store.Store satisfies it; tests can substitute a double.
type AreaPointResolver interface {
	RequireActiveAreaPoint(areaPointID string) (*models.AreaPoint, error)
}

// BoundRow is a projection row stamped with the spatial foreign key and
// provenance fields required by every stored record.
type BoundRow struct {
	ProjectionRow
	AreaPointID string
	CreatedBy   string
	CreatedAt   time.Time
}

// Bind attaches area_point_id, created_by and a creation timestamp to every
// row of a projection. The area point is resolved once for the whole batch,
// before any row is touched; all rows of one upload share one area point, so
// a missing or inactive point fails the batch fast.
func Bind(p Projection, resolver AreaPointResolver, areaPointID, createdBy string) ([]BoundRow, error) {
	if _, err := resolver.RequireActiveAreaPoint(areaPointID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	bound := make([]BoundRow, len(p.Rows))
	for i, row := range p.Rows {
		bound[i] = BoundRow{
			ProjectionRow: row,
			AreaPointID:   areaPointID,
			CreatedBy:     createdBy,
			CreatedAt:     now,
		}
	}
	return bound, nil
}
