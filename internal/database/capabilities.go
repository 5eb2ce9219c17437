package database

import "context"

// Capabilities records which optional schema features are present. Resolved
// once at startup instead of guessing from runtime errors.
type Capabilities struct {
	StockAlerts bool
}

const hasStockAlertColumn = `
SELECT EXISTS (
	SELECT 1 FROM information_schema.columns
	WHERE table_name = 'products' AND column_name = 'stock_alert'
)
`

func (q *Queries) DetectCapabilities(ctx context.Context) (Capabilities, error) {
	var caps Capabilities
	row := q.db.QueryRow(ctx, hasStockAlertColumn)
	if err := row.Scan(&caps.StockAlerts); err != nil {
		return Capabilities{}, err
	}
	return caps, nil
}
