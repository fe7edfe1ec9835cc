package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
)

// Reconcile rebuilds the denormalized totals from the transaction log:
// student totals from their own deltas, house totals from the deltas of
// students *currently* assigned to them. It is the operator-run self-heal
// for drift introduced outside the service (manual rows, restored dumps),
// not part of the serving path.
func Reconcile(ctx context.Context, db *bun.DB) error {
	return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE students SET total_points = COALESCE((
				SELECT SUM(t.delta) FROM point_transactions t WHERE t.student_id = students.id
			), 0)
		`); err != nil {
			return fmt.Errorf("reconcile student totals: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE houses SET total_points = COALESCE((
				SELECT SUM(t.delta)
				FROM point_transactions t
				JOIN students s ON s.id = t.student_id
				WHERE s.assigned_house = houses.name
			), 0)
		`); err != nil {
			return fmt.Errorf("reconcile house totals: %w", err)
		}
		return nil
	})
}
