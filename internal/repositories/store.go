package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// readTable returns every row of T's table matching query. A nil query reads
// the whole table.
func readTable[T any](ctx context.Context, g *gorm.DB, order string, query any, args ...any) ([]T, error) {
	q := g.WithContext(ctx)
	if query != nil {
		q = q.Where(query, args...)
	}
	if order != "" {
		q = q.Order(order)
	}
	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		var zero T
		return nil, fmt.Errorf("failed to read %T rows: %w", zero, err)
	}
	return rows, nil
}

// readOne returns the single row matching query, or ErrNotFound.
func readOne[T any](ctx context.Context, g *gorm.DB, query any, args ...any) (*T, error) {
	var row T
	if err := g.WithContext(ctx).Where(query, args...).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %T: %w", row, err)
	}
	return &row, nil
}

// upsertRow merges rows by key: a row matching every key field has all its
// other columns overwritten, anything else is inserted.
func upsertRow[T any](ctx context.Context, g *gorm.DB, rows []T, keyFields ...string) error {
	if len(rows) == 0 {
		return nil
	}
	cols := make([]clause.Column, len(keyFields))
	for i, k := range keyFields {
		cols[i] = clause.Column{Name: k}
	}
	err := g.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: cols, UpdateAll: true}).
		CreateInBatches(rows, 500).Error
	if err != nil {
		return fmt.Errorf("failed to upsert %T rows: %w", rows[0], err)
	}
	return nil
}

// deleteWhere removes every row of T's table matching query.
func deleteWhere[T any](ctx context.Context, g *gorm.DB, query any, args ...any) (int64, error) {
	var zero T
	result := g.WithContext(ctx).Where(query, args...).Delete(&zero)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete %T rows: %w", zero, result.Error)
	}
	return result.RowsAffected, nil
}
