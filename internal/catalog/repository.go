package catalog

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/campuseats/canteen/internal/domain"
)

// CatalogRepository owns the vendors and menu_items tables in the catalog
// schema.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) ListVendors(ctx context.Context) ([]domain.Vendor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, status
		FROM vendors
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var vendors []domain.Vendor
	for rows.Next() {
		var v domain.Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Status); err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return vendors, nil
}

func (r *CatalogRepository) GetVendor(ctx context.Context, id string) (*domain.Vendor, error) {
	vendor := &domain.Vendor{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, status
		FROM vendors
		WHERE id = $1
	`, id).Scan(&vendor.ID, &vendor.Name, &vendor.Status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return vendor, nil
}

func (r *CatalogRepository) UpdateVendorStatus(ctx context.Context, id string, status domain.VendorStatus) (*domain.Vendor, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE vendors SET status = $1
		WHERE id = $2
	`, status, id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetVendor(ctx, id)
}

func (r *CatalogRepository) MenuForVendor(ctx context.Context, vendorID string) ([]domain.MenuItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, vendor_id, name, price, category, prep_time_minutes, available
		FROM menu_items
		WHERE vendor_id = $1
		ORDER BY category, name
	`, vendorID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []domain.MenuItem
	for rows.Next() {
		var item domain.MenuItem
		if err := rows.Scan(&item.ID, &item.VendorID, &item.Name, &item.Price,
			&item.Category, &item.PrepTimeMinutes, &item.Available); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *CatalogRepository) GetMenuItem(ctx context.Context, id string) (*domain.MenuItem, error) {
	item := &domain.MenuItem{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, vendor_id, name, price, category, prep_time_minutes, available
		FROM menu_items
		WHERE id = $1
	`, id).Scan(&item.ID, &item.VendorID, &item.Name, &item.Price,
		&item.Category, &item.PrepTimeMinutes, &item.Available)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return item, nil
}

func (r *CatalogRepository) CreateMenuItem(ctx context.Context, item *domain.MenuItem) error {
	item.ID = uuid.New().String()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO menu_items (id, vendor_id, name, price, category, prep_time_minutes, available)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.VendorID, item.Name, item.Price, item.Category, item.PrepTimeMinutes, item.Available)
	return err
}

func (r *CatalogRepository) UpdateMenuItem(ctx context.Context, id string, price *int64, available *bool) (*domain.MenuItem, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE menu_items
		SET price = COALESCE($1, price), available = COALESCE($2, available)
		WHERE id = $3
	`, price, available, id)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetMenuItem(ctx, id)
}
