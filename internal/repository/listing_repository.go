package repository

import (
	"context"
	"database/sql"
	"math"

	"github.com/stayfinder/stayfinder/internal/model"
)

// ListingRepo provides CRUD operations for listings and their child
// tables (images, amenities, blackout ranges).  Listings are soft
// deleted: Deactivate flips is_active and nothing is ever removed
// from the listings table.  The rating columns are only written by
// RecomputeRating.
type ListingRepo struct {
	db *sql.DB
}

// NewListingRepo returns a new ListingRepo bound to the given database.
func NewListingRepo(db *sql.DB) *ListingRepo { return &ListingRepo{db: db} }

// DB exposes the underlying handle so handlers can begin transactions
// spanning several repositories.
func (r *ListingRepo) DB() *sql.DB { return r.db }

const listingCols = `id, host_id, title, description, type,
	address, city, state, country, zip_code, latitude, longitude,
	price_cents, currency,
	cap_guests, cap_bedrooms, cap_bathrooms, cap_beds,
	check_in_time, check_out_time, min_stay, max_stay,
	rating_avg, rating_count, is_active, created_at, updated_at`

func scanListing(row interface{ Scan(...any) error }) (*model.Listing, error) {
	var l model.Listing
	err := row.Scan(
		&l.ID, &l.HostID, &l.Title, &l.Description, &l.Type,
		&l.Location.Address, &l.Location.City, &l.Location.State,
		&l.Location.Country, &l.Location.ZipCode, &l.Location.Latitude, &l.Location.Longitude,
		&l.PriceCents, &l.Currency,
		&l.Capacity.Guests, &l.Capacity.Bedrooms, &l.Capacity.Bathrooms, &l.Capacity.Beds,
		&l.Rules.CheckInTime, &l.Rules.CheckOutTime, &l.Rules.MinStay, &l.Rules.MaxStay,
		&l.Rating.Average, &l.Rating.Count, &l.IsActive, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Create inserts a listing together with its images and amenities in
// one transaction and populates the generated ID on the model.
func (r *ListingRepo) Create(ctx context.Context, l *model.Listing) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const q = `INSERT INTO listings
		(host_id, title, description, type,
		 address, city, state, country, zip_code, latitude, longitude,
		 price_cents, currency,
		 cap_guests, cap_bedrooms, cap_bathrooms, cap_beds,
		 check_in_time, check_out_time, min_stay, max_stay)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := tx.ExecContext(ctx, q,
		l.HostID, l.Title, l.Description, l.Type,
		l.Location.Address, l.Location.City, l.Location.State,
		l.Location.Country, l.Location.ZipCode, l.Location.Latitude, l.Location.Longitude,
		l.PriceCents, l.Currency,
		l.Capacity.Guests, l.Capacity.Bedrooms, l.Capacity.Bathrooms, l.Capacity.Beds,
		l.Rules.CheckInTime, l.Rules.CheckOutTime, l.Rules.MinStay, l.Rules.MaxStay,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	if err := r.replaceChildrenTx(ctx, tx, l); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	l.IsActive = true
	return nil
}

// replaceChildrenTx rewrites listing_images and listing_amenities for
// the listing inside the given transaction.
func (r *ListingRepo) replaceChildrenTx(ctx context.Context, tx *sql.Tx, l *model.Listing) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM listing_images WHERE listing_id = ?`, l.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM listing_amenities WHERE listing_id = ?`, l.ID); err != nil {
		return err
	}
	for i, img := range l.Images {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO listing_images (listing_id, position, url, alt_text) VALUES (?,?,?,?)`,
			l.ID, i, img.URL, img.AltText); err != nil {
			return err
		}
	}
	for _, a := range l.Amenities {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO listing_amenities (listing_id, amenity) VALUES (?,?)`,
			l.ID, a); err != nil {
			return err
		}
	}
	return nil
}

// GetByID loads a listing with its images and amenities.  When
// activeOnly is true, deactivated listings are reported as not found.
// Returns ErrListingNotFound when no row matches.
func (r *ListingRepo) GetByID(ctx context.Context, id uint64, activeOnly bool) (*model.Listing, error) {
	q := `SELECT ` + listingCols + ` FROM listings WHERE id = ?`
	if activeOnly {
		q += ` AND is_active = 1`
	}
	l, err := scanListing(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	if err := r.loadChildren(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (r *ListingRepo) loadChildren(ctx context.Context, l *model.Listing) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT url, alt_text FROM listing_images WHERE listing_id = ? ORDER BY position`, l.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	l.Images = []model.Image{}
	for rows.Next() {
		var img model.Image
		if err := rows.Scan(&img.URL, &img.AltText); err != nil {
			return err
		}
		l.Images = append(l.Images, img)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	arows, err := r.db.QueryContext(ctx,
		`SELECT amenity FROM listing_amenities WHERE listing_id = ? ORDER BY amenity`, l.ID)
	if err != nil {
		return err
	}
	defer arows.Close()
	l.Amenities = []string{}
	for arows.Next() {
		var a string
		if err := arows.Scan(&a); err != nil {
			return err
		}
		l.Amenities = append(l.Amenities, a)
	}
	return arows.Err()
}

// Update rewrites the editable columns of a listing owned by hostID
// along with its images and amenities.  Rating columns are left
// untouched.  Returns ErrListingNotFound when the listing does not
// exist and ErrForbidden when it belongs to a different host.
func (r *ListingRepo) Update(ctx context.Context, hostID uint64, l *model.Listing) error {
	var owner uint64
	err := r.db.QueryRowContext(ctx, `SELECT host_id FROM listings WHERE id = ?`, l.ID).Scan(&owner)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrListingNotFound
		}
		return err
	}
	if owner != hostID {
		return ErrForbidden
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const q = `UPDATE listings SET
		title=?, description=?, type=?,
		address=?, city=?, state=?, country=?, zip_code=?, latitude=?, longitude=?,
		price_cents=?, currency=?,
		cap_guests=?, cap_bedrooms=?, cap_bathrooms=?, cap_beds=?,
		check_in_time=?, check_out_time=?, min_stay=?, max_stay=?
		WHERE id=?`
	if _, err := tx.ExecContext(ctx, q,
		l.Title, l.Description, l.Type,
		l.Location.Address, l.Location.City, l.Location.State,
		l.Location.Country, l.Location.ZipCode, l.Location.Latitude, l.Location.Longitude,
		l.PriceCents, l.Currency,
		l.Capacity.Guests, l.Capacity.Bedrooms, l.Capacity.Bathrooms, l.Capacity.Beds,
		l.Rules.CheckInTime, l.Rules.CheckOutTime, l.Rules.MinStay, l.Rules.MaxStay,
		l.ID,
	); err != nil {
		return err
	}
	if err := r.replaceChildrenTx(ctx, tx, l); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Deactivate soft-deletes a listing owned by hostID.
func (r *ListingRepo) Deactivate(ctx context.Context, hostID, listingID uint64) error {
	var owner uint64
	err := r.db.QueryRowContext(ctx, `SELECT host_id FROM listings WHERE id = ?`, listingID).Scan(&owner)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrListingNotFound
		}
		return err
	}
	if owner != hostID {
		return ErrForbidden
	}
	_, err = r.db.ExecContext(ctx, `UPDATE listings SET is_active = 0 WHERE id = ?`, listingID)
	return err
}

// ListByHost returns all listings owned by hostID, newest first,
// including deactivated ones so hosts can reactivate or audit them.
func (r *ListingRepo) ListByHost(ctx context.Context, hostID uint64) ([]*model.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingCols+` FROM listings WHERE host_id = ? ORDER BY created_at DESC`, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*model.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, l := range out {
		if err := r.loadChildren(ctx, l); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RecomputeRating recalculates the denormalized rating summary of a
// listing from every completed booking carrying a review, rounding
// the mean half-up to one decimal.  When no qualifying booking
// exists the stored summary is left untouched.
func (r *ListingRepo) RecomputeRating(ctx context.Context, listingID uint64) error {
	var (
		avg   sql.NullFloat64
		count uint32
	)
	const q = `SELECT AVG(review_rating), COUNT(*)
		FROM bookings
		WHERE listing_id = ? AND status = 'completed' AND review_rating IS NOT NULL`
	if err := r.db.QueryRowContext(ctx, q, listingID).Scan(&avg, &count); err != nil {
		return err
	}
	if !avg.Valid || count == 0 {
		return nil
	}
	rounded := math.Floor(avg.Float64*10+0.5) / 10
	_, err := r.db.ExecContext(ctx,
		`UPDATE listings SET rating_avg = ?, rating_count = ? WHERE id = ?`,
		rounded, count, listingID)
	return err
}

// AddBlackout records a host-declared unavailable range on a listing
// and returns the new row ID.  The range is half-open like booking
// intervals.
func (r *ListingRepo) AddBlackout(ctx context.Context, hostID uint64, b *model.Blackout) error {
	var owner uint64
	err := r.db.QueryRowContext(ctx, `SELECT host_id FROM listings WHERE id = ?`, b.ListingID).Scan(&owner)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrListingNotFound
		}
		return err
	}
	if owner != hostID {
		return ErrForbidden
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO listing_blackouts (listing_id, start_date, end_date) VALUES (?,?,?)`,
		b.ListingID, b.StartDate.Format("2006-01-02"), b.EndDate.Format("2006-01-02"))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// DeleteBlackout removes a blackout range; only the owning host may
// do so.  Returns sql.ErrNoRows when the blackout does not exist.
func (r *ListingRepo) DeleteBlackout(ctx context.Context, hostID, listingID, blackoutID uint64) error {
	var owner uint64
	const q = `SELECT l.host_id
		FROM listing_blackouts b
		JOIN listings l ON l.id = b.listing_id
		WHERE b.id = ? AND b.listing_id = ?`
	err := r.db.QueryRowContext(ctx, q, blackoutID, listingID).Scan(&owner)
	if err != nil {
		return err
	}
	if owner != hostID {
		return ErrForbidden
	}
	_, err = r.db.ExecContext(ctx, `DELETE FROM listing_blackouts WHERE id = ?`, blackoutID)
	return err
}

// ListBlackouts returns the blackout ranges of a listing ordered by
// start date.
func (r *ListingRepo) ListBlackouts(ctx context.Context, listingID uint64) ([]model.Blackout, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, listing_id, start_date, end_date FROM listing_blackouts WHERE listing_id = ? ORDER BY start_date`,
		listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Blackout{}
	for rows.Next() {
		var b model.Blackout
		if err := rows.Scan(&b.ID, &b.ListingID, &b.StartDate, &b.EndDate); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
