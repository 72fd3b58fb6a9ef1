package repository

import (
	"context"
	"strings"
	"time"

	"github.com/stayfinder/stayfinder/internal/model"
)

// ListingSearchQuery defines filters & pagination for the public
// listing search.  All filters are conjunctive.  MinPriceCents and
// MaxPriceCents are inclusive bounds; a negative value disables the
// bound.  When CheckIn and CheckOut are both set, listings with a
// blackout range overlapping [CheckIn, CheckOut) are excluded.
type ListingSearchQuery struct {
	City          string
	State         string
	Country       string
	MinPriceCents int64
	MaxPriceCents int64
	Guests        uint32
	Type          string
	CheckIn       *time.Time
	CheckOut      *time.Time
	Amenities     []string
	Page          int
	Limit         int
}

// Search returns one page of active listings matching the query,
// newest first, along with the total match count for pagination.
func (r *ListingRepo) Search(ctx context.Context, q ListingSearchQuery) ([]*model.Listing, int64, error) {
	where := []string{"l.is_active = 1"}
	args := []any{}

	if q.City != "" {
		where = append(where, "LOWER(l.city) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.City)+"%")
	}
	if q.State != "" {
		where = append(where, "LOWER(l.state) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.State)+"%")
	}
	if q.Country != "" {
		where = append(where, "LOWER(l.country) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Country)+"%")
	}
	if q.Type != "" {
		where = append(where, "l.type = ?")
		args = append(args, q.Type)
	}
	if q.Guests > 0 {
		where = append(where, "l.cap_guests >= ?")
		args = append(args, q.Guests)
	}
	if q.MinPriceCents >= 0 {
		where = append(where, "l.price_cents >= ?")
		args = append(args, q.MinPriceCents)
	}
	if q.MaxPriceCents >= 0 {
		where = append(where, "l.price_cents <= ?")
		args = append(args, q.MaxPriceCents)
	}
	if len(q.Amenities) > 0 {
		ph := strings.TrimSuffix(strings.Repeat("?,", len(q.Amenities)), ",")
		where = append(where, `l.id IN (
			SELECT listing_id FROM listing_amenities
			WHERE amenity IN (`+ph+`)
			GROUP BY listing_id
			HAVING COUNT(DISTINCT amenity) = ?)`)
		for _, a := range q.Amenities {
			args = append(args, a)
		}
		args = append(args, len(q.Amenities))
	}
	if q.CheckIn != nil && q.CheckOut != nil {
		// half-open overlap: blackout.start < checkOut && blackout.end > checkIn
		where = append(where, `NOT EXISTS (
			SELECT 1 FROM listing_blackouts b
			WHERE b.listing_id = l.id AND b.start_date < ? AND b.end_date > ?)`)
		args = append(args, q.CheckOut.Format("2006-01-02"), q.CheckIn.Format("2006-01-02"))
	}

	cond := strings.Join(where, " AND ")

	var total int64
	countSQL := `SELECT COUNT(*) FROM listings l WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	if limit < 1 {
		limit = 12
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	dataSQL := `SELECT ` + prefixCols("l.", listingCols) + `
		FROM listings l
		WHERE ` + cond + `
		ORDER BY l.created_at DESC
		LIMIT ? OFFSET ?`
	dataArgs := append(append([]any{}, args...), limit, offset)
	rows, err := r.db.QueryContext(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []*model.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, l := range out {
		if err := r.loadChildren(ctx, l); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

// prefixCols qualifies each column of a comma-separated list with the
// given table alias.
func prefixCols(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
