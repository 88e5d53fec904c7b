package stoken

import "gorm.io/gorm"

const (
	// DefaultPageSize is used when a client omits or zeroes the limit.
	DefaultPageSize = 50
	// MaxPageSize is the hard cap on a single sync page.
	MaxPageSize = 1000
)

// Stamped is implemented by records that carry a stoken stamped at their
// most recent mutation.
type Stamped interface {
	StampedStoken() *Stoken
}

// ClampLimit normalizes a client-supplied page limit.
func ClampLimit(limit, configuredMax int) int {
	max := configuredMax
	if max <= 0 || max > MaxPageSize {
		max = MaxPageSize
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > max {
		limit = max
	}
	return limit
}

// Page runs one step of the sync cursor protocol over the record set
// produced by scope.
//
// The scope must constrain the query to the caller's base set and preload
// the record's Stoken association. Rows are ordered by stoken sequence, the
// same order the cursor filter runs over. Stokens are unique, so this is a
// stable total order, and the returned cursor is always the page maximum:
// a record re-stamped after the cursor was handed out sorts after it and is
// picked up by the next page, and no record can fall behind the cursor.
// An empty cursor means "from the beginning". The returned cursor is the
// stoken UID of the last record on the page; on an empty page the input
// cursor is handed back unchanged so callers never regress.
//
// Page is read-only and must not run inside a write transaction.
func Page[T Stamped](db *gorm.DB, ledger *Ledger, cursor string, limit int, scope func(*gorm.DB) *gorm.DB) (items []T, newCursor string, done bool, err error) {
	limit = ClampLimit(limit, 0)

	q := scope(db).Order("stoken_id ASC")
	if cursor != "" {
		var after *Stoken
		after, err = ledger.Resolve(db, cursor)
		if err != nil {
			return nil, "", false, err
		}
		q = q.Where("stoken_id > ?", after.ID)
	}

	// Fetch one row past the limit: its presence is the "not done" signal.
	var rows []T
	if err = q.Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, "", false, err
	}

	done = len(rows) <= limit
	if !done {
		rows = rows[:limit]
	}

	newCursor = cursor
	if len(rows) > 0 {
		if st := rows[len(rows)-1].StampedStoken(); st != nil {
			newCursor = st.UID
		}
	}
	return rows, newCursor, done, nil
}
