// Package orm holds reusable GORM scopes so repositories share one
// definition of pagination and ordering instead of re-chaining
// Limit/Offset/Order at every call site.
//
//	db.Scopes(orm.ByID(), orm.Page(limit, offset)).Find(&users)
package orm

import "gorm.io/gorm"

// Page applies limit/offset pagination. A non-positive limit means no
// limit; a non-positive offset starts at the beginning.
func Page(limit, offset int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if offset > 0 {
			db = db.Offset(offset)
		}
		if limit > 0 {
			db = db.Limit(limit)
		}
		return db
	}
}

// ByID orders by primary key ascending, the stable order listings use.
func ByID() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}
}

// Recent orders by creation time, newest first.
func Recent() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at DESC")
	}
}
