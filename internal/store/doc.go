// Package store persists raw feed rows and derived analysis tables in a
// local SQLite database.
//
// Derived rows are upserted under the same key the engines produced them
// with, so re-running a day overwrites instead of duplicating. Undefined
// indicator values (NaN) are stored as NULL. The schema is managed through
// embedded migrations applied on open.
package store
