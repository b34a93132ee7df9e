// Package store defines interfaces for persistence dependencies (company
// profiles and crawl logs). Implementations live in other packages; this
// package must not import database drivers or concrete clients.
package store
