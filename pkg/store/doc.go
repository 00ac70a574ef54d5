// Package store is the durable statistics layer over database/sql. It
// owns the schema and every write path: append-only raw events with
// duplicate skipping, upsert-increment member and daily counters,
// monthly rollup rows, write-once metrics snapshots, and retention
// deletes guarded by rollup completion markers.
package store
