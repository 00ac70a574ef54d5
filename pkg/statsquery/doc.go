// Package statsquery is the read side: dashboards, member profiles,
// member lists, leaderboards and timelines composed from the
// materialized cumulative, daily and monthly tables.
package statsquery
