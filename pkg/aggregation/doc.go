// Package aggregation computes derived statistics from the raw event
// log: windowed metrics snapshots, true peak hours, monthly rollups
// with top-channel rankings, and retention cleanup.
package aggregation
