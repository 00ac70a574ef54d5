// Package scheduler arms the cron triggers that drive the periodic
// pipeline: window aggregation fan-out, retention cleanup, voice
// session sweeping and the monthly rollup.
package scheduler
