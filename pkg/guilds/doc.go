// Package guilds is the registry of guilds covered by scheduled
// aggregation.
package guilds
