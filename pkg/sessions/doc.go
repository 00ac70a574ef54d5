// Package sessions tracks open voice sessions in Redis. State here is
// ephemeral by design: keys expire after the session TTL, and the
// periodic sweep drops sessions that were never closed so crashed
// clients cannot accrue voice time forever.
package sessions
