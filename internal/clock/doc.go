// Package clock provides the ledger's authoritative time source.
//
// The ledger reads the clock once per operation, inside its critical
// section, so the eligibility check of a final payout is evaluated at
// commit time. System uses the local clock, NTP corrects it with the
// offset reported by an NTP server, and Manual is a settable clock for
// deterministic tests.
package clock
