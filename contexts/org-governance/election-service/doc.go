// Package electionservice implements leadership elections inside the
// org-governance context.
//
// The module owns the election lifecycle (scheduling, candidate filing,
// voting, counting, runoffs), recall petitions, all four ballot tallies, and
// governance event production through outbox-backed workers. Business rules
// live in the application and domain layers; infrastructure stays behind
// ports and adapters.
package electionservice
