// Package proposalservice implements formal member proposals inside the
// org-governance context.
//
// The module owns the proposal lifecycle (drafting, sponsorship, debate,
// yes/no voting, implementation tracking), amendments and threaded comments,
// and governance event production through outbox-backed workers. Business
// rules live in the application and domain layers; infrastructure stays
// behind ports and adapters.
package proposalservice
