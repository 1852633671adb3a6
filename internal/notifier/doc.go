// Package notifier fans an opening out to the enabled notification channels.
//
// Each channel (push, SMS, audio) renders the event on its own. The
// dispatcher runs every enabled channel concurrently with a bounded timeout,
// recovers panics, and logs failures; a failing channel never blocks or
// fails another, and no error reaches the caller.
//
// # History
//
// For operator visibility the dispatcher keeps a small in-memory history of
// recently dispatched openings, served by the status endpoint.
package notifier
