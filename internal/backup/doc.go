// Package backup implements the image retention workflow.
//
// A Runner performs three sequential phases against the EC2 API:
//
//   - Discovery: list instances carrying the selector tag key
//   - Creation: image each instance, wait for the image to exist, and tag it
//     with its expiry date (LEB-DeleteOn) and provenance
//   - Sweep: list images carrying the selector tag key whose expiry date has
//     passed, deregister each one, then delete the snapshots that reference it
//
// The package keeps no state between runs. Everything it needs to know about
// earlier runs is stored in tags on the images themselves.
//
// Error Handling:
//
// Failures are grouped into three operation classes (discovery, create,
// delete), each governed by a config.FailurePolicy. An abort policy ends the
// run with a *FatalError. Skip logs one error line and moves on to the next
// item. Collect behaves like skip and also returns the failures, aggregated,
// when the run completes. An image whose deregistration failed never has its
// snapshots deleted.
//
// Context Support:
//
// All operations accept a context.Context. Cancelling it stops the run
// between items and interrupts the image waiter.
package backup
