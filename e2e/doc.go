// Package e2e runs test suites end to end against fakes of everything they
// talk to: an in-process SMTP relay, an in-memory browser and a mailbox
// site that lists what the relay received.
package e2e
