// Package reviewservice coordinates the credit-gated review workflow: a
// requester pays a fixed fee to join the queue, a reviewer assigns the
// request into a bounded session, and resolution feeds the reviewer's
// session stats that drive the wait estimator. Every transition runs as one
// atomic store operation covering request state, session state, ledger
// movements, and queue recomputation.
package reviewservice
