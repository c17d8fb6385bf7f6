// Package accountsservice is the identity source: accounts, display names,
// and the closed role/capability set that gates privileged review operations.
package accountsservice
