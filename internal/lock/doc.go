// Package lock provides inter-process exclusive file locks.
//
// Locks are advisory flock(2) locks on unix and LockFileEx locks on
// windows. Acquisition polls with backoff until the lock is free or the
// context ends, so concurrent installers of the same key serialize while
// installers of different keys never contend.
package lock
