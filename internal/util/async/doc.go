// Package async provides the fan-out/fan-in helpers workflows use to run
// independent remote lookups concurrently.
//
// Join runs a bounded number of jobs at a time and completes only when every
// started job has returned. The first failure by completion order wins; the
// results of jobs that succeeded are discarded. Jobs that have not started
// when a failure is observed are skipped. Jobs already running are not
// cancelled.
package async
