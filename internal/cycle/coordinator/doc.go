// Package coordinator schedules training cycles.
//
// A cycle runs once at startup when configured, then every day at a fixed
// local wall-clock time. Cycles never overlap: the next run is computed after
// the previous cycle returns, so a cycle that runs past the scheduled time
// skips that slot instead of queueing it.
//
// The coordinator sits on top of cycle.Manager and handles:
//
//   - Daily scheduling with time.Timer
//   - Initial cycle on startup
//   - Keeping the last cycle report for the status API
//   - Graceful shutdown
package coordinator
