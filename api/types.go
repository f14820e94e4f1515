// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

import "time"

// WorkerState enumerates the phases of a pool worker.
type WorkerState int32

const (
	WorkerWaitingForWork WorkerState = iota
	WorkerClaiming
	WorkerWaitingForCompletion
	WorkerTerminated
)

func (s WorkerState) String() string {
	switch s {
	case WorkerWaitingForWork:
		return "waiting_for_work"
	case WorkerClaiming:
		return "claiming"
	case WorkerWaitingForCompletion:
		return "waiting_for_completion"
	case WorkerTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Schedule selects how a dispatch splits [0, count) between workers.
type Schedule int

const (
	// ScheduleDynamic hands out batches from a shared atomic cursor.
	ScheduleDynamic Schedule = iota
	// ScheduleStatic gives each worker an even contiguous share up front.
	ScheduleStatic
)

func (s Schedule) String() string {
	switch s {
	case ScheduleDynamic:
		return "dynamic"
	case ScheduleStatic:
		return "static"
	default:
		return "unknown"
	}
}

// DispatchRecord summarizes one completed dispatch.
type DispatchRecord struct {
	Seq      uint64
	Count    int
	Stride   int
	Workers  int
	Claims   int64
	Schedule Schedule
	Panicked bool
	Started  time.Time
	Duration time.Duration
}
