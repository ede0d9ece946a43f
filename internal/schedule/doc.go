// Package schedule triggers the firmware check on a cron or interval schedule
// for the long-running watch mode.
//
// Schedules are parsed by Parse (cron expressions, "@every" descriptors, Go
// durations or HH:MM intervals). A Runner owns a robfig/cron instance with a
// single job; overlapping runs are skipped and job panics are recovered.
// Reschedule swaps the schedule in place when the configuration changes.
package schedule
