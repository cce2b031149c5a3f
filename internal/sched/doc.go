// Package sched provides the engine's recurring triggers.
//
// It wraps robfig/cron with a small worker pool, panic recovery and
// per-job timeouts. The cron instance runs in the deployment's fixed
// business timezone so the daily rollover fires at local midnight.
package sched
