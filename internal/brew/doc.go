// Package brew holds the schedule model shared by every layer of brewlog.
//
// A Recipe describes a multi-stage fermentation whose stages are placed
// relative to the start of a batch. A Batch anchors that relative schedule
// to a concrete start time, and AlarmItems are the absolute reminders
// derived from it.
//
// The package has no behavior beyond day-offset arithmetic and the state
// predicates alarms are filtered by. Persistence lives in internal/store,
// alarm derivation in internal/planner.
package brew
