// Package rules manages the named rule collections Kasa devices keep on
// the device itself: schedules (timed on/off), countdown timers, and
// away-mode (anti-theft) random toggling.
//
// All three systems expose the same command set over the device protocol
// and differ only in their target name and rule schema, so one generic
// repository serves them all. Rules are addressed by their caller-chosen
// name; the device-assigned ID is resolved internally where the firmware
// requires it (edit and delete).
//
// # Usage Example
//
//	sched := rules.NewSchedule(dev.Dispatcher())
//
//	// Turn on every weekday at 16:54 (1014 minutes after midnight).
//	_, err := sched.Add(ctx, rules.Rule{
//	    Name:    "Evening lamp",
//	    Enabled: true,
//	    Raw: map[string]any{
//	        "wday":      []int{0, 1, 1, 1, 1, 1, 0},
//	        "smin":      1014,
//	        "sact":      1,
//	        "stime_opt": 0,
//	        "repeat":    1,
//	        "etime_opt": -1,
//	        "eact":      -1,
//	    },
//	})
//
//	// Remove it again by name.
//	err = sched.Delete(ctx, "Evening lamp")
//
// # Rule Schemas
//
// The schema-specific fields travel in Rule.Raw untyped: schedule and
// anti-theft rules carry weekday masks, start/end minutes and optional
// coordinates, countdown rules carry a delay and an action, and firmware
// revisions add fields of their own. The repository only interprets the
// three fields common to every system (id, name, enable).
//
// # Deleting Everything
//
// ClearAll removes every rule in a collection with a single device call.
// It is always an explicit operation; nothing in this package deletes
// rules as a side effect of cleanup or shutdown.
package rules
