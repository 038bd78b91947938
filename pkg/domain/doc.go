/*
Package domain contains the core data model of the dialogue engine: the
flow stack, slot storage, pending tasks, structured commands, and the
mergeable delta type every mutation is expressed as.

Nothing in this package performs side effects. State transitions are
described as Delta values that callers merge and apply, which is what
makes suspension, resumption, and replay safe.
*/
package domain
