/*
Package session serializes turn processing per conversation session.
Sessions are independent and run fully in parallel; within one session,
turns are strictly sequential because resumption correctness depends on
reading the exact post-turn state.
*/
package session
