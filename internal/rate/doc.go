// Package rate implements the Redis-backed login throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR plus PEXPIRE on the first hit, in one script.
// Key layout under prefix P:
//   - P:u:<lower(username)>  failures per identifier
//   - P:ip:<ip>              failures per client IP
package rate
