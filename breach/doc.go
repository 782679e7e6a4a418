// Package breach watches authentication traffic for attack patterns:
// brute-force runs against one IP, abnormal request volume, and refresh
// tokens replayed from more than one address. Counters are sliding windows
// stored in the shared cache as timestamped event lists, pruned to the
// window on every write.
//
// The windows are read-modify-write and deliberately best-effort: two
// racing writers can drop an event. Detection here is a heuristic tripwire
// rather than an exact ledger, and an occasional lost event moves a
// threshold crossing by one request at worst.
//
// Every check fails open. If the cache is unreachable this package reports
// "not blocked" and raises no alerts, because taking authentication down
// with the cache is a worse failure than briefly losing the tripwire.
package breach
