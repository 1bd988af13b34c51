// Package availability decides whether VM names are free.
//
// A name is in use when Active Directory holds a computer object with that
// common name, or when any configured vCenter holds an inventory object at
// <partition>/<name>. The directory is asked first, one controller at a time;
// the vCenter fleet is then asked at every (endpoint, partition) target
// concurrently. A name is reported available only after both checks answered.
//
// Engine ties discovery, preflight checks and the search together for a
// single run, and owns the vCenter sessions opened during it.
package availability
