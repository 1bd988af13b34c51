// Package vsphere manages authenticated vCenter sessions and inventory
// lookups for a single run.
//
// A Pool owns at most one session per endpoint and is released as a whole
// when the run ends. Sessions are created by a Connector backed by govmomi.
package vsphere
