package availability

import "fmt"

// Reasons reported in decisions.
const (
	ReasonExhausted       = "namespace exhausted: all indices (01-99) are in use"
	ReasonExistsAD        = "VM exists in AD"
	ReasonExistsVCenter   = "VM exists in vCenter"
	ReasonPreflightFailed = "Preflight check failed - service connectivity issues"
)

// MinIndex and MaxIndex bound the allocation suffix.
const (
	MinIndex = 1
	MaxIndex = 99
)

// Decision is the single answer of a run.
type Decision struct {
	Available bool    `json:"available"`
	VMName    *string `json:"vm_name"`
	Index     *int    `json:"index"`
	Reason    *string `json:"reason"`
}

// Candidate returns the name at index i of prefix.
func Candidate(prefix string, i int) string {
	return fmt.Sprintf("%s%02d", prefix, i)
}

// Allocated is the decision for the first free name of a search.
func Allocated(name string, index int) Decision {
	return Decision{Available: true, VMName: &name, Index: &index}
}

// Exhausted is the decision when every index is in use.
func Exhausted() Decision {
	return Unavailable(ReasonExhausted)
}

// Free is the decision for a single name that is not in use.
func Free(name string) Decision {
	return Decision{Available: true, VMName: &name}
}

// Taken is the decision for a single name that is in use.
func Taken(name, reason string) Decision {
	return Decision{VMName: &name, Reason: &reason}
}

// Unavailable is a decision carrying only a reason.
func Unavailable(reason string) Decision {
	return Decision{Reason: &reason}
}
