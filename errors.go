package extsorter

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel error kinds from the error-handling design: allocation failure
// that survived a spill attempt, and any I/O failure on a spill write,
// read, or (outside of cleanup) file removal.
var (
	ErrMemoryUnavailable = errors.New("extsorter: memory unavailable")
	ErrIOFailure         = errors.New("extsorter: io failure")
)

func wrapMemory(cause error) error {
	return errors.Wrap(ErrMemoryUnavailable, cause.Error())
}

func wrapIO(cause error) error {
	return errors.Wrap(ErrIOFailure, cause.Error())
}

// assertNoContractViolation panics with a ContractViolation-labeled
// message. Per the error-handling design, contract violations (inserting
// after the iterator was consumed, consuming both output iterators,
// inserting a record larger than a page) are checked by assertion; their
// behavior beyond that assertion is undefined.
func assertNoContractViolation(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("extsorter: contract violation: "+format, args...))
	}
}
