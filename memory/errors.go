package memory

import "github.com/pkg/errors"

var errMemoryBudgetExceeded = errors.New("memory: budget exceeded and no registered spiller could free enough")

func errPageNotLive(pageID uint32) error {
	return errors.Errorf("memory: page %d is not live", pageID)
}
