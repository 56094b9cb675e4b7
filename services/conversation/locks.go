package conversation

import "sync"

// customerLocks serializes turns per customer: conversation state is
// read-modify-write, so at most one in-flight turn may hold a customer's
// lock while turns for other customers proceed concurrently.
type customerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newCustomerLocks() *customerLocks {
	return &customerLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for a customer id, creating it on first use, and
// returns the unlock function.
func (c *customerLocks) acquire(customerID string) func() {
	c.mu.Lock()
	lock, ok := c.locks[customerID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[customerID] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
