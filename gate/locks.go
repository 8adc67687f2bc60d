package gate

import "sync"

// stripeCount is a power of two so the modulo stays cheap.
const stripeCount = 64

// requesterLocks serializes the revoke-old/create-new invite sequence per
// requester so two concurrent successful verifications for the same identity
// cannot produce two live grants. Different requesters may collide on a
// stripe; that only costs latency, never correctness.
type requesterLocks struct {
	stripes [stripeCount]sync.Mutex
}

// lock acquires the stripe for id and returns its unlock func.
func (r *requesterLocks) lock(id int64) func() {
	m := &r.stripes[uint64(id)%stripeCount]
	m.Lock()
	return m.Unlock
}
