package memory

import (
	"context"
	"time"

	ordermodel "stablepay-api/internal/model/order"
)

type cursorRepo struct{ s *Store }

func (r *cursorRepo) Get(_ context.Context, chain string) (*ordermodel.ChainScanCursor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.state().cursors[chain]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *cursorRepo) Init(_ context.Context, chain string, block uint64) (*ordermodel.ChainScanCursor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.state()
	if c, ok := st.cursors[chain]; ok {
		return &c, nil
	}
	c := ordermodel.ChainScanCursor{Chain: chain, LastScannedBlock: block, UpdatedAt: time.Now()}
	put(r.s, cursorsOf, "cursor", chain, c)
	return &c, nil
}

func (r *cursorRepo) Advance(_ context.Context, chain string, block uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.state()
	c, ok := st.cursors[chain]
	if !ok {
		put(r.s, cursorsOf, "cursor", chain, ordermodel.ChainScanCursor{Chain: chain, LastScannedBlock: block, UpdatedAt: time.Now()})
		return nil
	}
	if block > c.LastScannedBlock {
		c.LastScannedBlock = block
		c.UpdatedAt = time.Now()
		put(r.s, cursorsOf, "cursor", chain, c)
	}
	return nil
}
