package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	ordermodel "stablepay-api/internal/model/order"
)

type txRepo struct{ s *Store }

func cloneTx(t ordermodel.Transaction) ordermodel.Transaction {
	t.OrderID = copyID(t.OrderID)
	t.BlockTime = copyTime(t.BlockTime)
	return t
}

func (r *txRepo) GetByHash(_ context.Context, txHash string) (*ordermodel.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.state()
	id, ok := st.txByHash[hashKey(txHash)]
	if !ok {
		return nil, nil
	}
	t := cloneTx(st.txs[id])
	return &t, nil
}

func (r *txRepo) Insert(_ context.Context, t *ordermodel.Transaction) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.state()
	if _, ok := st.txByHash[hashKey(t.TxHash)]; ok {
		return false, nil
	}
	if _, ok := st.txs[t.ID]; ok {
		return false, fmt.Errorf("transaction id %d already exists", t.ID)
	}
	put(r.s, txsOf, "tx", t.ID, cloneTx(*t))
	put(r.s, txHashesOf, "txhash", hashKey(t.TxHash), t.ID)
	return true, nil
}

func (r *txRepo) Update(_ context.Context, t *ordermodel.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.state()
	cur, ok := st.txs[t.ID]
	if !ok {
		return fmt.Errorf("transaction %d not found", t.ID)
	}
	if !strings.EqualFold(cur.TxHash, t.TxHash) {
		return fmt.Errorf("transaction %d: tx_hash is immutable", t.ID)
	}
	put(r.s, txsOf, "tx", t.ID, cloneTx(*t))
	return nil
}

func (r *txRepo) ListAwaitingConfirmation(_ context.Context, chain string, limit int) ([]ordermodel.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st := r.s.state()
	var out []ordermodel.Transaction
	for _, t := range st.txs {
		if t.Chain != chain || t.Status == ordermodel.TxFailed || !t.Matched() {
			continue
		}
		o, ok := st.orders[*t.OrderID]
		if !ok || o.Status != ordermodel.StatusPending {
			continue
		}
		out = append(out, cloneTx(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockNumber < out[j].BlockNumber })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// hashKey 哈希索引不区分大小写，与 MySQL 排序规则一致
func hashKey(h string) string { return strings.ToLower(h) }
