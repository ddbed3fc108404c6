package memory

import (
	"fmt"

	mainmodel "stablepay-api/internal/model/main"
	ordermodel "stablepay-api/internal/model/order"
)

// journal 事务内写过的键及其原值，按写入顺序记录
type journal struct {
	undo []func(st *state)
}

func (j *journal) rollback(st *state) {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i](st)
	}
	j.undo = nil
}

func ordersOf(st *state) map[uint64]ordermodel.Order            { return st.orders }
func txsOf(st *state) map[uint64]ordermodel.Transaction         { return st.txs }
func txHashesOf(st *state) map[string]uint64                    { return st.txByHash }
func merchantsOf(st *state) map[uint64]mainmodel.Merchant       { return st.merchants }
func walletsOf(st *state) map[uint64]mainmodel.MerchantWallet   { return st.wallets }
func refundsOf(st *state) map[uint64]ordermodel.Refund          { return st.refunds }
func webhooksOf(st *state) map[uint64]mainmodel.WebhookLog      { return st.webhooks }
func cursorsOf(st *state) map[string]ordermodel.ChainScanCursor { return st.cursors }

// put 写入单个键，调用方须持有 s.mu
func put[K comparable, V any](s *Store, table func(*state) map[K]V, name string, k K, v V) {
	st := s.state()
	key := name + ":" + fmt.Sprint(k)
	st.seq++
	ver := st.seq
	if j := s.journal; j != nil {
		prev, had := table(st)[k]
		prevVer, hadVer := st.vers[key]
		j.undo = append(j.undo, func(st *state) {
			// 事务期间该键已被事务外写入覆盖，保留后写的值
			if st.vers[key] != ver {
				return
			}
			if had {
				table(st)[k] = prev
			} else {
				delete(table(st), k)
			}
			if hadVer {
				st.vers[key] = prevVer
			} else {
				delete(st.vers, key)
			}
		})
	}
	st.vers[key] = ver
	table(st)[k] = v
}
