package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

var transferEventSig = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// EVMClient 基于 ethclient 的 ERC20 转账读取
type EVMClient struct {
	client   *ethclient.Client
	token    common.Address
	decimals int32
}

var _ Client = (*EVMClient)(nil)

func DialEVM(ctx context.Context, c Chain) (*EVMClient, error) {
	if c.RpcUrl == "" {
		return nil, fmt.Errorf("chain %s: empty rpc url", c.Name)
	}
	if !common.IsHexAddress(c.TokenContract) {
		return nil, fmt.Errorf("chain %s: invalid token contract %q", c.Name, c.TokenContract)
	}
	cli, err := ethclient.DialContext(ctx, c.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("chain %s: dial: %w", c.Name, err)
	}
	return &EVMClient{client: cli, token: common.HexToAddress(c.TokenContract), decimals: c.Decimals}, nil
}

func (e *EVMClient) Close() { e.client.Close() }

func (e *EVMClient) CurrentBlockHeight(ctx context.Context) (uint64, error) {
	return e.client.BlockNumber(ctx)
}

func (e *EVMClient) TransferEventsInRange(ctx context.Context, fromBlock, toBlock uint64, watched []string) ([]TransferEvent, error) {
	if len(watched) == 0 || fromBlock > toBlock {
		return nil, nil
	}
	toTopics := make([]common.Hash, 0, len(watched))
	for _, a := range watched {
		if !common.IsHexAddress(a) {
			continue
		}
		toTopics = append(toTopics, common.BytesToHash(common.HexToAddress(a).Bytes()))
	}
	if len(toTopics) == 0 {
		return nil, nil
	}

	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{e.token},
		// topics[0]=Transfer, topics[1]=from（任意）, topics[2]=to
		Topics: [][]common.Hash{{transferEventSig}, nil, toTopics},
	}
	logs, err := e.client.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("filter logs %d-%d: %w", fromBlock, toBlock, err)
	}

	out := make([]TransferEvent, 0, len(logs))
	for _, l := range logs {
		if l.Removed || len(l.Topics) < 3 || l.Topics[0] != transferEventSig {
			continue
		}
		from := common.BytesToAddress(l.Topics[1].Bytes()[12:])
		to := common.BytesToAddress(l.Topics[2].Bytes()[12:])
		value := new(big.Int).SetBytes(l.Data)
		out = append(out, TransferEvent{
			TxHash:      l.TxHash.Hex(),
			From:        from.Hex(),
			To:          to.Hex(),
			Amount:      decimal.NewFromBigInt(value, -e.decimals),
			BlockNumber: l.BlockNumber,
		})
	}
	return out, nil
}

func (e *EVMClient) GetReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	r, err := e.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var block uint64
	if r.BlockNumber != nil {
		block = r.BlockNumber.Uint64()
	}
	return &Receipt{Success: r.Status == types.ReceiptStatusSuccessful, BlockNumber: block}, nil
}

func (e *EVMClient) GetBlock(ctx context.Context, number uint64) (*Block, error) {
	h, err := e.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return nil, err
	}
	return &Block{Number: number, Timestamp: time.Unix(int64(h.Time), 0).UTC()}, nil
}
