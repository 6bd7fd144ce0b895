package ethereum

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Backend is the subset of the node client used by Client.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	Close()
}

// Signer produces transaction options for the connected wallet
type Signer interface {
	Address() common.Address
	NewTransactor(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)
}
