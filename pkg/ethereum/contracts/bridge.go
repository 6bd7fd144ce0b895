package contracts

import (
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BridgeMetaData contains the meta data of the MVM bridge contract.
var BridgeMetaData = &bind.MetaData{
	ABI: "[{\"type\":\"function\",\"name\":\"release\",\"inputs\":[{\"name\":\"receiver\",\"type\":\"address\",\"internalType\":\"address\"},{\"name\":\"input\",\"type\":\"bytes\",\"internalType\":\"bytes\"}],\"outputs\":[],\"stateMutability\":\"payable\"}]",
}

// Bridge is a Go binding around the MVM bridge contract.
type Bridge struct {
	BridgeTransactor // Write-only binding to the contract
}

// BridgeTransactor is a write-only Go binding around the MVM bridge contract.
type BridgeTransactor struct {
	contract *bind.BoundContract // Generic contract wrapper for the low level calls
}

// NewBridge creates a new instance of Bridge, bound to a specific deployed contract.
func NewBridge(address common.Address, transactor bind.ContractTransactor) (*Bridge, error) {
	parsed, err := BridgeMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	contract := bind.NewBoundContract(address, *parsed, nil, transactor, nil)
	return &Bridge{BridgeTransactor: BridgeTransactor{contract: contract}}, nil
}

// Release is a paid mutator transaction binding the contract method.
// The native value to move is carried in opts.Value.
//
// Solidity: function release(address receiver, bytes input) payable returns()
func (_Bridge *BridgeTransactor) Release(opts *bind.TransactOpts, receiver common.Address, input []byte) (*types.Transaction, error) {
	return _Bridge.contract.Transact(opts, "release", receiver, input)
}
