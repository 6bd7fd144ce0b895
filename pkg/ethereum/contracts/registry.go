package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// RegistryMetaData contains the meta data of the MVM registry contract used by the bridge.
var RegistryMetaData = &bind.MetaData{
	ABI: "[{\"type\":\"function\",\"name\":\"contracts\",\"inputs\":[{\"name\":\"\",\"type\":\"uint256\",\"internalType\":\"uint256\"}],\"outputs\":[{\"name\":\"\",\"type\":\"address\",\"internalType\":\"address\"}],\"stateMutability\":\"view\"}]",
}

// Registry is a Go binding around the MVM registry contract.
type Registry struct {
	RegistryCaller // Read-only binding to the contract
}

// RegistryCaller is a read-only Go binding around the MVM registry contract.
type RegistryCaller struct {
	contract *bind.BoundContract // Generic contract wrapper for the low level calls
}

// NewRegistry creates a new instance of Registry, bound to a specific deployed contract.
func NewRegistry(address common.Address, caller bind.ContractCaller) (*Registry, error) {
	parsed, err := RegistryMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	contract := bind.NewBoundContract(address, *parsed, caller, nil, nil)
	return &Registry{RegistryCaller: RegistryCaller{contract: contract}}, nil
}

// Contracts is a free data retrieval call binding the contract method.
//
// Solidity: function contracts(uint256) view returns(address)
func (_Registry *RegistryCaller) Contracts(opts *bind.CallOpts, key *big.Int) (common.Address, error) {
	var out []interface{}
	err := _Registry.contract.Call(opts, &out, "contracts", key)

	if err != nil {
		return *new(common.Address), err
	}

	out0 := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)

	return out0, err

}
