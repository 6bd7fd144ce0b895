package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/chainsafe/mvm-bridge/pkg/config"
	"github.com/chainsafe/mvm-bridge/pkg/ethereum/contracts"
)

// Client represents an MVM client bound to the registry and bridge contracts
type Client struct {
	config  *config.MVMConfig
	backend Backend
	signer  Signer
	logger  *zap.Logger

	registryAddress common.Address
	registry        *contracts.Registry
	bridgeAddress   common.Address
	bridge          *contracts.Bridge
}

// NewClient dials the MVM RPC endpoint. signer may be nil for a read-only client.
func NewClient(cfg *config.MVMConfig, signer Signer, logger *zap.Logger) (*Client, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MVM RPC: %w", err)
	}

	c, err := NewClientWithBackend(cfg, client, signer, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	fields := []zap.Field{
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("rpc_url", cfg.RPCURL),
		zap.String("registry_contract", c.registryAddress.Hex()),
		zap.String("bridge_contract", c.bridgeAddress.Hex()),
	}
	if signer != nil {
		fields = append(fields, zap.String("wallet_address", signer.Address().Hex()))
	}
	c.logger.Info("Connected to MVM", fields...)

	return c, nil
}

// NewClientWithBackend builds a client on top of an existing backend
func NewClientWithBackend(cfg *config.MVMConfig, backend Backend, signer Signer, logger *zap.Logger) (*Client, error) {
	registryAddress := common.HexToAddress(cfg.RegistryContract)
	registry, err := contracts.NewRegistry(registryAddress, backend)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry contract: %w", err)
	}

	bridgeAddress := common.HexToAddress(cfg.BridgeContract)
	bridge, err := contracts.NewBridge(bridgeAddress, backend)
	if err != nil {
		return nil, fmt.Errorf("failed to load bridge contract: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config:          cfg,
		backend:         backend,
		signer:          signer,
		logger:          logger,
		registryAddress: registryAddress,
		registry:        registry,
		bridgeAddress:   bridgeAddress,
		bridge:          bridge,
	}, nil
}

// Close closes the underlying RPC connection
func (c *Client) Close() {
	if c.backend != nil {
		c.backend.Close()
	}
}

// ChainID returns the configured chain id
func (c *Client) ChainID() *big.Int {
	return big.NewInt(c.config.ChainID)
}

// NativeBalance returns the native balance of account in wei
func (c *Client) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get native balance: %w", err)
	}
	return balance, nil
}

// TokenBalance returns the balance of account on an asset contract
func (c *Client) TokenBalance(ctx context.Context, asset, account common.Address) (*big.Int, error) {
	token, err := contracts.NewAsset(asset, c.backend)
	if err != nil {
		return nil, fmt.Errorf("failed to load asset contract: %w", err)
	}

	balance, err := token.BalanceOf(&bind.CallOpts{Context: ctx}, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}
	return balance, nil
}

// ContractOf reads the registry mapping for a custodial asset or user id.
// The zero address is returned for unknown ids.
func (c *Client) ContractOf(ctx context.Context, id string) (common.Address, error) {
	key, err := RegistryKey(id)
	if err != nil {
		return common.Address{}, err
	}

	addr, err := c.registry.Contracts(&bind.CallOpts{Context: ctx}, key)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to read registry: %w", err)
	}
	return addr, nil
}

// GetTransactor returns a transaction signer for the connected wallet
func (c *Client) GetTransactor(ctx context.Context) (*bind.TransactOpts, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("no wallet connected")
	}

	auth, err := c.signer.NewTransactor(ctx, c.ChainID())
	if err != nil {
		return nil, err
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.signer.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	auth.Nonce = new(big.Int).SetUint64(nonce)
	auth.GasLimit = c.config.GasLimit

	if c.config.MaxGasPrice != "" {
		maxGasPrice, ok := new(big.Int).SetString(c.config.MaxGasPrice, 10)
		if !ok {
			return nil, fmt.Errorf("invalid max gas price %q", c.config.MaxGasPrice)
		}

		gasPrice, err := c.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to suggest gas price: %w", err)
		}

		if gasPrice.Cmp(maxGasPrice) > 0 {
			c.logger.Warn("Suggested gas price exceeds maximum",
				zap.String("suggested", gasPrice.String()),
				zap.String("max", maxGasPrice.String()))
			auth.GasPrice = maxGasPrice
		} else {
			auth.GasPrice = gasPrice
		}
	}

	return auth, nil
}

// Release moves native value through the bridge contract to receiver
func (c *Client) Release(ctx context.Context, receiver common.Address, extra []byte, value *big.Int) (common.Hash, error) {
	auth, err := c.GetTransactor(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	auth.Value = value

	tx, err := c.bridge.Release(auth, receiver, extra)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to submit release transaction: %w", err)
	}

	c.logger.Info("Release transaction submitted",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("receiver", receiver.Hex()),
		zap.String("value", value.String()))

	return tx.Hash(), nil
}

// TransferWithExtra moves amount of an asset contract to receiver
func (c *Client) TransferWithExtra(
	ctx context.Context,
	asset common.Address,
	receiver common.Address,
	amount *big.Int,
	extra []byte,
) (common.Hash, error) {
	token, err := contracts.NewAsset(asset, c.backend)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to load asset contract: %w", err)
	}

	auth, err := c.GetTransactor(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	tx, err := token.TransferWithExtra(auth, receiver, amount, extra)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to submit transfer transaction: %w", err)
	}

	c.logger.Info("Asset transfer transaction submitted",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("asset", asset.Hex()),
		zap.String("receiver", receiver.Hex()),
		zap.String("amount", amount.String()))

	return tx.Hash(), nil
}
