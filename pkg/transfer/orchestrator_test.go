package transfer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/mvm-bridge/pkg/app/errors"
	"github.com/chainsafe/mvm-bridge/pkg/bridgeapi"
	"github.com/chainsafe/mvm-bridge/pkg/identity"
	"github.com/chainsafe/mvm-bridge/pkg/keys"
	"github.com/chainsafe/mvm-bridge/pkg/mixin"
)

const (
	xinID       = "c94ac88f-4671-3976-b60a-09064f1811e8"
	ethID       = "43d61dcd-e413-450d-80b8-101d5e903357"
	recipientID = "b3b1e0a4-2d2f-4d0c-8c55-8c7a3d3a2f90"
	extraHex    = "0xdeadbeef"
)

var (
	recipientContract = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	ethToken          = common.HexToAddress("0x8F9a2e0B5E3Dde3D1c5d5e0D40a2F7B9c0C1cC7A")
	txHash            = common.HexToHash("0x5f1e6b0c9a3d2e7f8b4a1c0d9e8f7a6b5c4d3e2f1a0b9c8d7e6f5a4b3c2d1e0f")
)

type fixture struct {
	sessions  *MockSessions
	users     *MockUsers
	contracts *MockContracts
	extras    *MockExtras
	writer    *MockWriter
}

func newFixture() *fixture {
	return &fixture{
		sessions: &MockSessions{Identity: &identity.RegisteredIdentity{
			Address: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
			UserID:  "8b9b1a1e-2a7e-4d4c-9d1a-7c1c7f0b2f11",
		}},
		users: &MockUsers{},
		contracts: &MockContracts{
			Native: xinID,
			ContractOfFunc: func(context.Context, string) (common.Address, error) {
				return ethToken, nil
			},
			UserContractFunc: func(context.Context, string) (common.Address, error) {
				return recipientContract, nil
			},
		},
		extras: &MockExtras{ExtraFunc: func(context.Context, bridgeapi.ExtraRequest) (string, error) {
			return extraHex, nil
		}},
		writer: &MockWriter{
			ReleaseFunc: func(context.Context, common.Address, []byte, *big.Int) (common.Hash, error) {
				return txHash, nil
			},
			TransferWithExtraFunc: func(context.Context, common.Address, common.Address, *big.Int, []byte) (common.Hash, error) {
				return txHash, nil
			},
		},
	}
}

func (f *fixture) deps() Dependencies {
	return Dependencies{
		Sessions:  f.sessions,
		Users:     f.users,
		Contracts: f.contracts,
		Extras:    f.extras,
		Writer:    f.writer,
	}
}

func testConfig() Config {
	return Config{
		ExplorerURL:      "https://scan.mvm.dev",
		RetryInterval:    time.Millisecond,
		MaxRetryInterval: 5 * time.Millisecond,
	}
}

func (f *fixture) orchestrator(t *testing.T, assetID string) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(context.Background(), assetID, f.deps(), testConfig(), zap.NewNop())
	t.Cleanup(o.Close)
	return o
}

func waitSettled(t *testing.T, o *Orchestrator) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := o.Wait(ctx)
	require.NoError(t, err)
	return snap
}

func TestSubmit_NativePathReleasesValue(t *testing.T) {
	f := newFixture()
	var got bridgeapi.ExtraRequest
	f.extras.ExtraFunc = func(_ context.Context, req bridgeapi.ExtraRequest) (string, error) {
		got = req
		return extraHex, nil
	}
	f.writer.ReleaseFunc = func(_ context.Context, receiver common.Address, extra []byte, value *big.Int) (common.Hash, error) {
		assert.Equal(t, recipientContract, receiver)
		assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, extra)
		assert.Equal(t, "1500000000000000000", value.String())
		return txHash, nil
	}
	o := f.orchestrator(t, xinID)

	snap, err := o.Submit(context.Background(), Intent{RecipientUserID: recipientID, Memo: "rent", Amount: "1.5"})
	require.NoError(t, err)
	assert.Equal(t, Collecting, snap.State)

	snap = waitSettled(t, o)
	require.Equal(t, Succeeded, snap.State, snap.Error)
	assert.Equal(t, txHash.Hex(), snap.TxHash)
	assert.Equal(t, "https://scan.mvm.dev/tx/"+txHash.Hex(), snap.ExplorerURL)
	assert.Equal(t, "native", snap.Path)
	assert.Equal(t, recipientContract.Hex(), snap.RecipientContract)

	assert.Equal(t, bridgeapi.ExtraRequest{Extra: "rent", Receivers: []string{recipientContract.Hex()}, Threshold: 1}, got)
	assert.Equal(t, 1, f.writer.Calls("Release"))
	assert.Equal(t, 0, f.writer.Calls("TransferWithExtra"))
	assert.Equal(t, 0, f.contracts.Calls("ContractOf"), "native path needs no asset contract")
}

func TestSubmit_TokenPathUsesAssetContract(t *testing.T) {
	f := newFixture()
	f.writer.TransferWithExtraFunc = func(_ context.Context, asset, receiver common.Address, amount *big.Int, extra []byte) (common.Hash, error) {
		assert.Equal(t, ethToken, asset)
		assert.Equal(t, recipientContract, receiver)
		assert.Equal(t, "150000000", amount.String())
		assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, extra)
		return txHash, nil
	}
	o := f.orchestrator(t, ethID)

	_, err := o.Submit(context.Background(), Intent{RecipientUserID: recipientID, Amount: "1.5"})
	require.NoError(t, err)

	snap := waitSettled(t, o)
	require.Equal(t, Succeeded, snap.State, snap.Error)
	assert.Equal(t, "token", snap.Path)
	assert.Equal(t, 1, f.writer.Calls("TransferWithExtra"))
	assert.Equal(t, 0, f.writer.Calls("Release"))
	assert.Equal(t, 1, f.contracts.Calls("ContractOf"))
}

func TestSubmit_ValidationHappensBeforeNetwork(t *testing.T) {
	tests := []struct {
		name    string
		assetID string
		intent  Intent
		field   string
	}{
		{"missing recipient", xinID, Intent{Amount: "1"}, "recipient_user_id"},
		{"malformed recipient", xinID, Intent{RecipientUserID: "bob", Amount: "1"}, "recipient_user_id"},
		{"missing amount", xinID, Intent{RecipientUserID: recipientID}, "amount"},
		{"negative amount", xinID, Intent{RecipientUserID: recipientID, Amount: "-1"}, "amount"},
		{"below token minimum", ethID, Intent{RecipientUserID: recipientID, Amount: "0.000000001"}, "amount"},
		{"below native minimum", xinID, Intent{RecipientUserID: recipientID, Amount: "0.0000000000000000001"}, "amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			o := f.orchestrator(t, tt.assetID)

			snap, err := o.Submit(context.Background(), tt.intent)
			require.Error(t, err)

			var svcErr *apperrors.ServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, apperrors.CategoryDataError, svcErr.Category)
			assert.Equal(t, tt.field, svcErr.Field)
			assert.Equal(t, Idle, snap.State)

			assert.Equal(t, 0, f.users.Calls("User"))
			assert.Equal(t, 0, f.contracts.Calls("UserContract"))
			assert.Equal(t, 0, f.extras.Calls("Extra"))
		})
	}
}

func TestSubmit_RequiresRegisteredIdentity(t *testing.T) {
	f := newFixture()
	f.sessions.Err = apperrors.NotRegisteredError(nil)
	o := f.orchestrator(t, xinID)

	_, err := o.Submit(context.Background(), Intent{RecipientUserID: recipientID, Amount: "1"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryUnauthorized))
	assert.Equal(t, Idle, o.Snapshot().State)
	assert.Equal(t, 0, f.users.Calls("User"))
}

func TestResolve_RecipientMismatchResetsToIdle(t *testing.T) {
	f := newFixture()
	f.users.UserFunc = func(context.Context, string) (*mixin.User, error) {
		return &mixin.User{UserID: "7000101b-8f2c-4c1b-9d1a-000000000001"}, nil
	}
	o := f.orchestrator(t, xinID)

	_, err := o.Submit(context.Background(), Intent{RecipientUserID: recipientID, Amount: "1"})
	require.NoError(t, err)

	snap := waitSettled(t, o)
	assert.Equal(t, Idle, snap.State)
	assert.Equal(t, "recipient_user_id", snap.Field)
	assert.Equal(t, "User not found", snap.Error)
	assert.Nil(t, snap.Intent)
	assert.Equal(t, 0, f.contracts.Calls("UserContract"))
	assert.Equal(t, 0, f.writer.Calls("Release"))

	err = o.LastError()
	assert.True(t, apperrors.Is(err, apperrors.CategoryDataError), "a wrong recipient is an input error")
}

func TestResolve_UnregisteredRecipientResetsToIdle(t *testing.T) {
	f := newFixture()
	f.contracts.UserContractFunc = func(context.Context, string) (common.Address, error) {
		return common.Address{}, apperrors.NotFoundError(errors.New("empty"), "Contract not found")
	}
	o := f.orchestrator(t, xinID)

	_, err := o.Submit(context.Background(), Intent{RecipientUserID: recipientID, Amount: "1"})
	require.NoError(t, err)

	snap := waitSettled(t, o)
	assert.Equal(t, Idle, snap.State)
	assert.Equal(t, "recipient_user_id", snap.Field)
	assert.Equal(t, 0, f.extras.Calls("Extra"))
	assert.Equal(t, 0, f.writer.Calls("Release"))

	var svcErr *apperrors.ServiceError
	require.ErrorAs(t, o.LastError(), &svcErr)
	assert.Equal(t, apperrors.CategoryDataError, svcErr.Category)
	assert.Equal(t, "recipient_user_id", svcErr.Field)
}

func TestResolve_MissingAssetContractResetsToIdle(t *testing.T) {
	f := newFixture()
	f.contracts.ContractOfFunc = func(context.Context, string) (common.Address, error) {
		return common.Address{}, apperrors.NotFoundError(errors.New("empty"), "Contract not found")
	}
	o := f.orchestrator(t, ethID)

	_, err := o.Submit(context.Background(), Intent{RecipientUserID: recipientID, Amount: "1"})
	require.NoError(t, err)

	snap := waitSettled(t, o)
	assert.Equal(t, Idle, snap.State)
	assert.Equal(t, "asset_id", snap.Field)
	assert.Equal(t, 0, f.writer.Calls("TransferWithExtra"))
}

func TestResolve_RetriesTransientErrors(t *testing.T) {
	f := newFixture()
	var attempts atomic.Int32
	f.extras.ExtraFunc = func(context.Context, bridgeapi.ExtraRequest) (string, error) {
		if attempts.Add(1) < 3 {
			return "", &bridgeapi.HTTPError{StatusCode: 502, Body: "bad gateway"}
		}
		return extraHex, nil
	}
	chainFailures := atomic.Int32{}
	f.contracts.UserContractFunc = func(context.Context, string) (common.Address, error) {
		if chainFailures.Add(1) == 1 {
			return common.Address{}, apperrors.ChainReadError(errors.New("rpc timeout"), "Failed to read registry")
		}
		return recipientContract, nil
	}
	o := f.orchestrator(t, xinID)

	_, err := o.Submit(context.Background(), Intent{RecipientUserID: recipientID, Amount: "1"})
	require.NoError(t, err)

	snap := waitSettled(t, o)
	require.Equal(t, Succeeded, snap.State, snap.Error)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, int32(2), chainFailures.Load())
	assert.Equal(t, 1, f.writer.Calls("Release"))
}

func TestResolve_PermanentBridgeErrorResets(t *testing.T) {
	f := newFixture()
	f.extras.ExtraFunc = func(context.Context, bridgeapi.ExtraRequest) (string, error) {
		return "", &bridgeapi.HTTPError{StatusCode: 400, Body: "bad receivers"}
	}
	o := f.orchestrator(t, xinID)

	_, err := o.Submit(context.Background(), Intent{RecipientUserID: recipientID, Amount: "1"})
	require.NoError(t, err)

	snap := waitSettled(t, o)
	assert.Equal(t, Idle, snap.State)
	assert.NotEmpty(t, snap.Error)
	assert.Equal(t, 1, f.extras.Calls("Extra"))
	assert.Equal(t, 0, f.writer.Calls("Release"))
}

func TestDispatch_WalletRejection(t *testing.T) {
	f := newFixture()
	f.writer.ReleaseFunc = func(context.Context, common.Address, []byte, *big.Int) (common.Hash, error) {
		return common.Hash{}, fmt.Errorf("failed to submit release transaction: %w", keys.ErrUserRejected)
	}
	o := f.orchestrator(t, xinID)

	_, err := o.Submit(context.Background(), Intent{RecipientUserID: recipientID, Amount: "1"})
	require.NoError(t, err)

	snap := waitSettled(t, o)
	assert.Equal(t, Failed, snap.State)
	assert.Equal(t, "Request rejected by wallet", snap.Error)
	assert.Empty(t, snap.TxHash)
	assert.True(t, apperrors.Is(o.LastError(), apperrors.CategoryForbidden))

	snap, err = o.Dismiss()
	require.NoError(t, err)
	assert.Equal(t, Idle, snap.State)
	assert.Empty(t, snap.Error)
}

func TestDispatch_WriteFailure(t *testing.T) {
	f := newFixture()
	f.writer.TransferWithExtraFunc = func(context.Context, common.Address, common.Address, *big.Int, []byte) (common.Hash, error) {
		return common.Hash{}, errors.New("execution reverted")
	}
	o := f.orchestrator(t, ethID)

	_, err := o.Submit(context.Background(), Intent{RecipientUserID: recipientID, Amount: "2"})
	require.NoError(t, err)

	snap := waitSettled(t, o)
	assert.Equal(t, Failed, snap.State)
	assert.Equal(t, "Transaction failed", snap.Error)
	assert.Equal(t, 1, f.writer.Calls("TransferWithExtra"), "a failed write is not retried")
}

func TestTryDispatch_AtMostOnce(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(t, xinID)

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		ctx:       ctx,
		cancel:    cancel,
		intent:    Intent{RecipientUserID: recipientID, Amount: "1"},
		native:    true,
		amount:    big.NewInt(1),
		path:      NativePath{Value: big.NewInt(1)},
		recipient: &recipientContract,
		extra:     []byte{0x01},
	}
	o.mu.Lock()
	o.run = r
	o.state = Resolving
	o.mu.Unlock()

	var (
		wg         sync.WaitGroup
		dispatched atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if o.tryDispatch(r) {
				dispatched.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), dispatched.Load())
	assert.Equal(t, 1, f.writer.Calls("Release"))
	assert.Equal(t, Succeeded, o.Snapshot().State)
}

func TestTryDispatch_WaitsForEveryInput(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(t, ethID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &run{
		ctx:       ctx,
		cancel:    cancel,
		amount:    big.NewInt(1),
		recipient: &recipientContract,
		extra:     []byte{0x01},
	}
	o.mu.Lock()
	o.run = r
	o.state = Resolving
	o.mu.Unlock()

	assert.False(t, o.tryDispatch(r), "asset path is unresolved")

	o.mu.Lock()
	r.path = TokenPath{Contract: ethToken, Amount: big.NewInt(1)}
	r.extra = nil
	o.mu.Unlock()
	assert.False(t, o.tryDispatch(r), "extra is unresolved")

	assert.Equal(t, 0, f.writer.Calls("TransferWithExtra"))
	assert.Equal(t, Resolving, o.Snapshot().State)
}

func TestSubmit_BusyAndDismissDuringResolution(t *testing.T) {
	f := newFixture()
	entered := make(chan struct{}, 1)
	f.users.UserFunc = func(ctx context.Context, _ string) (*mixin.User, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	o := f.orchestrator(t, xinID)

	_, err := o.Submit(context.Background(), Intent{RecipientUserID: recipientID, Amount: "1"})
	require.NoError(t, err)
	<-entered

	_, err = o.Submit(context.Background(), Intent{RecipientUserID: recipientID, Amount: "2"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryLocked))

	snap, err := o.Dismiss()
	require.NoError(t, err)
	assert.Equal(t, Idle, snap.State)
	assert.Nil(t, snap.Intent)

	o.Close()
	assert.Equal(t, Idle, o.Snapshot().State)
	assert.Empty(t, o.Snapshot().Error, "a dismissed intent leaves no error behind")
	assert.Equal(t, 0, f.writer.Calls("Release"))
}

func TestDismiss_RejectedWhileSubmitting(t *testing.T) {
	f := newFixture()
	release := make(chan struct{})
	f.writer.ReleaseFunc = func(context.Context, common.Address, []byte, *big.Int) (common.Hash, error) {
		<-release
		return txHash, nil
	}
	o := f.orchestrator(t, xinID)

	submitting := make(chan struct{}, 1)
	unsubscribe := o.Subscribe(func(s Snapshot) {
		if s.State == Submitting {
			select {
			case submitting <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	_, err := o.Submit(context.Background(), Intent{RecipientUserID: recipientID, Amount: "1"})
	require.NoError(t, err)
	<-submitting

	_, err = o.Dismiss()
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CategoryLocked))

	close(release)
	snap := waitSettled(t, o)
	assert.Equal(t, Succeeded, snap.State)
}

func TestSubscribe_SeesEveryState(t *testing.T) {
	f := newFixture()
	o := f.orchestrator(t, ethID)

	var (
		mu     sync.Mutex
		seen   []State
		latest uint64
	)
	o.Subscribe(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if s.Version <= latest {
			return
		}
		latest = s.Version
		if len(seen) == 0 || seen[len(seen)-1] != s.State {
			seen = append(seen, s.State)
		}
	})

	_, err := o.Submit(context.Background(), Intent{RecipientUserID: recipientID, Amount: "1"})
	require.NoError(t, err)
	waitSettled(t, o)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{Collecting, Resolving, Submitting, Succeeded}, seen)
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, CanTransition(Idle, Collecting))
	assert.True(t, CanTransition(Collecting, Resolving))
	assert.True(t, CanTransition(Resolving, Submitting))
	assert.True(t, CanTransition(Submitting, Failed))
	assert.True(t, CanTransition(Failed, Idle))

	assert.False(t, CanTransition(Idle, Submitting))
	assert.False(t, CanTransition(Collecting, Submitting))
	assert.False(t, CanTransition(Submitting, Idle))
	assert.False(t, CanTransition(Succeeded, Submitting))

	var s State
	require.NoError(t, s.UnmarshalText([]byte("resolving")))
	assert.Equal(t, Resolving, s)
	require.Error(t, s.UnmarshalText([]byte("pending")))
}

func TestManager_ValidatesAssetID(t *testing.T) {
	m := NewManager(context.Background(), newFixture().deps(), testConfig(), zap.NewNop())
	defer m.Close()

	_, err := m.For("not-a-uuid")
	require.Error(t, err)

	a, err := m.For(ethID)
	require.NoError(t, err)
	b, err := m.For(ethID)
	require.NoError(t, err)
	assert.Same(t, a, b)

	snaps := m.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, ethID, snaps[0].AssetID)
}
