package events

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const transferABI = `[{
	"anonymous": false,
	"inputs": [
		{"indexed": true, "name": "from", "type": "address"},
		{"indexed": true, "name": "to", "type": "address"},
		{"indexed": false, "name": "value", "type": "uint256"}
	],
	"name": "Transfer",
	"type": "event"
}]`

func mustParseTransferABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(transferABI))
	require.NoError(t, err)
	return parsed
}

func TestContentEqual(t *testing.T) {
	base := &Event{
		ChainID:         1,
		ContractAddress: common.HexToAddress("0xabc"),
		ABI:             "Transfer(address,address,uint256)",
		Parameters:      map[string]interface{}{"value": "100"},
		BlockHash:       common.HexToHash("0xdead"),
	}

	sameContentDifferentID := &Event{
		ID:              uuid.New(),
		ChainID:         base.ChainID,
		ContractAddress: base.ContractAddress,
		ABI:             base.ABI,
		Parameters:      map[string]interface{}{"value": "100"},
		BlockHash:       base.BlockHash,
	}
	require.True(t, base.ContentEqual(sameContentDifferentID))

	differentValue := &Event{
		ChainID:         base.ChainID,
		ContractAddress: base.ContractAddress,
		ABI:             base.ABI,
		Parameters:      map[string]interface{}{"value": "200"},
		BlockHash:       base.BlockHash,
	}
	require.False(t, base.ContentEqual(differentValue))

	differentBlockHash := &Event{
		ChainID:         base.ChainID,
		ContractAddress: base.ContractAddress,
		ABI:             base.ABI,
		Parameters:      map[string]interface{}{"value": "100"},
		BlockHash:       common.HexToHash("0xbeef"),
	}
	require.False(t, base.ContentEqual(differentBlockHash))
}

func TestContentEqual_AddressCaseInsensitive(t *testing.T) {
	a := &Event{ContractAddress: common.HexToAddress("0xABCDEF0000000000000000000000000000000001"), BlockHash: common.HexToHash("0x1")}
	b := &Event{ContractAddress: common.HexToAddress("0xabcdef0000000000000000000000000000000001"), BlockHash: common.HexToHash("0x1")}
	require.True(t, a.ContentEqual(b))
}

func TestDecode(t *testing.T) {
	contractABI := mustParseTransferABI(t)
	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")

	value := make([]byte, 32)
	value[31] = 42

	log := types.Log{
		Address: common.HexToAddress("0xcontract00000000000000000000000000000001"),
		Topics: []common.Hash{
			crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")),
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        value,
		BlockHash:   common.HexToHash("0xblock1"),
		BlockNumber: 100,
		TxHash:      common.HexToHash("0xtx1"),
		TxIndex:     2,
		Index:       3,
	}

	e, err := Decode(log, contractABI, "Transfer", "TestToken", 1, 1_700_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(1), e.ChainID)
	require.Equal(t, "TestToken", e.ContractName)
	require.Equal(t, uint64(100), e.BlockNumber)
	require.Equal(t, uint(2), e.TransactionIndex)
	require.Equal(t, uint(3), e.LogIndex)
	require.Equal(t, strings.ToLower(common.BytesToHash(from.Bytes()).Hex()), e.Parameters["from"])
	require.Equal(t, strings.ToLower(common.BytesToHash(to.Bytes()).Hex()), e.Parameters["to"])
	require.Len(t, e.Topics, 3)
}

func TestDecode_UnknownEventName(t *testing.T) {
	contractABI := mustParseTransferABI(t)
	_, err := Decode(types.Log{}, contractABI, "NoSuchEvent", "TestToken", 1, 0)
	require.Error(t, err)
}
