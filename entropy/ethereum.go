package entropy

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"

	"fairplay/verdict"
)

// headerReader is the subset of ethclient.Client the source needs.
type headerReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	HeaderByHash(ctx context.Context, hash common.Hash) (*types.Header, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionCount(ctx context.Context, blockHash common.Hash) (uint, error)
}

// EthereumSource reads block records from an EVM JSON-RPC endpoint.
type EthereumSource struct {
	client headerReader
	closer func()
}

// DialEthereum connects to the RPC endpoint at url.
func DialEthereum(ctx context.Context, url string) (*EthereumSource, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	log.WithField("rpc", url).Info("Entropy source connected")
	return &EthereumSource{client: client, closer: client.Close}, nil
}

// NewEthereumSource wraps an already connected reader.
func NewEthereumSource(client headerReader) *EthereumSource {
	return &EthereumSource{client: client}
}

// Close releases the underlying RPC connection.
func (s *EthereumSource) Close() {
	if s.closer != nil {
		s.closer()
	}
}

// Fetch returns the selected block. Errors are never retried.
func (s *EthereumSource) Fetch(ctx context.Context, id *BlockID) (BlockRecord, error) {
	header, err := s.header(ctx, id)
	if err != nil {
		return BlockRecord{}, verdict.Wrap(verdict.KindEntropySourceUnavailable, err, "fetch header")
	}
	if header == nil {
		return BlockRecord{}, verdict.New(verdict.KindEntropySourceUnavailable, "rpc returned no header")
	}

	rec := BlockRecord{
		Hash:            header.Hash().Hex(),
		Height:          header.Number.Uint64(),
		TimestampMillis: int64(header.Time) * 1000,
	}

	if id != nil && id.TxHash != "" {
		if err := s.attachTx(ctx, &rec, header.Hash(), id.TxHash); err != nil {
			return BlockRecord{}, verdict.Wrap(verdict.KindEntropySourceUnavailable, err, "fetch transaction")
		}
	}

	log.WithFields(log.Fields{
		"height": rec.Height,
		"hash":   rec.Hash,
	}).Debug("Fetched entropy block")

	return rec, nil
}

func (s *EthereumSource) header(ctx context.Context, id *BlockID) (*types.Header, error) {
	switch {
	case id == nil:
		return s.client.HeaderByNumber(ctx, nil)
	case id.Hash != "":
		if !isHexHash(id.Hash) {
			return nil, fmt.Errorf("malformed block hash %q", id.Hash)
		}
		return s.client.HeaderByHash(ctx, common.HexToHash(id.Hash))
	case id.Height != nil:
		return s.client.HeaderByNumber(ctx, new(big.Int).SetUint64(*id.Height))
	default:
		return s.client.HeaderByNumber(ctx, nil)
	}
}

func (s *EthereumSource) attachTx(ctx context.Context, rec *BlockRecord, blockHash common.Hash, txHex string) error {
	if !isHexHash(txHex) {
		return fmt.Errorf("malformed tx hash %q", txHex)
	}
	receipt, err := s.client.TransactionReceipt(ctx, common.HexToHash(txHex))
	if err != nil {
		return err
	}
	if receipt.BlockHash != blockHash {
		return fmt.Errorf("tx %s is not in block %s", txHex, blockHash.Hex())
	}
	count, err := s.client.TransactionCount(ctx, blockHash)
	if err != nil {
		return err
	}

	txHash := receipt.TxHash.Hex()
	index := receipt.TransactionIndex
	rec.TxHash = &txHash
	rec.TxIndex = &index
	rec.TxCount = &count
	return nil
}

func isHexHash(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 2*common.HashLength {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}
