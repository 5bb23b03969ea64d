// Package entropy supplies the external block records mixed into every seed.
//
// A BlockRecord is a trusted, immutable fact published by a third party (a
// public chain). Sources never retry: a failed or slow fetch is reported to
// the caller as KindEntropySourceUnavailable and the caller decides.
package entropy

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"fairplay/verdict"
)

// BlockRecord is the external entropy mixed into a seed.
type BlockRecord struct {
	Hash            string  `json:"hash"`
	Height          uint64  `json:"height"`
	TimestampMillis int64   `json:"timestampMillis"`
	TxHash          *string `json:"txHash,omitempty"`
	TxIndex         *uint   `json:"txIndex,omitempty"`
	TxCount         *uint   `json:"txCount,omitempty"`
}

// Timestamp renders the timestamp exactly as it enters the seed preimage.
func (b BlockRecord) Timestamp() string {
	return strconv.FormatInt(b.TimestampMillis, 10)
}

// Validate checks that the record carries the fields a seed needs.
func (b BlockRecord) Validate() error {
	if b.Hash == "" {
		return fmt.Errorf("block record missing hash")
	}
	if b.TimestampMillis <= 0 {
		return fmt.Errorf("block record %s has no timestamp", b.Hash)
	}
	return nil
}

// BlockID selects which block to fetch. The zero value (or a nil *BlockID)
// selects the latest block.
type BlockID struct {
	Height *uint64 `json:"height,omitempty"`
	Hash   string  `json:"hash,omitempty"`
	// TxHash, when set, attaches the transaction's position in the block.
	TxHash string `json:"txHash,omitempty"`
}

// Source fetches block records.
type Source interface {
	Fetch(ctx context.Context, id *BlockID) (BlockRecord, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, id *BlockID) (BlockRecord, error)

func (f SourceFunc) Fetch(ctx context.Context, id *BlockID) (BlockRecord, error) {
	return f(ctx, id)
}

type timeoutSource struct {
	src     Source
	timeout time.Duration
}

// WithTimeout bounds every fetch of src by d and classifies any failure as
// KindEntropySourceUnavailable.
func WithTimeout(src Source, d time.Duration) Source {
	return &timeoutSource{src: src, timeout: d}
}

func (s *timeoutSource) Fetch(ctx context.Context, id *BlockID) (BlockRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec, err := s.src.Fetch(ctx, id)
	if err != nil {
		if verdict.KindOf(err) == verdict.KindEntropySourceUnavailable {
			return BlockRecord{}, err
		}
		return BlockRecord{}, verdict.Wrap(verdict.KindEntropySourceUnavailable, err, "fetch block")
	}
	if err := rec.Validate(); err != nil {
		return BlockRecord{}, verdict.Wrap(verdict.KindEntropySourceUnavailable, err, "invalid block record")
	}
	return rec, nil
}

// Static always returns the same record. Used by tests and offline tools.
type Static struct {
	Record BlockRecord
}

func (s Static) Fetch(ctx context.Context, _ *BlockID) (BlockRecord, error) {
	if err := ctx.Err(); err != nil {
		return BlockRecord{}, verdict.Wrap(verdict.KindEntropySourceUnavailable, err, "fetch block")
	}
	return s.Record, nil
}
