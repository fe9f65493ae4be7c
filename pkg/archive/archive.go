// Package archive moves stored objects in and out of CARv2 files. Each
// block is one encoded record addressed by its dag-cbor CID, so an archive
// is self-verifying.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/agenthands/edgecas/pkg/cidutil"
	"github.com/agenthands/edgecas/pkg/core"
	"github.com/agenthands/edgecas/pkg/edgecas"
	"github.com/agenthands/edgecas/pkg/record"
	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	carv2 "github.com/ipld/go-car/v2"
	"github.com/ipld/go-car/v2/blockstore"
	"go.uber.org/zap"
)

// Stats summarizes one export or import.
type Stats struct {
	Objects int
	Bytes   int64
}

type Archiver struct {
	logger  *zap.Logger
	records record.Codec
	cidHub  cidutil.Builder
}

// New returns an Archiver. A nil logger discards output.
func New(logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		logger: logger,
		// Size limits are the destination store's business.
		records: record.NewCodec(core.LimitsConfig{}),
		cidHub:  cidutil.NewBuilder(),
	}
}

// Export writes every object in store to a new CARv2 file at path. A failed
// export leaves no file behind.
func (a *Archiver) Export(ctx context.Context, store edgecas.Store, path string) (Stats, error) {
	var stats Stats

	if _, err := os.Stat(path); err == nil {
		return stats, fmt.Errorf("archive %s already exists", path)
	}

	bs, err := blockstore.OpenReadWrite(path, []cid.Cid{})
	if err != nil {
		return stats, fmt.Errorf("failed to create archive %s: %w", path, err)
	}

	err = store.Walk(ctx, func(o edgecas.Object) error {
		blk, err := a.block(o)
		if err != nil {
			return err
		}
		if err := bs.Put(ctx, blk); err != nil {
			return fmt.Errorf("failed to write %s: %w", o.ID, err)
		}
		stats.Objects++
		stats.Bytes += int64(len(o.Body))
		return nil
	})
	if err != nil {
		bs.Discard()
		_ = os.Remove(path)
		return stats, err
	}

	if err := bs.Finalize(); err != nil {
		_ = os.Remove(path)
		return stats, fmt.Errorf("failed to finalize archive: %w", err)
	}

	a.logger.Info("archive exported", zap.String("path", path), zap.Int("objects", stats.Objects), zap.Int64("bytes", stats.Bytes))
	return stats, nil
}

func (a *Archiver) block(o edgecas.Object) (blocks.Block, error) {
	bodyCID, err := a.cidHub.BodyCID(o.Body)
	if err != nil {
		return nil, err
	}
	rec, err := a.records.Encode(&record.ObjectV1{
		Version:   1,
		ID:        string(o.ID),
		CID:       bodyCID,
		MediaType: record.MediaTypeJSON,
		Length:    uint64(len(o.Body)),
		Body:      o.Body,
	})
	if err != nil {
		return nil, err
	}
	recCID, err := a.cidHub.RecordCID(rec)
	if err != nil {
		return nil, err
	}
	c, err := cid.Cast(recCID.Bytes)
	if err != nil {
		return nil, fmt.Errorf("invalid CID %s: %w", cidutil.String(recCID), err)
	}
	a.logger.Debug("archiving object", zap.String("id", string(o.ID)), zap.String("cid", cidutil.String(recCID)))
	return blocks.NewBlockWithCid(rec, c)
}

// Import restores every record of the archive at path into store. Blocks
// are read linearly and each one is verified against its CID before it is
// decoded.
func (a *Archiver) Import(ctx context.Context, path string, store edgecas.Store) (Stats, error) {
	var stats Stats

	f, err := os.Open(path)
	if err != nil {
		return stats, fmt.Errorf("failed to open archive %s: %w", path, err)
	}
	defer f.Close()

	br, err := carv2.NewBlockReader(f)
	if err != nil {
		return stats, fmt.Errorf("%w: failed to read archive %s: %v", core.ErrCorrupt, path, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		blk, err := br.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("%w: failed to read block: %v", core.ErrCorrupt, err)
		}

		raw, blkCID := blk.RawData(), core.CID{Bytes: blk.Cid().Bytes()}
		if err := a.cidHub.Verify(blkCID, raw); err != nil {
			return stats, fmt.Errorf("block %s: %w", cidutil.String(blkCID), err)
		}
		o, err := a.records.Decode(raw)
		if err != nil {
			return stats, fmt.Errorf("block %s: %w", cidutil.String(blkCID), err)
		}
		if err := a.cidHub.Verify(o.CID, o.Body); err != nil {
			return stats, fmt.Errorf("object %s: %w", o.ID, err)
		}

		if err := store.Restore(ctx, edgecas.Object{ID: edgecas.Identifier(o.ID), Body: o.Body}); err != nil {
			return stats, fmt.Errorf("failed to restore %s: %w", o.ID, err)
		}
		stats.Objects++
		stats.Bytes += int64(len(o.Body))
	}

	a.logger.Info("archive imported", zap.String("path", path), zap.Int("objects", stats.Objects), zap.Int64("bytes", stats.Bytes))
	return stats, nil
}
