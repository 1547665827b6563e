package eventstore

import (
	"context"
	"io"
)

// changeSetCursor is the lazy batched cursor behind AllChanges and GetFrom.
// It holds the current batch, the next fetch offset and end-of-data state,
// and fetches the next batch from the backend only when the current one is
// exhausted. No full-result materialization ever happens; memory is bounded
// by the batch size.
type changeSetCursor struct {
	storage    Storage
	query      Query
	serializer Serializer
	batchSize  int

	batch  []StoredEntry
	index  int
	offset int
	eod    bool
}

func newChangeSetCursor(storage Storage, q Query, batchSize int, serializer Serializer) *Iterator[*ChangeSet] {
	c := &changeSetCursor{
		storage:    storage,
		query:      q,
		serializer: serializer,
		batchSize:  batchSize,
	}
	return NewIteratorFunc(c.next).OnClose(c.release)
}

func (c *changeSetCursor) next(ctx context.Context) (*ChangeSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.index >= len(c.batch) {
		if err := c.fetch(ctx); err != nil {
			return nil, err
		}
		if len(c.batch) == 0 {
			return nil, io.EOF
		}
	}
	entry := c.batch[c.index]
	c.index++
	return toChangeSet(entry, c.serializer)
}

// fetch loads the next batch. A short batch means the backend has no
// further rows, so the extra round trip to discover emptiness is skipped.
func (c *changeSetCursor) fetch(ctx context.Context) error {
	c.batch = nil
	c.index = 0
	if c.eod {
		return io.EOF
	}
	rows, err := c.storage.Query(ctx, c.query, c.offset, c.batchSize)
	if err != nil {
		return WrapStoreError(err)
	}
	c.offset += len(rows)
	if len(rows) < c.batchSize {
		c.eod = true
	}
	c.batch = rows
	if len(rows) == 0 {
		return io.EOF
	}
	return nil
}

// release drops the current batch so abandoned cursors do not pin backend
// rows in memory.
func (c *changeSetCursor) release() {
	c.batch = nil
	c.eod = true
}
