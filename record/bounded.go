package record

import (
	"context"
	"io"
)

// BoundedIterator caps a delegate at `limit` records.
// HasNext reports ordinary availability under the cap, while HasNextChunk reports that the cap was
// reached and the delegate still holds records that belong in another output file.
type BoundedIterator struct {
	delegate Iterator
	limit    int64
	count    int64
}

// Wraps `delegate`. `consumed` records are treated as already taken against the cap (resumed file).
func NewBoundedIterator(delegate Iterator, limit int64, consumed int64) *BoundedIterator {
	return &BoundedIterator{
		delegate: delegate,
		limit:    limit,
		count:    consumed,
	}
}

func (b *BoundedIterator) HasNext(ctx context.Context) (bool, error) {
	if b.count >= b.limit {
		return false, nil
	}
	return b.delegate.HasNext(ctx)
}

func (b *BoundedIterator) Next(ctx context.Context) (*Record, error) {
	if b.count >= b.limit {
		return nil, io.EOF
	}
	rec, err := b.delegate.Next(ctx)
	if err != nil {
		return nil, err
	}
	b.count++
	return rec, nil
}

// HasNextChunk reports whether the cap was reached while the delegate is not exhausted.
func (b *BoundedIterator) HasNextChunk(ctx context.Context) (bool, error) {
	if b.count < b.limit {
		return false, nil
	}
	return b.delegate.HasNext(ctx)
}

// Count of records taken against the cap, including the ones passed as consumed.
func (b *BoundedIterator) Count() int64 {
	return b.count
}
