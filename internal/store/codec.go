package store

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// encodePositions serializes a position set. nil encodes as nil.
func encodePositions(positions *roaring.Bitmap) ([]byte, error) {
	if positions == nil {
		return nil, nil
	}
	positions.RunOptimize()
	return positions.ToBytes()
}

// decodePositions is the inverse of encodePositions.
func decodePositions(data []byte) (*roaring.Bitmap, error) {
	if len(data) == 0 {
		return nil, nil
	}
	bm := roaring.New()
	if err := bm.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return bm, nil
}
