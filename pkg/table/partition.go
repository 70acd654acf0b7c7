package table

// Range is a contiguous, half-open range of row indexes [Start, End)
// assigned to one partition.
type Range struct {
	Start int64
	End   int64
}

// Len returns the number of rows in the range.
func (r Range) Len() int64 {
	return r.End - r.Start
}

// Descriptor records one split: a range of Total rows cut at row index Split.
type Descriptor struct {
	Total int64
	Split int64
}

// Split partitions [0, total) by recursive halving. A range becomes a leaf
// once it holds fewer than minChunk rows or a single row. The result is a
// pure function of its arguments and lists leaves in row order.
func Split(total, minChunk int64) []Range {
	var leaves []Range
	walk(total, minChunk, func(r Range) { leaves = append(leaves, r) }, nil)
	return leaves
}

// SplitDescriptors returns the splits Split performs for the same arguments,
// in depth-first order.
func SplitDescriptors(total, minChunk int64) []Descriptor {
	var splits []Descriptor
	walk(total, minChunk, nil, func(d Descriptor) { splits = append(splits, d) })
	return splits
}

func walk(total, minChunk int64, leaf func(Range), split func(Descriptor)) {
	if total <= 0 {
		return
	}
	if minChunk < 1 {
		minChunk = 1
	}

	var rec func(lo, hi int64)
	rec = func(lo, hi int64) {
		size := hi - lo
		if size < minChunk || size == 1 {
			if leaf != nil {
				leaf(Range{Start: lo, End: hi})
			}
			return
		}
		mid := lo + size/2
		if split != nil {
			split(Descriptor{Total: size, Split: mid})
		}
		rec(lo, mid)
		rec(mid, hi)
	}
	rec(0, total)
}
