package segy

import (
	"errors"
	"io"
	"os"
)

// Trace records are small and read in long sequential runs, so the source
// keeps one large block buffered and serves sub-slices out of it.
const defaultBlockSize = 4 << 20

type blockSource struct {
	file     *os.File
	size     int64
	buf      []byte
	bufStart int64
	bufLen   int
}

func newBlockSource(f *os.File, size int64) *blockSource {
	return &blockSource{file: f, size: size}
}

func (bs *blockSource) Close() error {
	if bs.file == nil {
		return nil
	}
	err := bs.file.Close()
	bs.file = nil
	bs.buf = nil
	bs.bufLen = 0
	return err
}

// view returns exactly length bytes at offset, refilling the block buffer
// when the request falls outside it. The returned slice aliases the buffer
// and is only valid until the next call.
func (bs *blockSource) view(offset int64, length int) ([]byte, error) {
	if length <= 0 {
		return []byte{}, nil
	}
	if bs.file == nil {
		return nil, os.ErrClosed
	}
	if offset < 0 || offset+int64(length) > bs.size {
		return nil, io.ErrUnexpectedEOF
	}
	if offset < bs.bufStart || offset+int64(length) > bs.bufStart+int64(bs.bufLen) {
		if err := bs.fill(offset, length); err != nil {
			return nil, err
		}
	}
	start := int(offset - bs.bufStart)
	return bs.buf[start : start+length], nil
}

func (bs *blockSource) fill(offset int64, length int) error {
	want := defaultBlockSize
	if want < length {
		want = length
	}
	if int64(want) > bs.size-offset {
		want = int(bs.size - offset)
	}
	if cap(bs.buf) < want {
		bs.buf = make([]byte, want)
	}
	bs.buf = bs.buf[:want]
	n, err := bs.file.ReadAt(bs.buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		bs.bufLen = 0
		return err
	}
	if n < length {
		bs.bufLen = 0
		return io.ErrUnexpectedEOF
	}
	bs.bufStart = offset
	bs.bufLen = n
	return nil
}
