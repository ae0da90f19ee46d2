// Package segy reads SEG-Y rev 0/1 files: the 3200-byte EBCDIC text header,
// the 400-byte binary header, and fixed-stride trace records. It is the
// file-side collaborator behind gather.TraceReader.
package segy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"example.com/gatherview/internal/gather"
)

const (
	textHeaderSize   = 3200
	binaryHeaderSize = 400
	traceHeaderSize  = 240
	traceDataStart   = textHeaderSize + binaryHeaderSize

	textLineCount = 40
	textLineWidth = 80

	// Byte offsets within the file for binary header fields (zero-based;
	// the standard numbers them 3217-3218, 3221-3222 and 3225-3226).
	offSampleInterval = 3216
	offNumSamples     = 3220
	offSampleFormat   = 3224
)

// Sample format codes from the binary header.
const (
	SampleFormatIBMFloat  = 1
	SampleFormatInt32     = 2
	SampleFormatInt16     = 3
	SampleFormatIEEEFloat = 5
	SampleFormatInt8      = 8
)

var (
	ErrTruncated          = errors.New("file truncated: trace records do not fill the file")
	ErrUnsupportedFormat  = errors.New("unsupported sample format code")
	ErrRangeOutOfBounds   = errors.New("trace range out of bounds")
	ErrFieldOutsideHeader = errors.New("header field extends past the 240-byte trace header")
	ErrBadBinaryHeader    = errors.New("binary header has no usable sample geometry")
)

// Reader exposes windowed access to the traces of one SEG-Y file. Reads go
// through a block-buffered source so successive window reloads over nearby
// ranges hit the same buffer instead of the disk.
type Reader struct {
	src        *blockSource
	path       string
	bhead      gather.BinaryHeader
	sampleFmt  int
	sampleSize int
	traceSize  int64
	total      int
	text       []string
}

// Open parses the file headers and derives the trace count from the file
// size. A trailing partial trace is reported as ErrTruncated.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := stat.Size()
	if size < traceDataStart {
		f.Close()
		return nil, fmt.Errorf("%w: %d bytes, need %d for headers", ErrTruncated, size, traceDataStart)
	}
	src := newBlockSource(f, size)
	r := &Reader{src: src, path: path}

	bin, err := src.view(0, traceDataStart)
	if err != nil {
		src.Close()
		return nil, err
	}
	r.text = decodeTextHeader(bin[:textHeaderSize])
	r.bhead.SampleInterval = int(binary.BigEndian.Uint16(bin[offSampleInterval : offSampleInterval+2]))
	r.bhead.NumSamples = int(binary.BigEndian.Uint16(bin[offNumSamples : offNumSamples+2]))
	r.sampleFmt = int(binary.BigEndian.Uint16(bin[offSampleFormat : offSampleFormat+2]))

	if r.bhead.NumSamples <= 0 {
		src.Close()
		return nil, fmt.Errorf("%w: num_samp=%d", ErrBadBinaryHeader, r.bhead.NumSamples)
	}
	r.sampleSize, err = sampleSize(r.sampleFmt)
	if err != nil {
		src.Close()
		return nil, err
	}
	r.traceSize = traceHeaderSize + int64(r.bhead.NumSamples)*int64(r.sampleSize)

	dataBytes := size - traceDataStart
	if dataBytes%r.traceSize != 0 {
		src.Close()
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrTruncated, dataBytes%r.traceSize)
	}
	r.total = int(dataBytes / r.traceSize)
	return r, nil
}

func (r *Reader) Close() error {
	return r.src.Close()
}

func (r *Reader) Path() string { return r.path }

func (r *Reader) TotalTraces() int { return r.total }

func (r *Reader) BinaryHeader() gather.BinaryHeader { return r.bhead }

// SampleFormat reports the binary header's sample format code.
func (r *Reader) SampleFormat() int { return r.sampleFmt }

// TextHeader returns the EBCDIC text header decoded to 40 ASCII lines.
func (r *Reader) TextHeader() []string { return r.text }

func (r *Reader) traceOffset(index int) int64 {
	return traceDataStart + int64(index)*r.traceSize
}

func (r *Reader) checkRange(t0, t1 int) error {
	if t0 < 0 || t1 < t0 || t1 > r.total {
		return fmt.Errorf("%w: [%d, %d) of %d traces", ErrRangeOutOfBounds, t0, t1, r.total)
	}
	return nil
}

// ReadTraces decodes the sample values of traces [t0, t1), one row per
// trace.
func (r *Reader) ReadTraces(t0, t1 int) ([][]float32, error) {
	if err := r.checkRange(t0, t1); err != nil {
		return nil, err
	}
	out := make([][]float32, 0, t1-t0)
	ns := r.bhead.NumSamples
	for i := t0; i < t1; i++ {
		raw, err := r.src.view(r.traceOffset(i)+traceHeaderSize, ns*r.sampleSize)
		if err != nil {
			return nil, fmt.Errorf("trace %d: %w", i, err)
		}
		row := make([]float32, ns)
		if err := decodeSamples(raw, r.sampleFmt, row); err != nil {
			return nil, fmt.Errorf("trace %d: %w", i, err)
		}
		out = append(out, row)
	}
	return out, nil
}

// ReadHeaderField decodes one trace header field over traces [t0, t1) per
// the given spec's byte position and format code.
func (r *Reader) ReadHeaderField(t0, t1 int, spec gather.HeaderFieldSpec) ([]float64, error) {
	if err := r.checkRange(t0, t1); err != nil {
		return nil, err
	}
	width := spec.ByteWidth()
	if width == 0 {
		return nil, fmt.Errorf("%w: %q", gather.ErrUnknownFormat, spec.Format)
	}
	fieldOff := spec.BytePos - 1
	if fieldOff < 0 || fieldOff+width > traceHeaderSize {
		return nil, fmt.Errorf("%w: pos %d width %d", ErrFieldOutsideHeader, spec.BytePos, width)
	}
	out := make([]float64, 0, t1-t0)
	for i := t0; i < t1; i++ {
		raw, err := r.src.view(r.traceOffset(i)+int64(fieldOff), width)
		if err != nil {
			return nil, fmt.Errorf("trace %d header: %w", i, err)
		}
		out = append(out, decodeHeaderValue(raw, spec.Format))
	}
	return out, nil
}

func sampleSize(format int) (int, error) {
	switch format {
	case SampleFormatIBMFloat, SampleFormatInt32, SampleFormatIEEEFloat:
		return 4, nil
	case SampleFormatInt16:
		return 2, nil
	case SampleFormatInt8:
		return 1, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnsupportedFormat, format)
}

func decodeSamples(raw []byte, format int, out []float32) error {
	switch format {
	case SampleFormatIBMFloat:
		for i := range out {
			out[i] = ibmToFloat32(binary.BigEndian.Uint32(raw[i*4:]))
		}
	case SampleFormatInt32:
		for i := range out {
			out[i] = float32(int32(binary.BigEndian.Uint32(raw[i*4:])))
		}
	case SampleFormatInt16:
		for i := range out {
			out[i] = float32(int16(binary.BigEndian.Uint16(raw[i*2:])))
		}
	case SampleFormatIEEEFloat:
		for i := range out {
			out[i] = math.Float32frombits(binary.BigEndian.Uint32(raw[i*4:]))
		}
	case SampleFormatInt8:
		for i := range out {
			out[i] = float32(int8(raw[i]))
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedFormat, format)
	}
	return nil
}

func decodeHeaderValue(raw []byte, format gather.FormatCode) float64 {
	switch format {
	case gather.FormatLong:
		return float64(int32(binary.BigEndian.Uint32(raw)))
	case gather.FormatFloat:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(raw)))
	case gather.FormatIBMFloat:
		return float64(ibmToFloat32(binary.BigEndian.Uint32(raw)))
	case gather.FormatShort:
		return float64(int16(binary.BigEndian.Uint16(raw)))
	case gather.FormatString:
		return float64(raw[0])
	}
	return 0
}
