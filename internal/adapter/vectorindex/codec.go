package vectorindex

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"math"
	"os"

	"github.com/google/uuid"

	"mindkb/internal/domain"
)

// File layout, all integers little-endian:
//
//	magic    [8]byte  "MKBFLAT1"
//	version  uint32
//	dim      uint32
//	count    uint64
//	build id [16]byte
//	data     count*dim float32
//	crc32    uint32   IEEE checksum of every preceding byte
const (
	formatVersion = 1
	headerSize    = 8 + 4 + 4 + 8 + 16
	maxDimension  = 1 << 16
)

var magic = [8]byte{'M', 'K', 'B', 'F', 'L', 'A', 'T', '1'}

// Save writes the index to path and fsyncs it. The build id ties the file to
// the metadata file written in the same build.
func (f *Flat) Save(path string, buildID uuid.UUID) (err error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close index file: %w", cerr)
		}
	}()

	crc := crc32.NewIEEE()
	w := bufio.NewWriter(io.MultiWriter(file, crc))

	var header [headerSize]byte
	copy(header[0:8], magic[:])
	binary.LittleEndian.PutUint32(header[8:12], formatVersion)
	binary.LittleEndian.PutUint32(header[12:16], uint32(f.dim))
	binary.LittleEndian.PutUint64(header[16:24], uint64(f.Size()))
	copy(header[24:40], buildID[:])
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write index header: %w", err)
	}

	var buf [4]byte
	for _, x := range f.data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(x))
		if _, err := w.Write(buf[:]); err != nil {
			return fmt.Errorf("write index data: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write index data: %w", err)
	}

	binary.LittleEndian.PutUint32(buf[:], crc.Sum32())
	if _, err := file.Write(buf[:]); err != nil {
		return fmt.Errorf("write index checksum: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync index file: %w", err)
	}
	return nil
}

// Load reads an index written by Save and returns it with its build id.
// A missing file is domain.ErrNotFound; any other defect is
// domain.ErrIndexCorruption.
func Load(path string) (*Flat, uuid.UUID, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, uuid.Nil, fmt.Errorf("%w: index file %s", domain.ErrNotFound, path)
		}
		return nil, uuid.Nil, fmt.Errorf("read index file: %w", err)
	}

	f, id, err := decode(raw)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%w: %s: %v", domain.ErrIndexCorruption, path, err)
	}
	return f, id, nil
}

func decode(raw []byte) (*Flat, uuid.UUID, error) {
	if len(raw) < headerSize+4 {
		return nil, uuid.Nil, fmt.Errorf("file too short (%d bytes)", len(raw))
	}
	if !bytes.Equal(raw[0:8], magic[:]) {
		return nil, uuid.Nil, errors.New("bad magic")
	}
	if v := binary.LittleEndian.Uint32(raw[8:12]); v != formatVersion {
		return nil, uuid.Nil, fmt.Errorf("unsupported version %d", v)
	}

	body, trailer := raw[:len(raw)-4], raw[len(raw)-4:]
	if want, got := binary.LittleEndian.Uint32(trailer), crc32.ChecksumIEEE(body); want != got {
		return nil, uuid.Nil, fmt.Errorf("checksum mismatch: stored %08x, computed %08x", want, got)
	}

	dim := binary.LittleEndian.Uint32(raw[12:16])
	count := binary.LittleEndian.Uint64(raw[16:24])
	if dim == 0 || dim > maxDimension {
		return nil, uuid.Nil, fmt.Errorf("invalid dimension %d", dim)
	}
	payload := body[headerSize:]
	if uint64(len(payload)) != count*uint64(dim)*4 {
		return nil, uuid.Nil, fmt.Errorf("payload is %d bytes, header declares %d vectors of dimension %d",
			len(payload), count, dim)
	}

	id, err := uuid.FromBytes(raw[24:40])
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("build id: %v", err)
	}

	data := make([]float32, len(payload)/4)
	for i := range data {
		x := math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil, uuid.Nil, fmt.Errorf("non-finite value at row %d", i/int(dim))
		}
		data[i] = x
	}

	return &Flat{dim: int(dim), data: data}, id, nil
}
