// Package tractfile stores streamline sets as zstd-compressed binary:
// the magic "CNTT", a uint32 version and a uint32 count, then per
// streamline a uint32 coordinate count followed by little-endian float32s.
package tractfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"gocnt/domain/tract"

	"github.com/klauspost/compress/zstd"
)

const (
	// Extension is appended to the base name of exported sets.
	Extension = ".tt.zst"

	magic   = "CNTT"
	version = 1
)

// Encode writes set to w.
func Encode(w io.Writer, set tract.Set) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	bw := bufio.NewWriter(enc)
	if _, err := bw.WriteString(magic); err != nil {
		enc.Close()
		return err
	}
	header := []uint32{version, uint32(len(set))}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		enc.Close()
		return err
	}
	for _, s := range set {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(s))); err != nil {
			enc.Close()
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, []float32(s)); err != nil {
			enc.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Decode reads a set written by Encode.
func Decode(r io.Reader) (tract.Set, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	head := make([]byte, len(magic))
	if _, err := io.ReadFull(br, head); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(head) != magic {
		return nil, fmt.Errorf("not a streamline file: magic %q", head)
	}
	var header [2]uint32
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if header[0] != version {
		return nil, fmt.Errorf("unsupported streamline file version %d", header[0])
	}

	set := make(tract.Set, 0, header[1])
	for i := uint32(0); i < header[1]; i++ {
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read streamline %d: %w", i, err)
		}
		s := make(tract.Streamline, n)
		if err := binary.Read(br, binary.LittleEndian, []float32(s)); err != nil {
			return nil, fmt.Errorf("read streamline %d: %w", i, err)
		}
		set = append(set, s)
	}
	return set, nil
}

// WriteFile writes set to path.
func WriteFile(path string, set tract.Set) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, set); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// ReadFile reads the set stored at path.
func ReadFile(path string) (tract.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	set, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return set, nil
}
