package checksum

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Trailer layout, reading backwards from the end of the artifact:
//
//	[fingerprint bytes][8-byte little-endian length][tag]
//
// Appending arbitrary bytes to a shared library is harmless; the dynamic
// loader only reads the structured portion of the file.
var trailerTag = []byte("crateimport")

const trailerFixedSize = 8 + 11 // length field + tag

// loadTrailer reads the fingerprint stored at the end of the artifact.
// Returns an error if the file or the trailer is missing or malformed.
func loadTrailer(extensionPath string) ([]byte, error) {
	f, err := os.Open(extensionPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(-trailerFixedSize, io.SeekEnd); err != nil {
		return nil, fmt.Errorf("artifact too small for trailer: %w", err)
	}

	fixed := make([]byte, trailerFixedSize)
	if _, err := io.ReadFull(f, fixed); err != nil {
		return nil, err
	}

	if !bytes.Equal(fixed[8:], trailerTag) {
		return nil, fmt.Errorf("artifact %s is missing the fingerprint trailer tag", extensionPath)
	}

	length := int64(binary.LittleEndian.Uint64(fixed[:8]))
	if length < 0 {
		return nil, fmt.Errorf("corrupt trailer length %d in %s", length, extensionPath)
	}

	if _, err := f.Seek(-(trailerFixedSize + length), io.SeekEnd); err != nil {
		return nil, fmt.Errorf("corrupt trailer length %d in %s: %w", length, extensionPath, err)
	}

	sum := make([]byte, length)
	if _, err := io.ReadFull(f, sum); err != nil {
		return nil, err
	}

	return sum, nil
}

// appendTrailer writes the fingerprint and the fixed trailer to the end of
// the artifact. Strictly append-only.
func appendTrailer(extensionPath string, sum []byte) error {
	f, err := os.OpenFile(extensionPath, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("failed to open artifact for stamping: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 0, len(sum)+trailerFixedSize)
	buf = append(buf, sum...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(sum)))
	buf = append(buf, trailerTag...)

	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("failed to write fingerprint trailer: %w", err)
	}

	return nil
}
