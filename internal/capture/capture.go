package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNotFound is returned when the capture file does not exist.
var ErrNotFound = errors.New("capture file not found")

// maxLineBytes bounds a single capture line; tshark output with long
// information elements can exceed bufio's 64KiB default.
const maxLineBytes = 1 << 20

// ReadLines reads a tshark/tcpdump text capture and returns its lines.
func ReadLines(filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()
	return Scan(f)
}

// Scan splits r into lines, dropping trailing carriage returns.
func Scan(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	return lines, nil
}
