package urlutil

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxLineBytes bounds a single line of a URL list.
const maxLineBytes = 1024 * 1024

// ReadList reads one URL per line from r, in order. Surrounding whitespace is
// trimmed; blank lines and lines starting with '#' are skipped. Duplicates
// are kept.
func ReadList(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	urls := []string{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read URL list: %w", err)
	}
	return urls, nil
}
