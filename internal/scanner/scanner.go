// Package scanner finds statement text files and pulls the optional linked
// identifier (mobile or account number) out of their header lines.
package scanner

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Statement is one discovered statement file.
type Statement struct {
	Path string
	// LinkedID is the mobile/account number found in the statement header,
	// empty when the header carries none. Used for self-account resolution.
	LinkedID string
	Lines    []string
}

// linkedID matches header phrasings like "Mobile Number: 9876543210",
// "A/C No : 1234567890" or "Account Number - XX1234".
var linkedID = regexp.MustCompile(`(?i)(?:Mobile\s*(?:Number|No)|Account\s*(?:Number|No)|A/?C\s*No)\s*[:\-\s]*([A-Za-z0-9Xx*]+)`)

// headerScanLimit bounds how many leading lines are searched for the linked
// identifier; it always sits in the statement's first page header.
const headerScanLimit = 40

// Scanner discovers statement files under a root path.
type Scanner struct {
	root string
}

// New creates a scanner for root, which may be a single file or a directory.
func New(root string) *Scanner {
	return &Scanner{root: root}
}

// Scan returns the statements in deterministic path order. A directory is
// walked for .txt files; a single file is returned as-is.
func (s *Scanner) Scan() ([]Statement, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input %s: %w", s.root, err)
	}

	var paths []string
	if info.IsDir() {
		err := filepath.Walk(s.root, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			if strings.EqualFold(filepath.Ext(path), ".txt") {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan failed for %s: %w", s.root, err)
		}
		sort.Strings(paths)
	} else {
		paths = []string{s.root}
	}

	statements := make([]Statement, 0, len(paths))
	for _, p := range paths {
		st, err := load(p)
		if err != nil {
			return nil, err
		}
		statements = append(statements, st)
	}
	return statements, nil
}

func load(path string) (Statement, error) {
	f, err := os.Open(path)
	if err != nil {
		return Statement{}, fmt.Errorf("failed to open statement %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return Statement{}, fmt.Errorf("failed to read statement %s: %w", path, err)
	}

	return Statement{
		Path:     path,
		LinkedID: FindLinkedID(lines),
		Lines:    lines,
	}, nil
}

// FindLinkedID searches the leading header lines for a mobile/account-number
// identifier.
func FindLinkedID(lines []string) string {
	limit := len(lines)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}
	for _, line := range lines[:limit] {
		if m := linkedID.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}
