// Package segment partitions the raw statement lines into candidate
// transaction blocks. Each block is anchored on a line containing a date-like
// token; the block runs until the next anchor. Statement furniture (period
// headers, column labels) is rejected so the statement's own dates never
// become transaction anchors.
package segment

import (
	"regexp"
	"strings"
)

// Block is one candidate transaction span.
type Block struct {
	Text  string // space-joined trimmed non-empty lines of the span
	Lines []int  // indices of the contributing input lines
}

var (
	// dateToken matches "Oct 28, 2025", "28/10/2025", "28-10-25" and
	// "2025-10-28" style tokens anywhere in a line.
	dateToken = regexp.MustCompile(`[A-Za-z]{3,9}\s*\d{1,2},\s*\d{4}|\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}-\d{1,2}-\d{1,2}`)

	// amountToken matches grouped or plain decimal amounts, used by the
	// page-break recovery pass.
	amountToken = regexp.MustCompile(`[0-9]{1,3}(?:,[0-9]{3})*\.[0-9]+|\d+\.[0-9]+`)

	// dateRangeHeader matches the statement period header, e.g.
	// "Oct 28, 2025 - Nov 27, 2025".
	dateRangeHeader = regexp.MustCompile(`[A-Za-z]{3,9}\s*\d{1,2},\s*\d{4}\s*[-–]\s*[A-Za-z]{3,9}\s*\d{1,2},\s*\d{4}`)

	// pageNumber matches page footer lines like "Page 2" or "Page 2 of 7".
	pageNumber = regexp.MustCompile(`(?i)^page\s+\d+(\s+of\s+\d+)?$`)
)

// headerContextRadius is how many contiguous lines before an anchor are
// inspected for header markers.
const headerContextRadius = 3

// Segmenter splits statement lines into transaction blocks.
type Segmenter struct{}

// New returns a Segmenter. It is stateless and safe for concurrent use.
func New() *Segmenter {
	return &Segmenter{}
}

// Split partitions lines into blocks. Anchors inside page-header context are
// skipped, and a recovery pass re-attaches amount-bearing lines that fell
// outside every block (transactions split across a page break).
func (s *Segmenter) Split(lines []string) []Block {
	anchors := s.findAnchors(lines)
	if len(anchors) == 0 {
		return nil
	}

	consumed := make([]bool, len(lines))
	blocks := make([]Block, 0, len(anchors))
	for i, start := range anchors {
		end := len(lines)
		if i+1 < len(anchors) {
			end = anchors[i+1]
		}
		b := buildBlock(lines, start, end)
		for _, idx := range b.Lines {
			consumed[idx] = true
		}
		if b.Text == "" {
			continue
		}
		blocks = append(blocks, b)
	}

	return s.recover(lines, consumed, blocks)
}

// findAnchors returns the indices of date-bearing lines that are not part of
// page header/footer context.
func (s *Segmenter) findAnchors(lines []string) []int {
	var anchors []int
	for i, line := range lines {
		if !dateToken.MatchString(line) {
			continue
		}
		if s.inHeaderContext(lines, i) {
			continue
		}
		anchors = append(anchors, i)
	}
	return anchors
}

// inHeaderContext reports whether the anchor candidate sits inside statement
// furniture: the line itself is a period header, or a "Date"/"Transaction
// Details" column label precedes it in the same contiguous run of lines.
// A blank line ends header context, so the first real transaction after a
// column-header row is still accepted. The scan is backward only: column
// labels always precede the dates they describe, while a marker after a
// date belongs to the next page and must not reject the transaction above.
func (s *Segmenter) inHeaderContext(lines []string, idx int) bool {
	if headerMarkerIn(lines[idx]) {
		return true
	}
	for i := idx - 1; i >= 0 && idx-i <= headerContextRadius; i-- {
		t := strings.TrimSpace(lines[i])
		if t == "" {
			break
		}
		if headerMarkerIn(t) {
			return true
		}
	}
	return false
}

func headerMarkerIn(line string) bool {
	t := strings.TrimSpace(line)
	if t == "" {
		return false
	}
	if dateRangeHeader.MatchString(t) {
		return true
	}
	low := strings.ToLower(t)
	return low == "date" || strings.Contains(low, "transaction details")
}

// isFurniture reports whether a line is page header/footer furniture that
// interrupts a transaction's lines at a page break.
func isFurniture(line string) bool {
	t := strings.TrimSpace(line)
	return headerMarkerIn(t) || pageNumber.MatchString(t)
}

// buildBlock joins the trimmed non-empty lines of [start, end) into one
// block. Consumption stops at the first furniture line after the anchor: the
// rest of the span belongs to a transaction interrupted by a page break, and
// the recovery pass re-attaches it.
func buildBlock(lines []string, start, end int) Block {
	var parts []string
	var contributing []int
	for i := start; i < end; i++ {
		if i > start && isFurniture(lines[i]) {
			break
		}
		t := strings.TrimSpace(lines[i])
		if t == "" {
			continue
		}
		parts = append(parts, t)
		contributing = append(contributing, i)
	}
	return Block{Text: strings.Join(parts, " "), Lines: contributing}
}

// recover scans lines no block consumed for amount-like tokens and attaches
// them to the nearest preceding anchor's block. This captures transactions
// whose amount landed on the far side of a page break.
func (s *Segmenter) recover(lines []string, consumed []bool, blocks []Block) []Block {
	for i, line := range lines {
		if consumed[i] {
			continue
		}
		t := strings.TrimSpace(line)
		if t == "" || isFurniture(t) || dateToken.MatchString(t) {
			continue
		}
		if !amountToken.MatchString(t) {
			continue
		}
		// Nearest preceding anchor owns the orphan line.
		target := -1
		for bi := range blocks {
			if len(blocks[bi].Lines) > 0 && blocks[bi].Lines[0] < i {
				target = bi
			}
		}
		if target < 0 {
			continue
		}
		blocks[target].Text += " " + t
		blocks[target].Lines = append(blocks[target].Lines, i)
		consumed[i] = true
	}
	return blocks
}

// DateTokenIn returns the first date-like token in s, or "".
func DateTokenIn(s string) string {
	return dateToken.FindString(s)
}

// IsDateRangeHeader reports whether text matches the statement period header
// pattern. Extracted records matching this are never posted.
func IsDateRangeHeader(text string) bool {
	return dateRangeHeader.MatchString(text)
}
