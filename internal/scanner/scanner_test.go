package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statementText = `PhonePe Transaction Statement
Mobile Number: 9876543210
Oct 28, 2025 - Nov 27, 2025

Oct 28, 2025
Paid to ACME
INR 250.00 Debit
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScan_SingleFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "statement.txt", statementText)

	statements, err := New(path).Scan()
	require.NoError(t, err)
	require.Len(t, statements, 1)

	st := statements[0]
	assert.Equal(t, path, st.Path)
	assert.Equal(t, "9876543210", st.LinkedID)
	assert.Len(t, st.Lines, 7)
}

func TestScan_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", statementText)
	writeFile(t, dir, "a.TXT", statementText)
	writeFile(t, dir, "notes.md", "not a statement")

	statements, err := New(dir).Scan()
	require.NoError(t, err)
	require.Len(t, statements, 2, "only .txt files are statements")

	// Deterministic path order.
	assert.Equal(t, filepath.Join(dir, "a.TXT"), statements[0].Path)
	assert.Equal(t, filepath.Join(dir, "b.txt"), statements[1].Path)
}

func TestScan_MissingInput(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope")).Scan()
	assert.Error(t, err)
}

func TestFindLinkedID(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  string
	}{
		{"mobile number", []string{"Mobile Number: 9876543210"}, "9876543210"},
		{"mobile no dash", []string{"Mobile No - 9876543210"}, "9876543210"},
		{"account number", []string{"Account Number: XXXX1234"}, "XXXX1234"},
		{"ac no", []string{"A/C No : 00001234"}, "00001234"},
		{"no header", []string{"Paid to ACME", "INR 250.00"}, ""},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindLinkedID(tt.lines))
		})
	}
}

func TestFindLinkedID_HeaderLimit(t *testing.T) {
	lines := make([]string, headerScanLimit+5)
	for i := range lines {
		lines[i] = "filler"
	}
	lines[headerScanLimit+2] = "Mobile Number: 9876543210"

	assert.Empty(t, FindLinkedID(lines), "identifiers beyond the header window are ignored")
}
