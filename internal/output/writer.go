// Package output writes the dry-run report: the rows that would have been
// inserted, as a delimited file instead of store writes.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/rumor-ml/commons.systems/walletparse/internal/domain"
)

// header is the dry-run column order, mirroring the entries the live run
// would create.
var header = []string{"date", "time", "name", "amount", "direction", "source", "external_id", "account_id"}

// Row is one would-be insertion.
type Row struct {
	Record    *domain.ParsedRecord
	AccountID string
}

// WriteCSV writes rows with a header line. Amounts are the unsigned
// magnitudes; direction carries the debit/credit marker.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write dry-run header: %w", err)
	}
	for _, r := range rows {
		rec := r.Record
		err := cw.Write([]string{
			rec.Date,
			rec.Time,
			rec.Payee,
			rec.Amount.StringFixed(domain.AmountScale),
			string(rec.Direction),
			rec.TransactionID,
			rec.UTR,
			r.AccountID,
		})
		if err != nil {
			return fmt.Errorf("failed to write dry-run row for %s: %w", rec.Payee, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush dry-run rows: %w", err)
	}
	return nil
}

// WriteCSVFile writes rows to path, or stdout when path is empty.
func WriteCSVFile(path string, rows []Row) (err error) {
	if path == "" {
		return WriteCSV(os.Stdout, rows)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dry-run file %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close dry-run file %s: %w", path, closeErr)
		}
	}()
	return WriteCSV(f, rows)
}
