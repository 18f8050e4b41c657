// Package pipeline runs the import: segmentation, extraction, normalization,
// resolution, duplicate detection and posting, strictly sequentially. Each
// record's posting attempt is one local store transaction; a failure drops
// only that record and the run continues.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rumor-ml/commons.systems/walletparse/internal/dedup"
	"github.com/rumor-ml/commons.systems/walletparse/internal/domain"
	"github.com/rumor-ml/commons.systems/walletparse/internal/extract"
	"github.com/rumor-ml/commons.systems/walletparse/internal/normalize"
	"github.com/rumor-ml/commons.systems/walletparse/internal/output"
	"github.com/rumor-ml/commons.systems/walletparse/internal/posting"
	"github.com/rumor-ml/commons.systems/walletparse/internal/resolve"
	"github.com/rumor-ml/commons.systems/walletparse/internal/scanner"
	"github.com/rumor-ml/commons.systems/walletparse/internal/segment"
)

// Stats aggregates the run outcome.
type Stats struct {
	Blocks            int // candidate blocks found by segmentation
	Parsed            int // records surviving extraction and normalization
	Dropped           int // blocks/records dropped by parse-time failures
	BelowMinDate      int
	Duplicates        int // confirmed duplicates skipped
	Indeterminate     int // duplicate checks answered indeterminately
	TransfersCreated  int
	TransfersExisting int
	EntriesCreated    int
	Errors            int // per-record posting failures
}

// Inserted is the number of newly inserted logical rows: each transfer counts
// its two legs, each standalone entry counts one.
func (s *Stats) Inserted() int {
	return 2*s.TransfersCreated + s.EntriesCreated
}

// Options are the run-level switches.
type Options struct {
	// MinDate drops records dated before it. Zero means no cutoff.
	MinDate time.Time
	// DryRun collects would-be insertions instead of writing to the store.
	DryRun bool
}

// Pipeline wires the stages together.
type Pipeline struct {
	segmenter *segment.Segmenter
	extractor *extract.Extractor
	resolver  *resolve.Resolver
	detector  *dedup.Detector
	engine    *posting.Engine
	opts      Options
	log       *zap.Logger
}

// New creates a Pipeline over already-constructed stages.
func New(resolver *resolve.Resolver, detector *dedup.Detector, engine *posting.Engine, opts Options, log *zap.Logger) *Pipeline {
	return &Pipeline{
		segmenter: segment.New(),
		extractor: extract.New(),
		resolver:  resolver,
		detector:  detector,
		engine:    engine,
		opts:      opts,
		log:       log,
	}
}

// ParseLines turns raw statement lines into parsed records. Blocks that fail
// extraction or normalization are dropped with a diagnostic, never fatally.
// Records recovered across page breaks are deduplicated in-batch by
// transaction id or by (amount, date).
func (p *Pipeline) ParseLines(lines []string, linkedID string, stats *Stats) []*domain.ParsedRecord {
	blocks := p.segmenter.Split(lines)
	stats.Blocks += len(blocks)

	seenSource := make(map[string]bool)
	seenAmountDate := make(map[string]bool)

	var records []*domain.ParsedRecord
	for _, b := range blocks {
		rec, ok := p.buildRecord(b)
		if !ok {
			stats.Dropped++
			continue
		}
		rec.LinkedID = linkedID

		if rec.TransactionID != "" {
			if seenSource[rec.TransactionID] {
				continue
			}
			seenSource[rec.TransactionID] = true
		} else {
			key := rec.Amount.StringFixed(domain.AmountScale) + "|" + rec.Date
			if seenAmountDate[key] {
				continue
			}
			seenAmountDate[key] = true
		}

		records = append(records, rec)
		stats.Parsed++
	}
	return records
}

// buildRecord extracts and normalizes one block. ok=false means the block
// yields no record.
func (p *Pipeline) buildRecord(b segment.Block) (*domain.ParsedRecord, bool) {
	fields, ok := p.extractor.Extract(b)
	if !ok {
		p.log.Debug("block yielded no record", zap.String("block", clip(b.Text)))
		return nil, false
	}

	date := normalize.Date(fields.DateToken)
	if !normalize.IsNormalizedDate(date) {
		p.log.Warn("dropping record with unparseable date",
			zap.String("date", fields.DateToken),
			zap.String("payee", fields.Payee))
		return nil, false
	}

	amount, err := normalize.Amount(fields.AmountToken)
	if err != nil {
		p.log.Warn("dropping record with unparseable amount",
			zap.String("amount", fields.AmountToken),
			zap.String("payee", fields.Payee),
			zap.Error(err))
		return nil, false
	}

	rec, err := domain.NewParsedRecord(date, fields.Payee, amount, fields.Direction)
	if err != nil {
		p.log.Warn("dropping invalid record", zap.Error(err))
		return nil, false
	}
	rec.Time = normalize.Time(fields.TimeToken)
	rec.TransactionID = fields.TransactionID
	rec.UTR = fields.UTR
	return rec, true
}

// Run processes every statement. It returns the stats and, in dry-run mode,
// the rows that would have been inserted. Per-record failures are absorbed
// into the stats; a batch run never aborts mid-way.
func (p *Pipeline) Run(ctx context.Context, statements []scanner.Statement) (*Stats, []output.Row) {
	stats := &Stats{}
	var dryRows []output.Row

	for _, st := range statements {
		records := p.ParseLines(st.Lines, st.LinkedID, stats)
		p.log.Info("statement parsed",
			zap.String("path", st.Path),
			zap.Int("records", len(records)))

		for _, rec := range records {
			dryRows = append(dryRows, p.post(ctx, rec, stats)...)
		}
	}
	return stats, dryRows
}

// post handles one record end to end: min-date filter, self resolution,
// duplicate check, transfer attempt, standalone fallback.
func (p *Pipeline) post(ctx context.Context, rec *domain.ParsedRecord, stats *Stats) []output.Row {
	if !p.opts.MinDate.IsZero() {
		d, err := time.Parse("2006-01-02", rec.Date)
		if err != nil || d.Before(p.opts.MinDate) {
			stats.BelowMinDate++
			return nil
		}
	}

	createdAt, err := rec.Timestamp()
	if err != nil {
		stats.Dropped++
		p.log.Warn("dropping record without a valid timestamp", zap.Error(err))
		return nil
	}

	self := p.resolver.Self(rec.LinkedID)

	switch p.detector.Check(ctx, rec, self.ID) {
	case dedup.Found:
		stats.Duplicates++
		p.log.Info("already posted, skipping",
			zap.String("source", rec.TransactionID),
			zap.String("external_id", rec.UTR))
		return nil
	case dedup.Indeterminate:
		stats.Indeterminate++
	}

	if p.opts.DryRun {
		return []output.Row{{Record: rec, AccountID: self.ID}}
	}

	res := p.engine.Transfer(ctx, rec, self, createdAt)
	switch res.Status {
	case posting.StatusCreated:
		stats.TransfersCreated++
		return nil
	case posting.StatusExists:
		stats.TransfersExisting++
		return nil
	case posting.StatusError:
		stats.Errors++
		p.log.Error("transfer failed, falling back to standalone entry",
			zap.String("payee", rec.Payee),
			zap.String("reason", res.Reason))
	}

	// StatusSkip and StatusError both land here.
	if err := p.engine.Standalone(ctx, rec, self, createdAt); err != nil {
		stats.Errors++
		p.log.Error("failed to post entry; continuing with next record",
			zap.String("payee", rec.Payee),
			zap.Error(err))
	} else {
		stats.EntriesCreated++
	}
	return nil
}

func clip(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
