// Package report renders the structured batch summaries emitted by the core
// operations as operator-facing text. It is purely presentational; nothing in
// here feeds back into the pipeline.
package report

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"PriceTracker/internal/domain"
)

const dryRunNotice = "DRY RUN - no writes occurred"

// WriteCrawl prints a crawl-run summary and its per-brand error list.
func WriteCrawl(w io.Writer, s domain.CrawlSummary) {
	fmt.Fprintf(w, "Crawl run %s\n", s.RunID)
	writeCounts(w, [][2]string{
		{"Total items", strconv.Itoa(s.Total)},
		{"Created", strconv.Itoa(s.Created)},
		{"Updated", strconv.Itoa(s.Updated)},
		{"Skipped", strconv.Itoa(s.Skipped)},
		{"Failed", strconv.Itoa(s.Failed)},
	})

	if len(s.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
}

// WriteRepair prints a stats-repair summary with per-product field changes.
func WriteRepair(w io.Writer, s domain.RepairSummary) {
	if s.DryRun {
		fmt.Fprintln(w, dryRunNotice)
	}
	writeCounts(w, [][2]string{
		{"Products scanned", strconv.Itoa(s.Scanned)},
		{"Products fixed", strconv.Itoa(s.Fixed)},
	})

	for _, fix := range s.Fixes {
		fmt.Fprintf(w, "product %d (%s) %s\n", fix.ProductID, fix.ExternalID, truncate(fix.Name, 30))
		if fix.OldLowest != fix.NewLowest {
			fmt.Fprintf(w, "  lowest_price: %d -> %d\n", fix.OldLowest, fix.NewLowest)
		}
		if fix.OldHighest != fix.NewHighest {
			fmt.Fprintf(w, "  highest_price: %d -> %d\n", fix.OldHighest, fix.NewHighest)
		}
		if fix.OldCurrent != fix.NewCurrent {
			fmt.Fprintf(w, "  current_price: %d -> %d\n", fix.OldCurrent, fix.NewCurrent)
		}
	}
}

// WriteCleanup prints a history-cleanup summary.
func WriteCleanup(w io.Writer, s domain.CleanupSummary) {
	if s.DryRun {
		fmt.Fprintln(w, dryRunNotice)
	}
	writeCounts(w, [][2]string{
		{"Products with history", strconv.Itoa(s.Products)},
		{"Duplicate records removed", strconv.Itoa(s.Deleted)},
	})
}

// WriteImport prints a legacy-import summary including the compression ratio
// and unmatched keys (elided past 20 entries).
func WriteImport(w io.Writer, s domain.ImportSummary) {
	if s.DryRun {
		fmt.Fprintln(w, dryRunNotice)
	}
	writeCounts(w, [][2]string{
		{"Legacy records", strconv.FormatInt(s.LegacyRecords, 10)},
		{"Keys processed", strconv.Itoa(s.KeysProcessed)},
		{"Products matched", strconv.Itoa(s.Matched)},
		{"Products not found", strconv.Itoa(s.NotFound)},
		{"Change events", strconv.Itoa(s.ChangeEvents)},
		{"Records imported", strconv.Itoa(s.Imported)},
		{"Duplicates skipped", strconv.Itoa(s.DuplicateSkipped)},
		{"Stats updated", strconv.Itoa(s.StatsUpdated)},
	})

	if s.LegacyRecords > 0 {
		fmt.Fprintf(w, "Compression: %.2f%% reduction (%d -> %d records)\n",
			s.CompressionPercent(), s.LegacyRecords, s.ChangeEvents)
	}

	if n := len(s.NotFoundKeys); n > 0 {
		if n > 20 {
			fmt.Fprintf(w, "Keys not found in current store: %d (too many to list)\n", n)
			return
		}
		fmt.Fprintln(w, "Keys not found in current store:")
		for _, key := range s.NotFoundKeys {
			fmt.Fprintf(w, "  - %s\n", key)
		}
	}
}

func writeCounts(w io.Writer, rows [][2]string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", row[0], row[1])
	}
	_ = tw.Flush()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
