package domain

// IngestOutcome reports whether ingestion created or updated a product.
type IngestOutcome int

const (
	OutcomeCreated IngestOutcome = iota
	OutcomeUpdated
)

// CrawlSummary aggregates one crawl run across all requested brands.
type CrawlSummary struct {
	RunID   string
	Total   int
	Created int
	Updated int
	Skipped int
	Failed  int
	Errors  []string
}

// StatsFix records one product whose cached extremes diverged from history.
type StatsFix struct {
	ProductID  int64
	ExternalID string
	Name       string
	OldLowest  int64
	NewLowest  int64
	OldHighest int64
	NewHighest int64
	OldCurrent int64
	NewCurrent int64
}

// RepairSummary is the result of one stats-repair pass.
type RepairSummary struct {
	Scanned int
	Fixed   int
	Fixes   []StatsFix
	DryRun  bool
}

// CleanupSummary is the result of one history-cleanup pass.
type CleanupSummary struct {
	Products int
	Deleted  int
	DryRun   bool
}

// ImportSummary is the result of one legacy-import pass.
type ImportSummary struct {
	LegacyRecords    int64
	KeysProcessed    int
	Matched          int
	NotFound         int
	ChangeEvents     int
	Imported         int
	DuplicateSkipped int
	StatsUpdated     int
	NotFoundKeys     []string
	DryRun           bool
}

// CompressionPercent reports how much of the legacy log collapsed into
// genuine change events.
func (s ImportSummary) CompressionPercent() float64 {
	if s.LegacyRecords == 0 {
		return 0
	}
	return (1 - float64(s.ChangeEvents)/float64(s.LegacyRecords)) * 100
}
