package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	//tygo:emit export type ScanRunStatus = typeof ScanRunStatusInProgress | typeof ScanRunStatusCompleted | typeof ScanRunStatusFailed;
	ScanRunStatusInProgress = "in_progress"
	ScanRunStatusCompleted  = "completed"
	ScanRunStatusFailed     = "failed"
)

const (
	//tygo:emit export type ScanTrigger = typeof ScanTriggerStartup | typeof ScanTriggerTimer | typeof ScanTriggerManual | typeof ScanTriggerWatch;
	ScanTriggerStartup = "startup"
	ScanTriggerTimer   = "timer"
	ScanTriggerManual  = "manual"
	ScanTriggerWatch   = "watch"
)

type ScanRun struct {
	bun.BaseModel `bun:"table:scan_runs,alias:sr" tstype:"-"`

	ID          int        `bun:",pk,nullzero" json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Status      string     `bun:",nullzero" json:"status" tstype:"ScanRunStatus"`
	Trigger     string     `bun:"trigger_source,nullzero" json:"trigger" tstype:"ScanTrigger"`
	Full        bool       `bun:"full_scan" json:"full"`
	Stats       string     `bun:",nullzero" json:"-"`
	StatsParsed *ScanStats `bun:"-" json:"stats"`
	Error       *string    `json:"error,omitempty"`
}

func (run *ScanRun) UnmarshalStats() error {
	run.StatsParsed = &ScanStats{}
	if run.Stats == "" {
		return nil
	}
	err := json.Unmarshal([]byte(run.Stats), run.StatsParsed)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (run *ScanRun) MarshalStats(stats *ScanStats) error {
	b, err := json.Marshal(stats)
	if err != nil {
		return errors.WithStack(err)
	}
	run.Stats = string(b)
	run.StatsParsed = stats
	return nil
}

// ScanStats counts what happened during one scan cycle.
type ScanStats struct {
	DirsWalked       int   `json:"dirs_walked"`
	DirsSkipped      int   `json:"dirs_skipped"`
	FilesSeen        int   `json:"files_seen"`
	Upserted         int   `json:"upserted"`
	Converted        int   `json:"converted"`
	ConvertFailed    int   `json:"convert_failed"`
	ThumbnailsOK     int   `json:"thumbnails_ok"`
	ThumbnailsFailed int   `json:"thumbnails_failed"`
	Errors           int   `json:"errors"`
	Reclaimed        int   `json:"reclaimed"`
	ScanDirsPruned   int   `json:"scan_dirs_pruned"`
	DurationMs       int64 `json:"duration_ms"`
}
