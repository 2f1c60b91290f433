package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ScanDir records the effective modification time of a directory as of the
// last scan that walked its files.
type ScanDir struct {
	bun.BaseModel `bun:"table:scan_dirs,alias:sd" tstype:"-"`

	Dir       string    `bun:",pk" json:"dir"`
	MtimeNs   int64     `bun:"mtime_ns" json:"mtime_ns"`
	UpdatedAt time.Time `json:"updated_at"`
}
