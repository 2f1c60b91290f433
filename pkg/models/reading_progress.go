package models

import (
	"time"

	"github.com/uptrace/bun"
)

type ReadingProgress struct {
	bun.BaseModel `bun:"table:reading_progress,alias:rp" tstype:"-"`

	UserID       int       `bun:",pk" json:"user_id"`
	ComicID      string    `bun:",pk" json:"comic_id"`
	LastReadPage int       `json:"last_read_page"`
	TotalPages   int       `json:"total_pages"`
	UpdatedAt    time.Time `json:"updated_at"`
}
