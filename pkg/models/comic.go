package models

import (
	"database/sql/driver"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	UnknownPublisher = "Unknown Publisher"
	UnknownSeries    = "Unknown Series"
)

type Comic struct {
	bun.BaseModel `bun:"table:comics,alias:c" tstype:"-"`

	ID            string        `bun:",pk" json:"id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	ScannedAt     time.Time     `json:"scanned_at"`
	Path          string        `bun:",nullzero,notnull" json:"path"`
	Publisher     string        `bun:",nullzero,notnull" json:"publisher"`
	Series        string        `bun:",nullzero,notnull" json:"series"`
	Name          string        `bun:",nullzero,notnull" json:"name"`
	ThumbnailPath *string       `json:"thumbnail_path"`
	Metadata      ComicMetadata `bun:"type:text" json:"metadata"`
	TotalPages    int           `json:"total_pages"`
	ConvertedAt   *time.Time    `json:"converted_at"`
}

// ComicMetadata holds the fields read from an archive's ComicInfo.xml keyed
// by their XML tag name. Empty values are never stored.
type ComicMetadata map[string]string

func (md ComicMetadata) Get(key string) string {
	if md == nil {
		return ""
	}
	return md[key]
}

func (md ComicMetadata) Value() (driver.Value, error) {
	if md == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(md))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return string(b), nil
}

func (md *ComicMetadata) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*md = ComicMetadata{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return errors.Errorf("unsupported metadata column type %T", src)
	}

	m := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return errors.WithStack(err)
		}
	}
	*md = m
	return nil
}
