package hldb

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Highlight struct {
	ID           string         `json:"id"`
	BookTitle    sql.NullString `json:"book_title"`
	Author       sql.NullString `json:"author"`
	Location     sql.NullString `json:"location"`
	Page         sql.NullString `json:"page"`
	DateAdded    sql.NullTime   `json:"date_added"`
	Content      string         `json:"content"`
	Lang         sql.NullString `json:"lang"`
	Source       string         `json:"source"`
	HashID       string         `json:"hash_id"`
	LastServedAt sql.NullTime   `json:"last_served_at"`
	CreatedOn    time.Time      `json:"created_on"`
}

type HighlightRef struct {
	ID           string       `json:"id"`
	LastServedAt sql.NullTime `json:"last_served_at"`
}

type DailySet struct {
	ID           string    `json:"id"`
	WindowKey    string    `json:"window_key"`
	Timezone     string    `json:"timezone"`
	Capacity     int32     `json:"capacity"`
	HighlightIds IDList    `json:"highlight_ids"`
	CreatedOn    time.Time `json:"created_on"`
}

type SystemSetting struct {
	Name       string    `json:"name"`
	Value      string    `json:"value"`
	CreatedOn  time.Time `json:"created_on"`
	ModifiedOn time.Time `json:"modified_on"`
}

// IDList is an ordered list of highlight ids stored as a JSON array.
type IDList []string

func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *IDList) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*l = IDList{}
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("IDList: unsupported scan type %T", src)
	}

	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return fmt.Errorf("IDList: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	*l = ids
	return nil
}
