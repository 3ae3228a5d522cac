package hldb

import (
	"context"
)

type Querier interface {
	CountHighlights(ctx context.Context) (int64, error)
	DeleteDailySet(ctx context.Context, windowKey string) (int64, error)
	GetDailySet(ctx context.Context, windowKey string) (DailySet, error)
	GetHighlight(ctx context.Context, id string) (Highlight, error)
	GetHighlightsByIDs(ctx context.Context, ids []string) ([]Highlight, error)
	GetSystemSetting(ctx context.Context, name string) (string, error)
	InsertDailySet(ctx context.Context, arg InsertDailySetParams) error
	InsertHighlight(ctx context.Context, arg InsertHighlightParams) error
	ListDailySets(ctx context.Context, limit int32) ([]DailySet, error)
	ListHighlightRefs(ctx context.Context, arg ListHighlightRefsParams) ([]HighlightRef, error)
	MarkHighlightsServed(ctx context.Context, arg MarkHighlightsServedParams) (int64, error)
	SetSystemSetting(ctx context.Context, arg SetSystemSettingParams) error
}

var _ Querier = (*Queries)(nil)
