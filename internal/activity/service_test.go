package activity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian/internal/shared"
)

type stubRepo struct {
	rows       []shared.ActivityLog
	lastOffset int
	lastLimit  int
}

func (s *stubRepo) Window(_ context.Context, _ Filters, offset, limit int) ([]shared.ActivityLog, error) {
	s.lastOffset = offset
	s.lastLimit = limit
	if offset >= len(s.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], nil
}

func seedRows(n int) []shared.ActivityLog {
	rows := make([]shared.ActivityLog, n)
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = shared.ActivityLog{Action: "ledger.post", EntityType: "transaction", At: base.Add(time.Duration(i) * time.Minute)}
	}
	return rows
}

func TestTimelineFirstPageReportsNext(t *testing.T) {
	repo := &stubRepo{rows: seedRows(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), Filters{})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 20)
	assert.True(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.NextPage)
	assert.Zero(t, result.Paging.PrevPage)
	assert.Equal(t, 21, repo.lastLimit, "one extra row is fetched to detect a next page")
}

func TestTimelineLastPage(t *testing.T) {
	repo := &stubRepo{rows: seedRows(25)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), Filters{Page: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 5)
	assert.False(t, result.Paging.HasNext)
	assert.Equal(t, 1, result.Paging.PrevPage)
	assert.Equal(t, 20, repo.lastOffset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{rows: seedRows(5)}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), Filters{PageSize: 10_000})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, result.Paging.PageSize)
}
