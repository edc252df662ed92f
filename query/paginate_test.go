package query

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/postdesk/models"
)

func numbered(n int) []models.Post {
	out := make([]models.Post, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, models.Post{ID: fmt.Sprintf("r%d", i)})
	}
	return out
}

func TestPaginateClampsPastLastPage(t *testing.T) {
	page, err := Paginate(numbered(7), 3, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 7, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "r6", page.Items[0].ID)
	assert.Equal(t, "r7", page.Items[1].ID)
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrev)
}

func TestPaginateBounds(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		page      int
		size      int
		wantPage  int
		wantPages int
		wantItems int
	}{
		{"empty", 0, 1, 10, 1, 1, 0},
		{"empty page past end", 0, 4, 10, 1, 1, 0},
		{"zero page", 12, 0, 5, 1, 3, 5},
		{"negative page", 12, -3, 5, 1, 3, 5},
		{"exact fit", 10, 2, 5, 2, 2, 5},
		{"partial last", 12, 3, 5, 3, 3, 2},
		{"single large page", 3, 1, 20, 1, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := Paginate(numbered(tt.total), tt.page, tt.size)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, page.Page)
			assert.Equal(t, tt.wantPages, page.TotalPages)
			assert.Len(t, page.Items, tt.wantItems)
			assert.LessOrEqual(t, len(page.Items), tt.size)
		})
	}
}

func TestPaginateRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := Paginate(numbered(3), 1, size)
		assert.ErrorIs(t, err, ErrInvalidPageSize)
	}
}

func TestPaginateCoversEveryRecordOnce(t *testing.T) {
	records := numbered(23)
	for _, size := range PageSizeChoices {
		seen := map[string]int{}
		pages := TotalPages(len(records), size)
		for p := 1; p <= pages; p++ {
			page, err := Paginate(records, p, size)
			require.NoError(t, err)
			for _, r := range page.Items {
				seen[r.ID]++
			}
		}
		assert.Len(t, seen, len(records), "size %d", size)
		for id, n := range seen {
			assert.Equal(t, 1, n, "%s seen %d times at size %d", id, n, size)
		}
	}
}
