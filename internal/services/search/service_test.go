package search

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/paperdb/internal/common"
	"github.com/ternarybob/paperdb/internal/models"
	"github.com/ternarybob/paperdb/internal/storage/sqlite"
	"github.com/ternarybob/paperdb/internal/textutil"
)

func testService(t *testing.T) *Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.db")

	db, err := sqlite.OpenWritable(common.GetLogger(), path)
	require.NoError(t, err)

	papers := []*sqlite.PaperSnapshot{
		{
			Paper: &models.Paper{
				PaperID: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", PaperKey: "meta:a", PaperKeyType: models.KeyTypeMeta,
				Title: "Deep Learning Survey", Authors: []string{"Alice Smith"},
				Year: "2023", Month: "01", Venue: "NeurIPS",
				AvailableSummaryTemplates: []string{"deep_read"},
			},
			Corpus: sqlite.Corpus{
				Title: "Deep Learning Survey",
				Meta:  "alice smith neurips 2023",
				Body:  textutil.SpaceCJK("本文研究深度学习的注意力机制 with transformer layers"),
			},
		},
		{
			Paper: &models.Paper{
				PaperID: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", PaperKey: "meta:b", PaperKeyType: models.KeyTypeMeta,
				Title: "Convex Optimization Notes", Authors: []string{"Bob Jones"},
				Year: "2021", Month: "09", Venue: "ICML",
				AvailableSummaryTemplates: []string{"deep_read"},
			},
			Corpus: sqlite.Corpus{
				Title: "Convex Optimization Notes",
				Meta:  "bob jones icml 2021",
				Body:  textutil.SpaceCJK("凸优化与深度学习方法"),
			},
		},
	}

	writer := sqlite.NewWriter(common.GetLogger(), db)
	_, err = writer.WriteSnapshot(context.Background(), papers)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	ro, err := sqlite.OpenReadOnly(common.GetLogger(), path)
	require.NoError(t, err)
	reader, err := sqlite.NewReader(common.GetLogger(), ro)
	require.NoError(t, err)
	t.Cleanup(func() { reader.Close() })

	return NewService(common.GetLogger(), reader)
}

func TestValidateBoundaries(t *testing.T) {
	tests := []struct {
		name string
		req  models.SearchRequest
		err  error
	}{
		{"query at limit", models.SearchRequest{Query: strings.Repeat("a", 500)}, nil},
		{"query over limit", models.SearchRequest{Query: strings.Repeat("a", 501)}, models.ErrQueryTooLong},
		{"page size at limit", models.SearchRequest{PageSize: 100}, nil},
		{"page size over limit", models.SearchRequest{PageSize: 101}, models.ErrPageSizeTooLarge},
		{"offset at limit", models.SearchRequest{Page: 100, PageSize: 100}, nil},
		{"offset over limit", models.SearchRequest{Page: 1001, PageSize: 100}, models.ErrOffsetTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.req)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOffsetRejectedBeforeQuery(t *testing.T) {
	// A nil reader proves no DB work happens on an offset violation.
	s := NewService(common.GetLogger(), nil)
	_, err := s.Search(context.Background(), models.SearchRequest{
		Query: "x", Page: 1001, PageSize: 100,
	})
	assert.ErrorIs(t, err, models.ErrOffsetTooLarge)
}

func TestCJKPhraseSearch(t *testing.T) {
	s := testService(t)

	resp, err := s.Search(context.Background(), models.SearchRequest{Query: "深度学习"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Items, 2)

	for _, item := range resp.Items {
		assert.Contains(t, item.SnippetMarkdown, "[[[深度学习]]]",
			"snippet should merge markers and de-space CJK")
		assert.NotContains(t, item.SnippetMarkdown, "深 度",
			"index-time spacing must not leak into snippets")
	}
}

func TestMixedScriptSearch(t *testing.T) {
	s := testService(t)

	resp, err := s.Search(context.Background(), models.SearchRequest{Query: "深度学习 transformer"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Deep Learning Survey", resp.Items[0].Title)
}

func TestEmptyQueryListsUnderSort(t *testing.T) {
	s := testService(t)

	resp, err := s.Search(context.Background(), models.SearchRequest{
		Query: "", Sort: models.SortYearDesc,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "2023", resp.Items[0].Year)
	assert.Equal(t, "2021", resp.Items[1].Year)
	assert.Empty(t, resp.Items[0].SnippetMarkdown)
}

func TestFieldFilterSearch(t *testing.T) {
	s := testService(t)

	resp, err := s.Search(context.Background(), models.SearchRequest{Query: "author:smith 深度学习"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "Deep Learning Survey", resp.Items[0].Title)

	resp, err = s.Search(context.Background(), models.SearchRequest{Query: "year:2021"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "Convex Optimization Notes", resp.Items[0].Title)
}

func TestTrigramFallbackOnTypo(t *testing.T) {
	s := testService(t)

	// "optimizatio" misses the word index but trigrams still match the title.
	resp, err := s.Search(context.Background(), models.SearchRequest{Query: "optimizatio"})
	require.NoError(t, err)
	require.GreaterOrEqual(t, resp.Total, 1)
	assert.Equal(t, "Convex Optimization Notes", resp.Items[0].Title)
}

func TestCleanSnippet(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"[[[深]]] [[[度]]] [[[学]]] [[[习]]]", "[[[深度学习]]]"},
		{"前 文 [[[深]]] [[[度]]] 后 文", "前文[[[深度]]]后文"},
		{"plain [[[match]]] text", "plain [[[match]]] text"},
		{"[[[deep]]] [[[learning]]]", "[[[deep learning]]]"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, CleanSnippet(tt.input), "input %q", tt.input)
	}
}
