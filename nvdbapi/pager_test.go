package nvdbapi

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slicePager struct {
	pages []Page
	calls []string
	fail  int
}

func (p *slicePager) FetchPage(ctx context.Context, cursor string) (Page, error) {
	p.calls = append(p.calls, cursor)
	n := len(p.calls) - 1
	if p.fail > 0 && n == p.fail {
		return Page{}, fmt.Errorf("page %d is broken", n)
	}
	if n >= len(p.pages) {
		return Page{}, nil
	}
	return p.pages[n], nil
}

func objects(ids ...int) []map[string]interface{} {
	ans := make([]map[string]interface{}, len(ids))
	for i, id := range ids {
		ans[i] = map[string]interface{}{"id": id}
	}
	return ans
}

func TestFetchAll(t *testing.T) {
	pager := &slicePager{pages: []Page{
		{Objects: objects(1, 2), Returned: 2, Next: "c1"},
		{Objects: objects(3), Returned: 1, Next: "c2"},
		{Objects: nil, Returned: 0, Next: "c3"},
	}}
	all, err := FetchAll(context.Background(), pager)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, []string{"", "c1", "c2"}, pager.calls)
}

func TestFetchAllStopsWithoutCursor(t *testing.T) {
	pager := &slicePager{pages: []Page{
		{Objects: objects(1), Returned: 1, Next: "c1"},
		{Objects: objects(2), Returned: 1, Next: "c1"},
	}}
	all, err := FetchAll(context.Background(), pager)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Len(t, pager.calls, 2, "repeated cursor ends pagination")

	pager = &slicePager{pages: []Page{{Objects: objects(1), Returned: 1}}}
	all, err = FetchAll(context.Background(), pager)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Len(t, pager.calls, 1)
}

func TestFetchAllError(t *testing.T) {
	pager := &slicePager{
		pages: []Page{
			{Objects: objects(1), Returned: 1, Next: "c1"},
			{Objects: objects(2), Returned: 1, Next: "c2"},
		},
		fail: 1,
	}
	_, err := FetchAll(context.Background(), pager)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 1 is broken")
}

func TestPageHasMore(t *testing.T) {
	assert.True(t, Page{Returned: 1, Next: "x"}.HasMore())
	assert.False(t, Page{Returned: 0, Next: "x"}.HasMore())
	assert.False(t, Page{Returned: 1}.HasMore())
}
