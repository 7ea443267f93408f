package nvdbapi

import (
	"context"

	"github.com/pkg/errors"
)

// Page is one batch of API objects
type Page struct {
	Objects  []map[string]interface{}
	Returned int
	// Next is cursor (full href) of the following page; empty when there is none
	Next string
}

// HasMore tells whether another page may be requested
func (p Page) HasMore() bool {
	return p.Returned > 0 && p.Next != ""
}

// Pager fetches page identified by cursor. Empty cursor means the first page
type Pager interface {
	FetchPage(ctx context.Context, cursor string) (Page, error)
}

// FetchAll walks pages until one comes back empty or without a next cursor
func FetchAll(ctx context.Context, pager Pager) ([]map[string]interface{}, error) {
	objects := []map[string]interface{}{}
	cursor := ""
	for pageNum := 0; ; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := pager.FetchPage(ctx, cursor)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't fetch page #%d", pageNum)
		}
		objects = append(objects, page.Objects...)
		if !page.HasMore() || page.Next == cursor {
			break
		}
		cursor = page.Next
	}
	return objects, nil
}

type endpointPager struct {
	client *Client
	first  string
}

func (p *endpointPager) FetchPage(ctx context.Context, cursor string) (Page, error) {
	target := cursor
	if target == "" {
		target = p.first
	}
	resp, err := p.client.get(ctx, target)
	if err != nil {
		return Page{}, err
	}
	returned := resp.Metadata.Returned
	if returned == 0 {
		returned = len(resp.Objects)
	}
	return Page{
		Objects:  resp.Objects,
		Returned: returned,
		Next:     resp.Metadata.Next.Href,
	}, nil
}
