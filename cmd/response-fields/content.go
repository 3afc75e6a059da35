package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	responsefields "github.com/always-cache/response-fields"
)

const pageSize = 10

// content is the read-only post collection served by the host.
type content struct {
	posts []Post
	byID  map[int64]*Post
}

func newContent(posts []Post) *content {
	c := &content{
		posts: make([]Post, len(posts)),
		byID:  make(map[int64]*Post, len(posts)),
	}
	copy(c.posts, posts)
	// newest first
	sort.SliceStable(c.posts, func(i, j int) bool {
		return c.posts[i].Created.After(c.posts[j].Created)
	})
	for i := range c.posts {
		p := &c.posts[i]
		if p.GUID == "" {
			p.GUID = fmt.Sprintf("/?p=%d", p.ID)
		}
		if p.Modified.IsZero() {
			p.Modified = p.Created
		}
		c.byID[p.ID] = p
	}
	return c
}

func (c *content) get(id int64) (*Post, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// LatestApprovedComment implements responsefields.CommentSource.
func (c *content) LatestApprovedComment(ctx context.Context, id int64) (time.Time, bool, error) {
	p, ok := c.byID[id]
	if !ok {
		return time.Time{}, false, fmt.Errorf("post %d not found", id)
	}
	var latest time.Time
	for _, comment := range p.Comments {
		if comment.Approved && comment.Date.After(latest) {
			latest = comment.Date
		}
	}
	return latest, !latest.IsZero(), nil
}

// filter returns one page of the posts matching keep.
func (c *content) filter(page int, keep func(*Post) bool) []*Post {
	var matched []*Post
	for i := range c.posts {
		if keep(&c.posts[i]) {
			matched = append(matched, &c.posts[i])
		}
	}
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end]
}

func (c *content) ofType(postType string, page int) []*Post {
	return c.filter(page, func(p *Post) bool { return p.Type == postType })
}

func (c *content) search(term string, page int) []*Post {
	term = strings.ToLower(term)
	return c.filter(page, func(p *Post) bool {
		return p.Password == "" &&
			(strings.Contains(strings.ToLower(p.Title), term) || strings.Contains(strings.ToLower(p.Body), term))
	})
}

func (p *Post) approvedComments() int {
	n := 0
	for _, comment := range p.Comments {
		if comment.Approved {
			n++
		}
	}
	return n
}

func (p *Post) resource() *responsefields.Resource {
	return &responsefields.Resource{
		ID:           p.ID,
		Type:         p.Type,
		GUID:         p.GUID,
		Created:      p.Created,
		Modified:     p.Modified,
		CommentCount: p.approvedComments(),
	}
}

// first returns the resource of the first post in a result set, if any.
func first(posts []*Post) *responsefields.Resource {
	if len(posts) == 0 {
		return nil
	}
	return posts[0].resource()
}
