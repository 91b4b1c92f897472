package auditapi

import (
	"context"
	"net/http"
	"strconv"
)

// PendingSongs lists songs awaiting review.
func (c *Client) PendingSongs(ctx context.Context, pageNum, pageSize int) (*Page[SongItem], error) {
	return getPage[SongItem](ctx, c, http.MethodGet, c.endpoints.PendingSongs, pageParams{pageNum, pageSize}, nil)
}

// PendingPosts lists forum posts awaiting review.
func (c *Client) PendingPosts(ctx context.Context, pageNum, pageSize int) (*Page[PostItem], error) {
	return getPage[PostItem](ctx, c, http.MethodGet, c.endpoints.PendingPosts, pageParams{pageNum, pageSize}, nil)
}

// PendingReplies lists forum replies awaiting review.
func (c *Client) PendingReplies(ctx context.Context, pageNum, pageSize int) (*Page[ReplyItem], error) {
	return getPage[ReplyItem](ctx, c, http.MethodGet, c.endpoints.PendingReplies, pageParams{pageNum, pageSize}, nil)
}

func (c *Client) ApproveSong(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPatch, expand(c.endpoints.ApproveSong, id), nil, nil, nil)
}

// RejectSong rejects a song. A nil reason omits the parameter entirely;
// a pointer to "" sends an explicit empty reason.
func (c *Client) RejectSong(ctx context.Context, id int64, reason *string) error {
	return c.do(ctx, http.MethodPatch, expand(c.endpoints.RejectSong, id), rejectParams{reason}, nil, nil)
}

func (c *Client) ApprovePost(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPatch, expand(c.endpoints.ApprovePost, id), nil, nil, nil)
}

func (c *Client) RejectPost(ctx context.Context, id int64, reason *string) error {
	return c.do(ctx, http.MethodPatch, expand(c.endpoints.RejectPost, id), rejectParams{reason}, nil, nil)
}

func (c *Client) ApproveReply(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPatch, expand(c.endpoints.ApproveReply, id), nil, nil, nil)
}

func (c *Client) RejectReply(ctx context.Context, id int64, reason *string) error {
	return c.do(ctx, http.MethodPatch, expand(c.endpoints.RejectReply, id), rejectParams{reason}, nil, nil)
}

// SongDetail fetches one song. Concurrent requests for the same id share
// a single call.
func (c *Client) SongDetail(ctx context.Context, id int64) (*SongDetail, error) {
	v, err := c.shared(ctx, "song:"+strconv.FormatInt(id, 10), func(ctx context.Context) (interface{}, error) {
		var song SongDetail
		if err := c.do(ctx, http.MethodGet, expand(c.endpoints.SongDetail, id), nil, nil, &song); err != nil {
			return nil, err
		}
		return &song, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SongDetail), nil
}

// PostDetail fetches one forum post. Concurrent requests for the same id
// share a single call.
func (c *Client) PostDetail(ctx context.Context, id int64) (*PostDetail, error) {
	v, err := c.shared(ctx, "post:"+strconv.FormatInt(id, 10), func(ctx context.Context) (interface{}, error) {
		var post PostDetail
		if err := c.do(ctx, http.MethodGet, expand(c.endpoints.PostDetail, id), nil, nil, &post); err != nil {
			return nil, err
		}
		return &post, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*PostDetail), nil
}

// shared runs fn once for all concurrent callers of key. fn is not
// cancelled with any one caller; each caller stops waiting when its own
// ctx is done.
func (c *Client) shared(ctx context.Context, key string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	ch := c.detailGroup.DoChan(key, func() (interface{}, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PostReplies lists the replies of a post.
func (c *Client) PostReplies(ctx context.Context, postID int64, pageNum, pageSize int) (*Page[ReplyItem], error) {
	body := repliesRequest{PostID: postID, PageNum: pageNum, PageSize: pageSize}
	return getPage[ReplyItem](ctx, c, http.MethodPost, c.endpoints.PostReplies, nil, body)
}
