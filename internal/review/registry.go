package review

import (
	"context"
	"fmt"

	"reviewdesk/internal/auditapi"
)

// ReplyPageSize is the number of replies loaded with a post's detail.
const ReplyPageSize = 100

// Item is one queue row. Every row type exposes exactly one identifier.
type Item interface {
	ItemID() int64
}

// Backend is the subset of the audit API the queue consumes.
type Backend interface {
	PendingSongs(ctx context.Context, pageNum, pageSize int) (*auditapi.Page[auditapi.SongItem], error)
	PendingPosts(ctx context.Context, pageNum, pageSize int) (*auditapi.Page[auditapi.PostItem], error)
	PendingReplies(ctx context.Context, pageNum, pageSize int) (*auditapi.Page[auditapi.ReplyItem], error)

	ApproveSong(ctx context.Context, id int64) error
	RejectSong(ctx context.Context, id int64, reason *string) error
	ApprovePost(ctx context.Context, id int64) error
	RejectPost(ctx context.Context, id int64, reason *string) error
	ApproveReply(ctx context.Context, id int64) error
	RejectReply(ctx context.Context, id int64, reason *string) error

	SongDetail(ctx context.Context, id int64) (*auditapi.SongDetail, error)
	PostDetail(ctx context.Context, id int64) (*auditapi.PostDetail, error)
	PostReplies(ctx context.Context, postID int64, pageNum, pageSize int) (*auditapi.Page[auditapi.ReplyItem], error)
}

// Binding is the set of operations bound to one category.
type Binding struct {
	Category Category
	// Columns are the row fields a table view shows for the category.
	Columns []string
	// Threaded categories load the post's replies alongside the detail.
	Threaded bool

	// Identity returns the row's id; ok is false for a row of another category.
	Identity func(row Item) (id int64, ok bool)
	// PrimaryID returns the id Detail is called with.
	PrimaryID func(row Item) (id int64, ok bool)

	List    func(ctx context.Context, pageNum, pageSize int) ([]Item, int64, error)
	Approve func(ctx context.Context, id int64) error
	Reject  func(ctx context.Context, id int64, reason *string) error
	Detail  func(ctx context.Context, id int64) (interface{}, error)
}

// Registry maps every category to its Binding.
type Registry struct {
	bindings map[Category]Binding
	replies  func(ctx context.Context, postID int64, pageNum, pageSize int) ([]auditapi.ReplyItem, error)
}

// NewRegistry binds every category to backend.
func NewRegistry(backend Backend) *Registry {
	return &Registry{
		bindings: map[Category]Binding{
			CategorySong: {
				Category:  CategorySong,
				Columns:   []string{"songId", "songName", "style", "creatorName", "createTime"},
				Identity:  identityOf[auditapi.SongItem](),
				PrimaryID: identityOf[auditapi.SongItem](),
				List:      listOf(backend.PendingSongs),
				Approve:   backend.ApproveSong,
				Reject:    backend.RejectSong,
				Detail: func(ctx context.Context, id int64) (interface{}, error) {
					song, err := backend.SongDetail(ctx, id)
					if err != nil || song == nil {
						return nil, err
					}
					return song, nil
				},
			},
			CategoryPost: {
				Category:  CategoryPost,
				Columns:   []string{"userAvatar", "username", "postId", "title", "type", "createTime"},
				Threaded:  true,
				Identity:  identityOf[auditapi.PostItem](),
				PrimaryID: identityOf[auditapi.PostItem](),
				List:      listOf(backend.PendingPosts),
				Approve:   backend.ApprovePost,
				Reject:    backend.RejectPost,
				Detail:    postDetail(backend),
			},
			CategoryReply: {
				Category: CategoryReply,
				Columns:  []string{"userAvatar", "username", "replyId", "postId", "content", "createTime"},
				Threaded: true,
				Identity: identityOf[auditapi.ReplyItem](),
				PrimaryID: func(row Item) (int64, bool) {
					reply, ok := row.(auditapi.ReplyItem)
					return reply.PostID, ok
				},
				List:    listOf(backend.PendingReplies),
				Approve: backend.ApproveReply,
				Reject:  backend.RejectReply,
				Detail:  postDetail(backend),
			},
		},
		replies: func(ctx context.Context, postID int64, pageNum, pageSize int) ([]auditapi.ReplyItem, error) {
			page, err := backend.PostReplies(ctx, postID, pageNum, pageSize)
			if err != nil || page == nil {
				return nil, err
			}
			return page.Items, nil
		},
	}
}

// Binding returns the operations for c. Every Category constant is bound;
// any other value is a programming error and panics.
func (r *Registry) Binding(c Category) Binding {
	b, ok := r.bindings[c]
	if !ok {
		panic(fmt.Sprintf("review: no binding for %s", c))
	}
	return b
}

// Replies lists the replies of a post.
func (r *Registry) Replies(ctx context.Context, postID int64, pageNum, pageSize int) ([]auditapi.ReplyItem, error) {
	return r.replies(ctx, postID, pageNum, pageSize)
}

func identityOf[T Item]() func(Item) (int64, bool) {
	return func(row Item) (int64, bool) {
		typed, ok := row.(T)
		if !ok {
			return 0, false
		}
		return typed.ItemID(), true
	}
}

func listOf[T Item](fetch func(context.Context, int, int) (*auditapi.Page[T], error)) func(context.Context, int, int) ([]Item, int64, error) {
	return func(ctx context.Context, pageNum, pageSize int) ([]Item, int64, error) {
		page, err := fetch(ctx, pageNum, pageSize)
		if err != nil {
			return nil, 0, err
		}
		if page == nil {
			return nil, 0, nil
		}
		items := make([]Item, 0, len(page.Items))
		for _, row := range page.Items {
			items = append(items, row)
		}
		return items, page.Total, nil
	}
}

func postDetail(backend Backend) func(context.Context, int64) (interface{}, error) {
	return func(ctx context.Context, id int64) (interface{}, error) {
		post, err := backend.PostDetail(ctx, id)
		if err != nil || post == nil {
			return nil, err
		}
		return post, nil
	}
}
