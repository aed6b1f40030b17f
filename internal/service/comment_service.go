package service

import (
	"context"

	"quill/internal/cache"
	"quill/internal/featureflags"
	"quill/internal/forms"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// Comment placements recorded by the comments_created metric.
const (
	PlacementTopLevel      = "top_level"
	PlacementReply         = "reply"
	PlacementOrphanedReply = "orphaned_reply"
)

// CommentNode is one comment in a post's reply tree. Depth is 0 for
// top-level comments.
type CommentNode struct {
	Comment  *models.Comment `json:"comment"`
	Depth    int             `json:"depth"`
	Children []*CommentNode  `json:"children,omitempty"`
}

type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	flags    *featureflags.Manager
}

func NewCommentService(comments repository.CommentRepository, posts repository.PostRepository, flags *featureflags.Manager) *CommentService {
	return &CommentService{comments: comments, posts: posts, flags: flags}
}

// Threaded reports whether userID may reply to comments.
func (s *CommentService) Threaded(userID uint) bool {
	return s.flags.Enabled(featureflags.ThreadedComments, userID)
}

// NewCommentForm binds in to a comment form for postID. Without threaded
// comments the parent is ignored.
func (s *CommentService) NewCommentForm(in forms.CommentInput, postID, userID uint) *forms.CommentForm {
	if !s.Threaded(userID) {
		in.ParentID = ""
	}
	return forms.NewCommentForm(in, postID, s.comments)
}

// Create stores the comment built by form under authorID. The post must
// exist; a parent that is not on the same post is dropped.
func (s *CommentService) Create(ctx context.Context, form *forms.CommentForm, authorID uint) (comment *models.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "service", "CreateComment",
		attribute.Int64("comment.post_id", int64(form.PostID())),
		attribute.Int64("comment.author_id", int64(authorID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if form.PostID() != 0 {
		if _, err = s.posts.GetByID(ctx, form.PostID()); err != nil {
			return nil, err
		}
	}

	comment, err = form.Save(ctx, false)
	if err != nil {
		if isFormError(err) {
			observability.RecordForm("comment", false)
		}
		return nil, err
	}
	observability.RecordForm("comment", true)
	if authorID != 0 {
		comment.UserID = &authorID
	}

	if err = s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	placement := PlacementTopLevel
	switch {
	case comment.ParentID != nil:
		placement = PlacementReply
	case form.RequestedParent() != 0:
		placement = PlacementOrphanedReply
	}
	observability.CommentsCreated.WithLabelValues(placement).Inc()
	cache.InvalidatePost(ctx, comment.PostID)

	return comment, nil
}

// Tree returns the comments of postID as a forest ordered by creation time.
func (s *CommentService) Tree(ctx context.Context, postID uint) ([]*CommentNode, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	comments, err := cache.Aside(ctx, cache.PostCommentsKey(postID), cache.PostTTL, func(ctx context.Context) ([]*models.Comment, error) {
		return s.comments.ListByPost(ctx, postID)
	})
	if err != nil {
		return nil, err
	}
	return BuildCommentTree(comments), nil
}

// BuildCommentTree links comments to their parents. Input order is kept
// among siblings. A comment whose parent is missing from the list (for
// example a deleted one) is promoted to the top level.
func BuildCommentTree(comments []*models.Comment) []*CommentNode {
	nodes := make(map[uint]*CommentNode, len(comments))
	for _, c := range comments {
		nodes[c.ID] = &CommentNode{Comment: c}
	}

	var roots []*CommentNode
	for _, c := range comments {
		node := nodes[c.ID]
		if c.ParentID == nil || *c.ParentID == c.ID {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*c.ParentID]
		if !ok {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	setDepth(roots, 0, make(map[uint]bool, len(comments)))
	return roots
}

func setDepth(nodes []*CommentNode, depth int, seen map[uint]bool) {
	for _, n := range nodes {
		if seen[n.Comment.ID] {
			continue
		}
		seen[n.Comment.ID] = true
		n.Depth = depth
		setDepth(n.Children, depth+1, seen)
	}
}

// Flatten lists a forest depth first, parents before their replies. The
// templates render this list and indent each entry by its depth.
func Flatten(nodes []*CommentNode) []*CommentNode {
	var out []*CommentNode
	var walk func([]*CommentNode)
	walk = func(ns []*CommentNode) {
		for _, n := range ns {
			out = append(out, n)
			walk(n.Children)
		}
	}
	walk(nodes)
	return out
}
