package service

import (
	"context"
	"testing"

	"quill/internal/featureflags"
	"quill/internal/forms"
	"quill/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint) *uint { return &v }

func TestBuildCommentTree(t *testing.T) {
	t.Parallel()

	comments := []*models.Comment{
		{ID: 1, PostID: 7},
		{ID: 2, PostID: 7, ParentID: uintPtr(1)},
		{ID: 3, PostID: 7},
		{ID: 4, PostID: 7, ParentID: uintPtr(2)},
		{ID: 5, PostID: 7, ParentID: uintPtr(99)},
		{ID: 6, PostID: 7, ParentID: uintPtr(1)},
	}

	roots := BuildCommentTree(comments)
	require.Len(t, roots, 3)
	assert.Equal(t, []uint{1, 3, 5}, []uint{roots[0].Comment.ID, roots[1].Comment.ID, roots[2].Comment.ID})
	require.Len(t, roots[0].Children, 2)
	assert.Equal(t, uint(2), roots[0].Children[0].Comment.ID)
	assert.Equal(t, uint(6), roots[0].Children[1].Comment.ID)

	flat := Flatten(roots)
	var ids []uint
	var depths []int
	for _, n := range flat {
		ids = append(ids, n.Comment.ID)
		depths = append(depths, n.Depth)
	}
	assert.Equal(t, []uint{1, 2, 4, 6, 3, 5}, ids)
	assert.Equal(t, []int{0, 1, 2, 1, 0, 0}, depths)
}

func TestBuildCommentTree_Empty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, BuildCommentTree(nil))
	assert.Empty(t, Flatten(nil))
}

func TestCommentService_Create(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	threaded := featureflags.NewManager("threaded_comments=on")

	t.Run("reply links parent and author", func(t *testing.T) {
		t.Parallel()
		var created *models.Comment
		repo := noopCommentRepo()
		repo.createFn = func(_ context.Context, c *models.Comment) error {
			created = c
			return nil
		}
		svc := NewCommentService(repo, noopPostRepo(), threaded)

		form := svc.NewCommentForm(forms.CommentInput{Content: "agreed", ParentID: "3"}, 7, 5)
		c, err := svc.Create(ctx, form, 5)
		require.NoError(t, err)
		require.Same(t, c, created)
		require.NotNil(t, c.ParentID)
		assert.Equal(t, uint(3), *c.ParentID)
		require.NotNil(t, c.UserID)
		assert.Equal(t, uint(5), *c.UserID)
		assert.Equal(t, uint(7), c.PostID)
	})

	t.Run("parent from another post becomes top-level", func(t *testing.T) {
		t.Parallel()
		repo := noopCommentRepo()
		repo.getByIDForPostFn = func(_ context.Context, id, _ uint) (*models.Comment, error) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		svc := NewCommentService(repo, noopPostRepo(), threaded)

		c, err := svc.Create(ctx, svc.NewCommentForm(forms.CommentInput{Content: "hi", ParentID: "42"}, 7, 5), 5)
		require.NoError(t, err)
		assert.True(t, c.IsTopLevel())
	})

	t.Run("missing post is not found", func(t *testing.T) {
		t.Parallel()
		posts := noopPostRepo()
		posts.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
			return nil, models.NewNotFoundError("Post", id)
		}
		repo := noopCommentRepo()
		repo.createFn = func(_ context.Context, _ *models.Comment) error {
			t.Fatal("create must not be called")
			return nil
		}
		svc := NewCommentService(repo, posts, threaded)

		_, err := svc.Create(ctx, svc.NewCommentForm(forms.CommentInput{Content: "hi"}, 99, 5), 5)
		assertAppErrorCode(t, err, models.CodeNotFound)
	})

	t.Run("zero post id is a usage error", func(t *testing.T) {
		t.Parallel()
		svc := NewCommentService(noopCommentRepo(), noopPostRepo(), threaded)
		_, err := svc.Create(ctx, svc.NewCommentForm(forms.CommentInput{Content: "hi"}, 0, 5), 5)
		assert.ErrorIs(t, err, forms.ErrPostIDRequired)
	})

	t.Run("empty content", func(t *testing.T) {
		t.Parallel()
		svc := NewCommentService(noopCommentRepo(), noopPostRepo(), threaded)
		_, err := svc.Create(ctx, svc.NewCommentForm(forms.CommentInput{Content: "   "}, 7, 5), 5)
		errs, ok := forms.AsErrors(err)
		require.True(t, ok)
		assert.True(t, errs.Has("content"))
	})

	t.Run("threading disabled ignores parent", func(t *testing.T) {
		t.Parallel()
		repo := noopCommentRepo()
		repo.getByIDForPostFn = func(_ context.Context, _, _ uint) (*models.Comment, error) {
			t.Fatal("parent lookup must not happen")
			return nil, nil
		}
		svc := NewCommentService(repo, noopPostRepo(), featureflags.NewManager("threaded_comments=off"))

		c, err := svc.Create(ctx, svc.NewCommentForm(forms.CommentInput{Content: "hi", ParentID: "3"}, 7, 5), 5)
		require.NoError(t, err)
		assert.True(t, c.IsTopLevel())
	})
}

func TestCommentService_Tree(t *testing.T) {
	t.Parallel()

	repo := noopCommentRepo()
	repo.listByPostFn = func(_ context.Context, postID uint) ([]*models.Comment, error) {
		return []*models.Comment{
			{ID: 1, PostID: postID},
			{ID: 2, PostID: postID, ParentID: uintPtr(1)},
		}, nil
	}
	svc := NewCommentService(repo, noopPostRepo(), nil)

	roots, err := svc.Tree(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	require.Len(t, roots[0].Children, 1)
	assert.Equal(t, 1, roots[0].Children[0].Depth)
	assert.False(t, svc.Threaded(1), "nil flag manager disables threading")
}
