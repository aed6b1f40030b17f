package repository

import (
	"context"
	"regexp"
	"testing"

	"quill/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	userID := uint(1)
	comment := &models.Comment{Content: "Nice post!", PostID: 1, UserID: &userID}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "comments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(ctx, comment)
	assert.NoError(t, err)
	assert.Equal(t, uint(1), comment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_GetByIDForPost(t *testing.T) {
	db := newTestDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	author := createUser(t, db, "alice")
	five := createPost(t, db, author, "five")
	seven := createPost(t, db, author, "seven")

	onSeven := &models.Comment{Content: "on seven", PostID: seven.ID, UserID: &author.ID}
	require.NoError(t, repo.Create(ctx, onSeven))

	got, err := repo.GetByIDForPost(ctx, onSeven.ID, seven.ID)
	require.NoError(t, err)
	assert.Equal(t, "on seven", got.Content)

	_, err = repo.GetByIDForPost(ctx, onSeven.ID, five.ID)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}

func TestCommentRepository_ListByPost(t *testing.T) {
	db := newTestDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	author := createUser(t, db, "alice")
	post := createPost(t, db, author, "hello")
	root := &models.Comment{Content: "root", PostID: post.ID, UserID: &author.ID}
	require.NoError(t, repo.Create(ctx, root))
	reply := &models.Comment{Content: "reply", PostID: post.ID, UserID: &author.ID, ParentID: &root.ID}
	require.NoError(t, repo.Create(ctx, reply))

	comments, err := repo.ListByPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "root", comments[0].Content)
	require.NotNil(t, comments[1].ParentID)
	assert.Equal(t, root.ID, *comments[1].ParentID)
	require.NotNil(t, comments[0].User)
	assert.Equal(t, "alice", comments[0].User.Username)

	p, err := NewPostRepository(db).GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.CommentsCount)
}
