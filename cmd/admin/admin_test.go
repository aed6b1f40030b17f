package main

import (
	"bytes"
	"context"
	"strconv"
	"testing"

	"quill/internal/forms"
	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/service"
	"quill/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminCommands(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	users := repository.NewUserRepository(db)
	auth := service.NewAuthService(users, "test-secret-key-12345678901234567890123456789012")

	var out bytes.Buffer
	err := createUser(ctx, &out, users, auth, forms.RegisterInput{
		Username: "editor", Email: "editor@example.com", Password1: "Sturdy!Passw0rd", Password2: "Sturdy!Passw0rd",
	}, false)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Created editor")

	t.Run("invalid form lists field errors", func(t *testing.T) {
		out.Reset()
		err := createUser(ctx, &out, users, auth, forms.RegisterInput{
			Username: "editor", Email: "other@example.com", Password1: "Sturdy!Passw0rd", Password2: "Sturdy!Passw0rd",
		}, false)
		require.Error(t, err)
		assert.Contains(t, out.String(), "username: "+forms.MsgUsernameTaken)
	})

	t.Run("promote by username then list", func(t *testing.T) {
		out.Reset()
		require.NoError(t, setAdmin(ctx, &out, users, "editor", true))
		assert.Contains(t, out.String(), "Successfully promoted editor")

		out.Reset()
		require.NoError(t, setAdmin(ctx, &out, users, "editor", true))
		assert.Contains(t, out.String(), "already an admin")

		out.Reset()
		require.NoError(t, listAdmins(ctx, &out, users))
		assert.Contains(t, out.String(), "Username: editor")
	})

	t.Run("demote by id", func(t *testing.T) {
		var u models.User
		require.NoError(t, db.Where("username = ?", "editor").First(&u).Error)

		out.Reset()
		require.NoError(t, setAdmin(ctx, &out, users, strconv.FormatUint(uint64(u.ID), 10), false))
		assert.Contains(t, out.String(), "Successfully demoted editor")

		out.Reset()
		require.NoError(t, listAdmins(ctx, &out, users))
		assert.Contains(t, out.String(), "No admins found")
	})

	t.Run("unknown user", func(t *testing.T) {
		assert.EqualError(t, setAdmin(ctx, &out, users, "nobody", true), `user "nobody" not found`)
		assert.EqualError(t, setAdmin(ctx, &out, users, "999", true), `user "999" not found`)
	})
}
