package controllers_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkraev/inkwell/models"
)

func TestStatsCountsEntities(t *testing.T) {
	r, db, _ := setupServer(t)
	register(t, r, "alice")
	alice := userByName(t, db, "alice")

	post := seedPost(t, db, alice.ID, "a post", nil, time.Now())
	require.NoError(t, db.Create(&models.Comment{PostID: post.ID, AuthorID: alice.ID, Text: "c"}).Error)
	require.NoError(t, db.Create(&models.Group{Title: "Go", Slug: "go"}).Error)

	w := get(r, "/stats/", "")
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		UserCount    int64 `json:"user_count"`
		PostCount    int64 `json:"post_count"`
		CommentCount int64 `json:"comment_count"`
		GroupCount   int64 `json:"group_count"`
		TodayViews   int64 `json:"today_views"`
	}
	env := decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, int64(1), data.UserCount)
	assert.Equal(t, int64(1), data.PostCount)
	assert.Equal(t, int64(1), data.CommentCount)
	assert.Equal(t, int64(1), data.GroupCount)
	assert.GreaterOrEqual(t, data.TodayViews, int64(0))
}
