package controllers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkraev/inkwell/models"
	"github.com/mkraev/inkwell/utils"
)

type listingData struct {
	Items      []models.Post    `json:"items"`
	Pagination utils.Pagination `json:"pagination"`
}

func decodeListing(t *testing.T, body []byte) listingData {
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	var data listingData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func TestCreatePostRedirectsToProfile(t *testing.T) {
	r, db, _ := setupServer(t)
	token := register(t, r, "alice")

	form := url.Values{}
	form.Set("text", "my first post")
	w := postForm(r, "/create/", form, token)

	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "/profile/alice/", w.Header().Get("Location"))

	alice := userByName(t, db, "alice")
	var post models.Post
	require.NoError(t, db.Where("author_id = ?", alice.ID).First(&post).Error)
	assert.Equal(t, "my first post", post.Text)
	assert.Nil(t, post.GroupID)
}

func TestCreatePostValidationFailurePersistsNothing(t *testing.T) {
	r, db, _ := setupServer(t)
	token := register(t, r, "alice")

	form := url.Values{}
	form.Set("text", "   ")
	w := postForm(r, "/create/", form, token)

	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	var data struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Contains(t, data.Fields, "text")

	var count int64
	require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestCreatePostRejectsUnknownGroup(t *testing.T) {
	r, db, _ := setupServer(t)
	token := register(t, r, "alice")

	form := url.Values{}
	form.Set("text", "grouped post")
	form.Set("group", "12345")
	w := postForm(r, "/create/", form, token)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestCreatePostRequiresLogin(t *testing.T) {
	r, _, _ := setupServer(t)

	form := url.Values{}
	form.Set("text", "anonymous post")
	w := postForm(r, "/create/", form, "")

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/login/?next="+url.QueryEscape("/create/"), w.Header().Get("Location"))
}

func TestEditByNonAuthorRedirectsSilently(t *testing.T) {
	r, db, _ := setupServer(t)
	register(t, r, "alice")
	bobToken := register(t, r, "bob")

	alice := userByName(t, db, "alice")
	post := seedPost(t, db, alice.ID, "original text", nil, time.Now())

	form := url.Values{}
	form.Set("text", "hijacked")
	w := postForm(r, fmt.Sprintf("/posts/%d/edit/", post.ID), form, bobToken)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), w.Header().Get("Location"))

	var unchanged models.Post
	require.NoError(t, db.First(&unchanged, post.ID).Error)
	assert.Equal(t, "original text", unchanged.Text)
	assert.Equal(t, alice.ID, unchanged.AuthorID)
}

func TestEditByAuthorChangesOnlyContent(t *testing.T) {
	r, db, _ := setupServer(t)
	token := register(t, r, "alice")

	alice := userByName(t, db, "alice")
	group := models.Group{Title: "Go", Slug: "go"}
	require.NoError(t, db.Create(&group).Error)
	post := seedPost(t, db, alice.ID, "original text", nil, time.Now().Add(-time.Hour))

	var before models.Post
	require.NoError(t, db.First(&before, post.ID).Error)

	form := url.Values{}
	form.Set("text", "edited text")
	form.Set("group", fmt.Sprintf("%d", group.ID))
	w := postForm(r, fmt.Sprintf("/posts/%d/edit/", post.ID), form, token)

	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), w.Header().Get("Location"))

	var after models.Post
	require.NoError(t, db.First(&after, post.ID).Error)
	assert.Equal(t, "edited text", after.Text)
	require.NotNil(t, after.GroupID)
	assert.Equal(t, group.ID, *after.GroupID)
	assert.Equal(t, before.AuthorID, after.AuthorID)
	assert.True(t, before.CreatedAt.Equal(after.CreatedAt))
}

func TestAddCommentAndSwallowedEmptyText(t *testing.T) {
	r, db, _ := setupServer(t)
	token := register(t, r, "alice")

	alice := userByName(t, db, "alice")
	post := seedPost(t, db, alice.ID, "a post", nil, time.Now())
	detail := fmt.Sprintf("/posts/%d/", post.ID)

	form := url.Values{}
	form.Set("text", "nice one")
	w := postForm(r, detail+"comment/", form, token)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detail, w.Header().Get("Location"))

	// Empty text redirects the same way but stores nothing.
	empty := url.Values{}
	empty.Set("text", "   ")
	w = postForm(r, detail+"comment/", empty, token)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, detail, w.Header().Get("Location"))

	var count int64
	require.NoError(t, db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIndexPaginatesTenPerPage(t *testing.T) {
	r, db, _ := setupServer(t)
	register(t, r, "alice")
	alice := userByName(t, db, "alice")

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 13; i++ {
		seedPost(t, db, alice.ID, fmt.Sprintf("post %02d", i), nil, base.Add(time.Duration(i)*time.Minute))
	}

	w := get(r, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	page1 := decodeListing(t, w.Body.Bytes())
	require.Len(t, page1.Items, 10)
	assert.Equal(t, "post 12", page1.Items[0].Text)
	assert.Equal(t, int64(13), page1.Pagination.Total)
	assert.Equal(t, 2, page1.Pagination.TotalPages)
	assert.True(t, page1.Pagination.HasNext)
}

func TestIndexServesCachedBodyUntilCleared(t *testing.T) {
	r, db, cache := setupServer(t)
	register(t, r, "alice")
	alice := userByName(t, db, "alice")
	seedPost(t, db, alice.ID, "first post", nil, time.Now())

	w1 := get(r, "/", "")
	require.Equal(t, http.StatusOK, w1.Code)

	// A write between reads is invisible until the cache window passes.
	seedPost(t, db, alice.ID, "second post", nil, time.Now())
	w2 := get(r, "/", "")
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, w1.Body.Bytes(), w2.Body.Bytes())
	assert.NotContains(t, w2.Body.String(), "second post")

	cache.Clear()
	w3 := get(r, "/", "")
	require.Equal(t, http.StatusOK, w3.Code)
	assert.Contains(t, w3.Body.String(), "second post")
}

func TestGroupListingUnknownSlugIs404(t *testing.T) {
	r, _, _ := setupServer(t)
	w := get(r, "/group/nope/", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGroupListingShowsOnlyGroupPosts(t *testing.T) {
	r, db, _ := setupServer(t)
	register(t, r, "alice")
	alice := userByName(t, db, "alice")

	group := models.Group{Title: "Go", Slug: "go"}
	require.NoError(t, db.Create(&group).Error)
	seedPost(t, db, alice.ID, "in group", &group.ID, time.Now())
	seedPost(t, db, alice.ID, "outside", nil, time.Now())

	w := get(r, "/group/go/", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeListing(t, w.Body.Bytes())
	require.Len(t, data.Items, 1)
	assert.Equal(t, "in group", data.Items[0].Text)
}

func TestProfileReportsFollowingFlag(t *testing.T) {
	r, db, _ := setupServer(t)
	aliceToken := register(t, r, "alice")
	register(t, r, "bob")
	alice := userByName(t, db, "alice")
	bob := userByName(t, db, "bob")
	require.NoError(t, db.Create(&models.Follow{UserID: alice.ID, AuthorID: bob.ID}).Error)

	var profile struct {
		Following bool `json:"following"`
	}

	w := get(r, "/profile/bob/", aliceToken)
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.True(t, profile.Following)

	// Anonymous viewers always see false.
	w = get(r, "/profile/bob/", "")
	require.Equal(t, http.StatusOK, w.Code)
	env = decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.False(t, profile.Following)
}

func TestProfileUnknownUserIs404(t *testing.T) {
	r, _, _ := setupServer(t)
	w := get(r, "/profile/ghost/", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDetailUnknownPostIs404(t *testing.T) {
	r, _, _ := setupServer(t)

	w := get(r, "/posts/9999/", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(r, "/posts/not-a-number/", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDetailIncludesCommentsNewestFirst(t *testing.T) {
	r, db, _ := setupServer(t)
	register(t, r, "alice")
	alice := userByName(t, db, "alice")
	post := seedPost(t, db, alice.ID, "with comments", nil, time.Now())

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 2; i++ {
		c := models.Comment{PostID: post.ID, AuthorID: alice.ID, Text: fmt.Sprintf("comment %d", i), CreatedAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, db.Create(&c).Error)
	}

	w := get(r, fmt.Sprintf("/posts/%d/", post.ID), "")
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Post     models.Post      `json:"post"`
		Comments []models.Comment `json:"comments"`
	}
	env := decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, post.ID, data.Post.ID)
	require.Len(t, data.Comments, 2)
	assert.Equal(t, "comment 1", data.Comments[0].Text)
	assert.Equal(t, "alice", data.Comments[0].Author.Username)
}
