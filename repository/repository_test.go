package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mkraev/inkwell/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.Post{},
		&models.Comment{},
		&models.Follow{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) models.User {
	user := models.User{Username: username, PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createPost(t *testing.T, db *gorm.DB, author models.User, text string, groupID *uint) models.Post {
	post := models.Post{AuthorID: author.ID, GroupID: groupID, Text: text}
	require.NoError(t, db.Create(&post).Error)
	return post
}

func TestFollowIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	follows := NewFollowRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	require.NoError(t, follows.Follow(ctx, alice.ID, bob.ID))
	require.NoError(t, follows.Follow(ctx, alice.ID, bob.ID))

	var count int64
	require.NoError(t, db.Model(&models.Follow{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	exists, err := follows.Exists(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUnfollowMissingRelationshipIsNoop(t *testing.T) {
	db := setupTestDB(t)
	follows := NewFollowRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	require.NoError(t, follows.Follow(ctx, alice.ID, bob.ID))

	// bob never followed alice
	require.NoError(t, follows.Unfollow(ctx, bob.ID, alice.ID))

	var count int64
	require.NoError(t, db.Model(&models.Follow{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGroupDeleteClearsPostReference(t *testing.T) {
	db := setupTestDB(t)
	groups := NewGroupRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	group := models.Group{Title: "Go", Slug: "go", Description: "all things Go"}
	require.NoError(t, groups.Create(ctx, &group))
	post := createPost(t, db, alice, "in a group", &group.ID)

	require.NoError(t, groups.Delete(ctx, group.ID))

	var survived models.Post
	require.NoError(t, db.First(&survived, post.ID).Error)
	assert.Nil(t, survived.GroupID)

	_, err := groups.GetBySlug(ctx, "go")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPostDeleteRemovesComments(t *testing.T) {
	db := setupTestDB(t)
	posts := NewPostRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	post := createPost(t, db, alice, "hello", nil)
	other := createPost(t, db, alice, "untouched", nil)

	require.NoError(t, db.Create(&models.Comment{PostID: post.ID, AuthorID: bob.ID, Text: "first"}).Error)
	require.NoError(t, db.Create(&models.Comment{PostID: post.ID, AuthorID: alice.ID, Text: "second"}).Error)
	require.NoError(t, db.Create(&models.Comment{PostID: other.ID, AuthorID: bob.ID, Text: "elsewhere"}).Error)

	require.NoError(t, posts.Delete(ctx, post.ID))

	var count int64
	require.NoError(t, db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	require.NoError(t, db.Model(&models.Comment{}).Where("post_id = ?", other.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUserDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	alicePost := createPost(t, db, alice, "by alice", nil)
	bobPost := createPost(t, db, bob, "by bob", nil)

	// alice comments on bob's post; bob comments on alice's
	require.NoError(t, db.Create(&models.Comment{PostID: bobPost.ID, AuthorID: alice.ID, Text: "nice"}).Error)
	require.NoError(t, db.Create(&models.Comment{PostID: alicePost.ID, AuthorID: bob.ID, Text: "thanks"}).Error)
	require.NoError(t, db.Create(&models.Follow{UserID: alice.ID, AuthorID: bob.ID}).Error)
	require.NoError(t, db.Create(&models.Follow{UserID: bob.ID, AuthorID: alice.ID}).Error)

	require.NoError(t, users.Delete(ctx, alice.ID))

	var count int64
	require.NoError(t, db.Model(&models.Post{}).Where("author_id = ?", alice.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count, "alice's posts removed")

	// comments on alice's posts and alice's own comments are gone
	require.NoError(t, db.Model(&models.Comment{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	require.NoError(t, db.Model(&models.Follow{}).Count(&count).Error)
	assert.Equal(t, int64(0), count, "follows in both directions removed")

	// bob's post survives
	var survived models.Post
	require.NoError(t, db.First(&survived, bobPost.ID).Error)
}

func TestFeedScopeReturnsFollowedAuthorsNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	posts := NewPostRepository(db)
	follows := NewFollowRepository(db)
	ctx := context.Background()

	viewer := createUser(t, db, "viewer")
	followed := createUser(t, db, "followed")
	stranger := createUser(t, db, "stranger")
	require.NoError(t, follows.Follow(ctx, viewer.ID, followed.ID))

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		post := models.Post{AuthorID: followed.ID, Text: fmt.Sprintf("followed %d", i), CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, db.Create(&post).Error)
	}
	createPost(t, db, stranger, "not in feed", nil)

	scope := Scope{FollowedBy: &viewer.ID}
	total, err := posts.Count(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	feed, err := posts.List(ctx, scope, 10, 0)
	require.NoError(t, err)
	require.Len(t, feed, 3)
	assert.Equal(t, "followed 2", feed[0].Text)
	assert.Equal(t, "followed 0", feed[2].Text)
	for _, p := range feed {
		assert.Equal(t, followed.ID, p.AuthorID)
	}
}

func TestUpdateContentKeepsAuthorAndCreationTime(t *testing.T) {
	db := setupTestDB(t)
	posts := NewPostRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	group := models.Group{Title: "Go", Slug: "go"}
	require.NoError(t, db.Create(&group).Error)
	post := createPost(t, db, alice, "original", nil)

	var before models.Post
	require.NoError(t, db.First(&before, post.ID).Error)

	image := "/static/uploads/x.png"
	require.NoError(t, posts.UpdateContent(ctx, post.ID, "edited", &group.ID, &image))

	var after models.Post
	require.NoError(t, db.First(&after, post.ID).Error)
	assert.Equal(t, "edited", after.Text)
	require.NotNil(t, after.GroupID)
	assert.Equal(t, group.ID, *after.GroupID)
	assert.Equal(t, image, after.Image)
	assert.Equal(t, before.AuthorID, after.AuthorID)
	assert.True(t, before.CreatedAt.Equal(after.CreatedAt))
}

func TestListScopesByGroupAndAuthor(t *testing.T) {
	db := setupTestDB(t)
	posts := NewPostRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	group := models.Group{Title: "Go", Slug: "go"}
	require.NoError(t, db.Create(&group).Error)

	createPost(t, db, alice, "grouped", &group.ID)
	createPost(t, db, alice, "ungrouped", nil)
	createPost(t, db, bob, "bob's", nil)

	byGroup, err := posts.List(ctx, Scope{GroupID: &group.ID}, 10, 0)
	require.NoError(t, err)
	require.Len(t, byGroup, 1)
	assert.Equal(t, "grouped", byGroup[0].Text)
	require.NotNil(t, byGroup[0].Group)
	assert.Equal(t, "go", byGroup[0].Group.Slug)

	byAuthor, err := posts.List(ctx, Scope{AuthorID: &alice.ID}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, byAuthor, 2)
	for _, p := range byAuthor {
		assert.Equal(t, "alice", p.Author.Username)
	}
}
