package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkraev/inkwell/config"
	"github.com/mkraev/inkwell/models"
	"github.com/mkraev/inkwell/repository"
	"github.com/mkraev/inkwell/utils"
)

// PostController serves the listings (home, group, profile, detail) and the
// authorship gated mutations (create, edit, comment).
type PostController struct {
	posts    repository.PostRepository
	groups   repository.GroupRepository
	comments repository.CommentRepository
	follows  repository.FollowRepository
	users    repository.UserRepository
	cache    utils.Cache
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB, cache utils.Cache) *PostController {
	return &PostController{
		posts:    repository.NewPostRepository(db),
		groups:   repository.NewGroupRepository(db),
		comments: repository.NewCommentRepository(db),
		follows:  repository.NewFollowRepository(db),
		users:    repository.NewUserRepository(db),
		cache:    cache,
	}
}

// postForm carries the mutable post fields for create and edit. Group and
// image are optional.
type postForm struct {
	Text    string `form:"text" json:"text"`
	GroupID *uint  `form:"group" json:"group"`
	Image   string `form:"image" json:"image"`
}

// validate sanitizes the text and checks the form. A nil map means the form
// is valid; otherwise the map carries per-field messages.
func (p *PostController) validate(ctx *gin.Context, form *postForm) map[string]string {
	fields := map[string]string{}
	form.Text = strings.TrimSpace(utils.Sanitize(form.Text))
	if form.Text == "" {
		fields["text"] = "text is required"
	}
	if form.GroupID != nil {
		if _, err := p.groups.GetByID(ctx.Request.Context(), *form.GroupID); err != nil {
			fields["group"] = "unknown group"
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Index serves the home listing. The whole rendered body is cached under one
// fixed key for the configured window; writes do not invalidate it.
func (p *PostController) Index(ctx *gin.Context) {
	if b, ok := p.cache.Get(utils.IndexCacheKey); ok {
		ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
		return
	}

	payload, err := p.listing(ctx, repository.Scope{})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to list posts")
		return
	}

	body, err := json.Marshal(utils.JSONResponse{Code: 0, Message: "success", Data: payload})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to render posts")
		return
	}
	ttl := time.Duration(config.Get().IndexCacheTTLSeconds) * time.Second
	p.cache.Set(utils.IndexCacheKey, body, ttl)
	ctx.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// GroupList serves posts of one group identified by slug.
func (p *PostController) GroupList(ctx *gin.Context) {
	slug := ctx.Param("slug")
	group, err := p.groups.GetBySlug(ctx.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "group not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load group")
		return
	}

	payload, err := p.listing(ctx, repository.Scope{GroupID: &group.ID})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to list group posts")
		return
	}
	payload["group"] = group
	utils.Success(ctx, payload)
}

// Profile serves posts of one author plus the viewer's following flag.
func (p *PostController) Profile(ctx *gin.Context) {
	username := ctx.Param("username")
	author, err := p.users.GetByUsername(ctx.Request.Context(), username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40402, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to load user")
		return
	}

	payload, err := p.listing(ctx, repository.Scope{AuthorID: &author.ID})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to list user posts")
		return
	}

	// Anonymous viewers always report false.
	following := false
	if viewerID, ok := currentUserID(ctx); ok {
		following, _ = p.follows.Exists(ctx.Request.Context(), viewerID, author.ID)
	}
	payload["author"] = author
	payload["following"] = following
	utils.Success(ctx, payload)
}

// Detail serves a single post with its comments, newest first.
func (p *PostController) Detail(ctx *gin.Context) {
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}
	comments, err := p.comments.ListByPost(ctx.Request.Context(), post.ID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to load comments")
		return
	}
	utils.Success(ctx, gin.H{"post": post, "comments": comments})
}

// Create persists a new post authored by the actor and redirects to the
// actor's profile. Validation failure re-renders the form: nothing is
// persisted and the field errors are returned.
func (p *PostController) Create(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	var form postForm
	if err := ctx.ShouldBind(&form); err != nil {
		utils.ValidationError(ctx, 40020, map[string]string{"form": "invalid request payload"})
		return
	}
	if fields := p.validate(ctx, &form); fields != nil {
		utils.ValidationError(ctx, 40021, fields)
		return
	}

	post := models.Post{
		AuthorID: userID,
		GroupID:  form.GroupID,
		Text:     form.Text,
		Image:    form.Image,
	}
	if err := p.posts.Create(ctx.Request.Context(), &post); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to create post")
		return
	}

	ctx.Redirect(http.StatusFound, "/profile/"+currentUsername(ctx)+"/")
}

// Edit updates text, group and image of an existing post. Only the author
// may edit; anyone else is silently redirected to the post detail view with
// no error surfaced. Author and creation timestamp never change.
func (p *PostController) Edit(ctx *gin.Context) {
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}

	detailPath := fmt.Sprintf("/posts/%d/", post.ID)

	userID, _ := currentUserID(ctx)
	if post.AuthorID != userID {
		ctx.Redirect(http.StatusFound, detailPath)
		return
	}

	var form postForm
	if err := ctx.ShouldBind(&form); err != nil {
		utils.ValidationError(ctx, 40022, map[string]string{"form": "invalid request payload"})
		return
	}
	if fields := p.validate(ctx, &form); fields != nil {
		utils.ValidationError(ctx, 40023, fields)
		return
	}

	// An empty image field keeps the stored image.
	var image *string
	if form.Image != "" {
		image = &form.Image
	}
	if err := p.posts.UpdateContent(ctx.Request.Context(), post.ID, form.Text, form.GroupID, image); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to update post")
		return
	}

	ctx.Redirect(http.StatusFound, detailPath)
}

// AddComment attaches a comment to a post. Invalid text is swallowed: the
// handler redirects to the post detail view either way.
func (p *PostController) AddComment(ctx *gin.Context) {
	post, ok := p.loadPost(ctx)
	if !ok {
		return
	}

	detailPath := fmt.Sprintf("/posts/%d/", post.ID)

	userID, hasUser := currentUserID(ctx)
	if !hasUser {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	var form struct {
		Text string `form:"text" json:"text"`
	}
	_ = ctx.ShouldBind(&form)

	text := strings.TrimSpace(utils.Sanitize(form.Text))
	if text != "" {
		comment := models.Comment{
			PostID:   post.ID,
			AuthorID: userID,
			Text:     text,
		}
		if err := p.comments.Create(ctx.Request.Context(), &comment); err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to create comment")
			return
		}
	}

	ctx.Redirect(http.StatusFound, detailPath)
}

// UploadImage stores an uploaded image and returns its public URL, which the
// client then submits as a post's image reference.
func (p *PostController) UploadImage(ctx *gin.Context) {
	if _, ok := currentUserID(ctx); !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40112, "unauthorized")
		return
	}

	file, header, err := ctx.Request.FormFile("image")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "no file uploaded")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
	default:
		utils.Error(ctx, http.StatusBadRequest, 40031, "unsupported image type")
		return
	}

	maxSize := int64(config.Get().UploadMaxMB) << 20
	if header.Size > maxSize {
		utils.Error(ctx, http.StatusBadRequest, 40032, "file too large")
		return
	}

	now := time.Now()
	baseDir := filepath.Join(".", "static", "uploads", now.Format("2006"), now.Format("01"), now.Format("02"))
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to create upload directory")
		return
	}

	name := uuid.NewString() + ext
	dstPath := filepath.Join(baseDir, name)
	out, err := os.Create(dstPath)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to save file")
		return
	}
	defer out.Close()

	written, err := io.Copy(out, &io.LimitedReader{R: file, N: maxSize + 1})
	if err != nil || written > maxSize {
		_ = os.Remove(dstPath)
		utils.Error(ctx, http.StatusBadRequest, 40032, "file too large")
		return
	}

	url := fmt.Sprintf("/static/uploads/%s/%s/%s/%s", now.Format("2006"), now.Format("01"), now.Format("02"), name)
	utils.Success(ctx, gin.H{"url": url})
}

// listing builds the paginated payload for a scope, clamping the requested
// page to the available range.
func (p *PostController) listing(ctx *gin.Context, scope repository.Scope) (gin.H, error) {
	total, err := p.posts.Count(ctx.Request.Context(), scope)
	if err != nil {
		return nil, err
	}
	pg := utils.Paginate(ctx.Query("page"), total, utils.PostsPerPage)
	items, err := p.posts.List(ctx.Request.Context(), scope, pg.PageSize, pg.Offset())
	if err != nil {
		return nil, err
	}
	return gin.H{"items": items, "pagination": pg}, nil
}

// loadPost resolves the :id path parameter. It answers 404 itself and
// returns false when the post cannot be served.
func (p *PostController) loadPost(ctx *gin.Context) (*models.Post, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusNotFound, 40403, "post not found")
		return nil, false
	}
	post, err := p.posts.GetByID(ctx.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40403, "post not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to load post")
		return nil, false
	}
	return post, true
}
