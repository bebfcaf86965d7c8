package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mkraev/inkwell/models"
	"github.com/mkraev/inkwell/repository"
	"github.com/mkraev/inkwell/utils"
)

// FollowController serves the follow feed and the follow/unfollow mutations.
type FollowController struct {
	posts   repository.PostRepository
	users   repository.UserRepository
	follows repository.FollowRepository
}

// NewFollowController creates a new FollowController instance.
func NewFollowController(db *gorm.DB) *FollowController {
	return &FollowController{
		posts:   repository.NewPostRepository(db),
		users:   repository.NewUserRepository(db),
		follows: repository.NewFollowRepository(db),
	}
}

// Feed returns the paginated newest-first posts whose authors the viewer
// follows. The route is behind the login gate, so there is no anonymous
// variant of this listing.
func (f *FollowController) Feed(ctx *gin.Context) {
	viewerID, ok := currentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}

	scope := repository.Scope{FollowedBy: &viewerID}
	total, err := f.posts.Count(ctx.Request.Context(), scope)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to count feed")
		return
	}
	pg := utils.Paginate(ctx.Query("page"), total, utils.PostsPerPage)
	items, err := f.posts.List(ctx.Request.Context(), scope, pg.PageSize, pg.Offset())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to list feed")
		return
	}
	utils.Success(ctx, gin.H{"items": items, "pagination": pg})
}

// Follow subscribes the viewer to an author. Repeating it is a no-op.
func (f *FollowController) Follow(ctx *gin.Context) {
	viewerID, author, ok := f.resolve(ctx)
	if !ok {
		return
	}
	if err := f.follows.Follow(ctx.Request.Context(), viewerID, author.ID); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to follow")
		return
	}
	ctx.Redirect(http.StatusFound, "/profile/"+author.Username+"/")
}

// Unfollow removes the subscription. Unfollowing a non-existent relationship
// is a no-op.
func (f *FollowController) Unfollow(ctx *gin.Context) {
	viewerID, author, ok := f.resolve(ctx)
	if !ok {
		return
	}
	if err := f.follows.Unfollow(ctx.Request.Context(), viewerID, author.ID); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to unfollow")
		return
	}
	ctx.Redirect(http.StatusFound, "/profile/"+author.Username+"/")
}

func (f *FollowController) resolve(ctx *gin.Context) (uint, *models.User, bool) {
	viewerID, hasViewer := currentUserID(ctx)
	if !hasViewer {
		utils.Error(ctx, http.StatusUnauthorized, 40114, "unauthorized")
		return 0, nil, false
	}
	author, err := f.users.GetByUsername(ctx.Request.Context(), ctx.Param("username"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40404, "user not found")
			return 0, nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50044, "failed to load user")
		return 0, nil, false
	}
	return viewerID, author, true
}
