package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mkraev/inkwell/models"
	"github.com/mkraev/inkwell/repository"
	"github.com/mkraev/inkwell/utils"
)

// AdminController covers the administrative surface: group lifecycle,
// post and user removal, and force-clearing the response cache.
type AdminController struct {
	groups repository.GroupRepository
	posts  repository.PostRepository
	users  repository.UserRepository
	cache  utils.Cache
}

// NewAdminController creates a new AdminController instance.
func NewAdminController(db *gorm.DB, cache utils.Cache) *AdminController {
	return &AdminController{
		groups: repository.NewGroupRepository(db),
		posts:  repository.NewPostRepository(db),
		users:  repository.NewUserRepository(db),
		cache:  cache,
	}
}

type groupForm struct {
	Title       string `form:"title" json:"title" binding:"required"`
	Slug        string `form:"slug" json:"slug" binding:"required"`
	Description string `form:"description" json:"description"`
}

// CreateGroup adds a new category. The slug must be globally unique.
func (a *AdminController) CreateGroup(ctx *gin.Context) {
	var form groupForm
	if err := ctx.ShouldBind(&form); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}

	slug := strings.TrimSpace(form.Slug)
	if _, err := a.groups.GetBySlug(ctx.Request.Context(), slug); err == nil {
		utils.Error(ctx, http.StatusConflict, 40910, "slug already in use")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to check slug")
		return
	}

	group := models.Group{
		Title:       strings.TrimSpace(form.Title),
		Slug:        slug,
		Description: form.Description,
	}
	if err := a.groups.Create(ctx.Request.Context(), &group); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to create group")
		return
	}
	utils.Success(ctx, gin.H{"group": group})
}

// UpdateGroup edits an existing category.
func (a *AdminController) UpdateGroup(ctx *gin.Context) {
	group, ok := a.loadGroup(ctx)
	if !ok {
		return
	}

	var form groupForm
	if err := ctx.ShouldBind(&form); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40041, "invalid request payload")
		return
	}

	slug := strings.TrimSpace(form.Slug)
	if slug != group.Slug {
		if _, err := a.groups.GetBySlug(ctx.Request.Context(), slug); err == nil {
			utils.Error(ctx, http.StatusConflict, 40911, "slug already in use")
			return
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to check slug")
			return
		}
	}

	group.Title = strings.TrimSpace(form.Title)
	group.Slug = slug
	group.Description = form.Description
	if err := a.groups.Update(ctx.Request.Context(), group); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50053, "failed to update group")
		return
	}
	utils.Success(ctx, gin.H{"group": group})
}

// DeleteGroup removes a category. Its posts survive with their group
// reference cleared.
func (a *AdminController) DeleteGroup(ctx *gin.Context) {
	group, ok := a.loadGroup(ctx)
	if !ok {
		return
	}
	if err := a.groups.Delete(ctx.Request.Context(), group.ID); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50054, "failed to delete group")
		return
	}
	utils.Success(ctx, gin.H{"message": "group deleted"})
}

// DeletePost removes a post together with its comments.
func (a *AdminController) DeletePost(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusNotFound, 40405, "post not found")
		return
	}
	if _, err := a.posts.GetByID(ctx.Request.Context(), uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40405, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50055, "failed to load post")
		return
	}
	if err := a.posts.Delete(ctx.Request.Context(), uint(id)); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50056, "failed to delete post")
		return
	}
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

// DeleteUser removes a user and cascades to their posts, comments and
// follow relationships.
func (a *AdminController) DeleteUser(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusNotFound, 40406, "user not found")
		return
	}
	if _, err := a.users.GetByID(ctx.Request.Context(), uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40406, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50057, "failed to load user")
		return
	}
	if err := a.users.Delete(ctx.Request.Context(), uint(id)); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50058, "failed to delete user")
		return
	}
	utils.Success(ctx, gin.H{"message": "user deleted"})
}

// ClearCache force-clears the response cache. The home listing otherwise
// expires by time window only.
func (a *AdminController) ClearCache(ctx *gin.Context) {
	a.cache.Clear()
	utils.Success(ctx, gin.H{"message": "cache cleared"})
}

func (a *AdminController) loadGroup(ctx *gin.Context) (*models.Group, bool) {
	group, err := a.groups.GetBySlug(ctx.Request.Context(), ctx.Param("slug"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40407, "group not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50059, "failed to load group")
		return nil, false
	}
	return group, true
}
