package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mkraev/inkwell/config"
	"github.com/mkraev/inkwell/utils"
)

const (
	// ContextUserIDKey is the key used to store the authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
	// AuthCookieName carries the JWT for browser style clients so that
	// redirect flows work without an Authorization header.
	AuthCookieName = "auth_token"
	// LoginPath is where unauthenticated requests to protected routes are sent.
	LoginPath = "/auth/login/"
)

// tokenFromRequest extracts the JWT from the Authorization header or, failing
// that, from the auth cookie.
func tokenFromRequest(ctx *gin.Context) string {
	if authHeader := ctx.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := ctx.Cookie(AuthCookieName); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

func resolveIdentity(ctx *gin.Context) bool {
	token := tokenFromRequest(ctx)
	if token == "" || utils.IsTokenBlacklisted(token) {
		return false
	}
	claims, err := utils.ParseToken(token)
	if err != nil {
		return false
	}
	ctx.Set(ContextUserIDKey, claims.UserID)
	ctx.Set(ContextUsernameKey, claims.Username)
	return true
}

// Identify populates the viewer identity when a valid token is present and
// never blocks. Public pages use it for per-viewer bits such as the
// "following" flag on profiles.
func Identify() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		resolveIdentity(ctx)
		ctx.Next()
	}
}

// LoginRequired gates protected routes. Unauthenticated requests are
// redirected to the login page with the original target in the next
// parameter; this is not treated as a hard error.
func LoginRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !resolveIdentity(ctx) {
			next := url.QueryEscape(ctx.Request.URL.RequestURI())
			ctx.Redirect(http.StatusFound, LoginPath+"?next="+next)
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// AdminRequired allows only users whose username is listed in the
// configuration. Must run after LoginRequired.
func AdminRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		unameVal, exists := ctx.Get(ContextUsernameKey)
		uname, _ := unameVal.(string)
		if !exists || uname == "" || !isAdminName(uname) {
			utils.Error(ctx, http.StatusForbidden, 40310, "administrator access required")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func isAdminName(username string) bool {
	cfg := config.Get()
	for _, u := range cfg.AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), username) {
			return true
		}
	}
	return false
}
