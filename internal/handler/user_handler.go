package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/socialhub/internal/middleware"
	"github.com/socialhub/internal/service"
	"github.com/socialhub/pkg/keygen"
	"github.com/socialhub/pkg/response"
)

var (
	ErrNotAnImage    = errors.New("only jpg, png, gif and webp images are accepted")
	ErrImageTooLarge = errors.New("image exceeds the maximum upload size")
)

// UserHandler handles user account API requests
type UserHandler struct {
	userService   *service.UserService
	maxImageBytes int64
}

// NewUserHandler creates a new UserHandler. maxImageMB bounds uploaded avatars.
func NewUserHandler(userService *service.UserService, maxImageMB int) *UserHandler {
	return &UserHandler{
		userService:   userService,
		maxImageBytes: int64(maxImageMB) << 20,
	}
}

// LoginRequest represents the login request
type LoginRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// ResetPasswordRequest represents the reset password request
type ResetPasswordRequest struct {
	Password string `json:"password" form:"password"`
}

// Register handles user registration
// POST /users
func (h *UserHandler) Register(c *gin.Context) {
	var req service.RegisterInput
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	image, closeImage, err := h.imageFromRequest(c)
	if err != nil {
		h.fail(c, err, "failed to register user")
		return
	}
	defer closeImage()

	user, err := h.userService.Register(c.Request.Context(), &req, image)
	if err != nil {
		h.fail(c, err, "failed to register user")
		return
	}

	response.Created(c, "User created", user)
}

// Confirm handles email confirmation links
// GET /users/confirm/:emailToken
func (h *UserHandler) Confirm(c *gin.Context) {
	if err := h.userService.Confirm(c.Request.Context(), c.Param("emailToken")); err != nil {
		h.fail(c, err, "failed to confirm user")
		return
	}

	response.Created(c, "User confirmed", nil)
}

// Login handles credential login
// POST /users/login
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.userService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err, "failed to login")
		return
	}

	response.Message(c, result.Message, result)
}

// Logout revokes the session token the request was made with
// GET /users/logout
func (h *UserHandler) Logout(c *gin.Context) {
	user := middleware.GetUser(c)
	if err := h.userService.Logout(c.Request.Context(), user, middleware.GetToken(c)); err != nil {
		h.fail(c, err, "failed to logout")
		return
	}

	response.Message(c, "You have been logged out", nil)
}

// Update handles profile updates of the caller
// PATCH /users
func (h *UserHandler) Update(c *gin.Context) {
	var req service.UpdateInput
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	image, closeImage, err := h.imageFromRequest(c)
	if err != nil {
		h.fail(c, err, "failed to update user")
		return
	}
	defer closeImage()

	user, err := h.userService.UpdateProfile(c.Request.Context(), middleware.GetUser(c), &req, image)
	if err != nil {
		h.fail(c, err, "failed to update user")
		return
	}

	response.Message(c, fmt.Sprintf("User %s updated", user.Username), user)
}

// List returns every user
// GET /users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.userService.GetAll(c.Request.Context())
	if err != nil {
		h.fail(c, err, "failed to list users")
		return
	}

	response.Success(c, users)
}

// Get returns one user with resolved follow lists
// GET /users/:_id
func (h *UserHandler) Get(c *gin.Context) {
	profile, err := h.userService.GetByID(c.Request.Context(), c.Param("_id"))
	if err != nil {
		h.fail(c, err, "failed to get user")
		return
	}

	response.Success(c, profile)
}

// Search returns users whose username contains the given text
// GET /users/username/:username
func (h *UserHandler) Search(c *gin.Context) {
	users, err := h.userService.SearchByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.fail(c, err, "failed to search users")
		return
	}

	response.Success(c, users)
}

// Delete removes the caller's account and everything it authored
// DELETE /users
func (h *UserHandler) Delete(c *gin.Context) {
	user := middleware.GetUser(c)
	if err := h.userService.DeleteAccount(c.Request.Context(), user); err != nil {
		h.fail(c, err, "failed to delete user")
		return
	}

	response.Message(c, fmt.Sprintf("User %s deleted", user.Username), nil)
}

// Follow makes the caller follow another user
// PUT /users/follow/:targetid
func (h *UserHandler) Follow(c *gin.Context) {
	user := middleware.GetUser(c)
	target, err := h.userService.Follow(c.Request.Context(), user, c.Param("targetid"))
	if err != nil {
		h.fail(c, err, "failed to follow user")
		return
	}

	response.Message(c, fmt.Sprintf("User %s is now following %s", user.Username, target.Username), nil)
}

// Unfollow removes the caller's follow of another user
// PUT /users/unfollow/:targetid
func (h *UserHandler) Unfollow(c *gin.Context) {
	user := middleware.GetUser(c)
	target, err := h.userService.Unfollow(c.Request.Context(), user, c.Param("targetid"))
	if err != nil {
		h.fail(c, err, "failed to unfollow user")
		return
	}

	response.Message(c, fmt.Sprintf("User %s no longer follows %s", user.Username, target.Username), nil)
}

// RecoverPassword mails a password reset link
// GET /users/recoverPassword/:email
func (h *UserHandler) RecoverPassword(c *gin.Context) {
	if err := h.userService.RequestPasswordRecovery(c.Request.Context(), c.Param("email")); err != nil {
		h.fail(c, err, "failed to send recovery email")
		return
	}

	response.Message(c, "A recovering email was sent to your email address", nil)
}

// ResetPassword sets a new password from a recovery link
// POST /users/resetPassword/:recoverToken
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.userService.ResetPassword(c.Request.Context(), c.Param("recoverToken"), req.Password); err != nil {
		h.fail(c, err, "failed to reset password")
		return
	}

	response.Message(c, "Your password has been updated", nil)
}

// RegisterRoutes registers user routes
func (h *UserHandler) RegisterRoutes(r gin.IRouter, authMiddleware gin.HandlerFunc) {
	users := r.Group("/users")
	{
		// public
		users.POST("", h.Register)
		users.GET("", h.List)
		users.GET("/confirm/:emailToken", h.Confirm)
		users.POST("/login", h.Login)
		users.GET("/recoverPassword/:email", h.RecoverPassword)
		users.POST("/resetPassword/:recoverToken", h.ResetPassword)
		users.GET("/username/:username", h.Search)
		users.GET("/:_id", h.Get)

		// authenticated
		private := users.Group("", middleware.AuditLoggerMiddleware(), authMiddleware)
		private.GET("/logout", h.Logout)
		private.PATCH("", h.Update)
		private.DELETE("", h.Delete)
		private.PUT("/follow/:targetid", h.Follow)
		private.PUT("/unfollow/:targetid", h.Unfollow)
	}
}

// imageFromRequest extracts the optional "image" file of a multipart request.
// The returned func closes the file and is always safe to call.
func (h *UserHandler) imageFromRequest(c *gin.Context) (*service.ImageUpload, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, noop, nil
	}

	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, noop, nil
		}
		return nil, noop, err
	}

	if !keygen.IsImageFilename(fh.Filename) {
		return nil, noop, ErrNotAnImage
	}
	if h.maxImageBytes > 0 && fh.Size > h.maxImageBytes {
		return nil, noop, ErrImageTooLarge
	}

	file, err := fh.Open()
	if err != nil {
		return nil, noop, err
	}

	return &service.ImageUpload{Filename: fh.Filename, Content: file}, func() { file.Close() }, nil
}

// fail maps service errors to responses; unexpected errors are logged and hidden
func (h *UserHandler) fail(c *gin.Context, err error, message string) {
	switch {
	case service.IsValidation(err), errors.Is(err, ErrNotAnImage), errors.Is(err, ErrImageTooLarge):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrEmailNotConfirmed):
		response.BadRequest(c, "Email must be confirmed first")
	case errors.Is(err, service.ErrInvalidCredentials):
		response.BadRequest(c, "Incorrect user/password")
	case errors.Is(err, service.ErrInvalidToken):
		response.BadRequest(c, service.ErrInvalidToken.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, service.ErrUserNotFound.Error())
	case errors.Is(err, service.ErrTooManyRequests):
		response.TooManyRequests(c, service.ErrTooManyRequests.Error())
	default:
		middleware.LogError("%s %s: %s: %v", c.Request.Method, c.Request.URL.Path, message, err)
		response.InternalError(c, message)
	}
}
