package user

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"myme/internal/account"
	"myme/internal/api"
	"myme/internal/auth"
	"myme/internal/logger"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register godoc
// @Summary      Register new user
// @Description  Creates a user and returns an access token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      RegisterRequest  true  "User registration data"
// @Success      201      {object}  LoginResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !api.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.Register(c.Request.Context(), req)
	switch {
	case errors.Is(err, account.ErrInvalidPhone):
		api.RespondWithValidationErrors(c, api.FieldError("phone_number", "phone", err.Error()))
		return
	case errors.Is(err, ErrAlreadyRegistered):
		api.Fail(c, http.StatusConflict, err.Error())
		return
	case err != nil:
		logger.Error("registration failed", "error", err)
		api.Fail(c, http.StatusInternalServerError, "failed to register user")
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login godoc
// @Summary      Login user
// @Description  Authenticates user by phone number and password.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      LoginRequest  true  "User credentials"
// @Success      200      {object}  LoginResponse
// @Failure      401      {object}  api.ErrorResponse
// @Router       /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !api.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if errors.Is(err, ErrInvalidCredentials) {
		api.Fail(c, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		logger.Error("login failed", "error", err)
		api.Fail(c, http.StatusInternalServerError, "failed to log in")
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetMe(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	u, err := h.service.Me(c.Request.Context(), userID)
	if errors.Is(err, account.ErrUserNotFound) {
		api.Fail(c, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		logger.Error("failed to load user", "user_id", userID, "error", err)
		api.Fail(c, http.StatusInternalServerError, "failed to load user")
		return
	}

	c.JSON(http.StatusOK, u)
}

func (h *Handler) CreateBusiness(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	var req CreateBusinessRequest
	if !api.BindJSON(c, &req) {
		return
	}

	b, err := h.service.CreateBusiness(c.Request.Context(), userID, req)
	if err != nil {
		logger.Error("failed to create business", "user_id", userID, "error", err)
		api.Fail(c, http.StatusInternalServerError, "failed to create business")
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *Handler) ListMyBusinesses(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		api.Fail(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	businesses, err := h.service.Businesses(c.Request.Context(), userID)
	if err != nil {
		logger.Error("failed to list businesses", "user_id", userID, "error", err)
		api.Fail(c, http.StatusInternalServerError, "failed to list businesses")
		return
	}
	c.JSON(http.StatusOK, businesses)
}
