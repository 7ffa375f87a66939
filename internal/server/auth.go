package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/qatech/internal/auth/domain"
	"github.com/smallbiznis/qatech/internal/observability/logger"
	"go.uber.org/zap"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Remember bool   `json:"remember"`
}

type otpRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

type updateProfileRequest struct {
	Name     *string `json:"name" form:"name"`
	Phone    *string `json:"phone" form:"phone"`
	Address  *string `json:"address" form:"address"`
	Password *string `json:"password" form:"password"`
}

func (s *Server) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.authsvc.Register(c.Request.Context(), authdomain.RegisterRequest{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": user})
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:     strings.TrimSpace(req.Email),
		Password:  req.Password,
		Remember:  req.Remember,
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) RequestOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.authsvc.RequestOTP(c.Request.Context(), strings.TrimSpace(req.Email)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"message": "Mã OTP đã được gửi đến email của bạn"}})
}

func (s *Server) VerifyOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.authsvc.VerifyOTP(c.Request.Context(), strings.TrimSpace(req.Email), strings.TrimSpace(req.OTP)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"valid": true}})
}

func (s *Server) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.authsvc.ResetPassword(c.Request.Context(), authdomain.ResetPasswordRequest{
		Email:       strings.TrimSpace(req.Email),
		OTP:         strings.TrimSpace(req.OTP),
		NewPassword: req.NewPassword,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"message": "Đặt lại mật khẩu thành công"}})
}

func (s *Server) Me(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	user, err := s.authsvc.Me(c.Request.Context(), actor.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}

// UpdateProfile accepts JSON or a multipart form with an optional "avatar" file.
func (s *Server) UpdateProfile(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBind(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	var avatar *string
	if header, err := c.FormFile("avatar"); err == nil && header != nil {
		url, err := s.uploads.Save(ctx, header)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		avatar = &url
	}

	var previous string
	if avatar != nil {
		if current, err := s.authsvc.Me(ctx, actor.UserID); err == nil {
			previous = current.Avatar
		}
	}

	user, err := s.authsvc.UpdateProfile(ctx, authdomain.UpdateProfileRequest{
		UserID:   actor.UserID,
		Name:     trimmedPtr(req.Name),
		Phone:    trimmedPtr(req.Phone),
		Address:  trimmedPtr(req.Address),
		Password: req.Password,
		Avatar:   avatar,
	})
	if err != nil {
		if avatar != nil {
			_ = s.uploads.Remove(ctx, *avatar)
		}
		AbortWithError(c, err)
		return
	}

	if previous != "" && avatar != nil && previous != *avatar {
		if err := s.uploads.Remove(ctx, previous); err != nil {
			logger.FromContext(ctx).Warn("remove previous avatar failed", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
