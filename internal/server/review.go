package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	reviewdomain "github.com/smallbiznis/qatech/internal/review/domain"
)

type createReviewRequest struct {
	ProductID flexibleID `json:"productId"`
	Rating    int        `json:"rating"`
	Comment   string     `json:"comment"`
}

type replyReviewRequest struct {
	Reply string `json:"reply" binding:"required"`
}

func (s *Server) ListProductReviews(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}

	resp, err := s.reviewSvc.ListForProduct(c.Request.Context(), reviewdomain.ListRequest{
		ProductID: productID,
		Page:      parsePositiveInt(c.Query("page"), 1),
		Limit:     parsePositiveInt(c.Query("limit"), 10),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CheckPurchase(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}

	check, err := s.reviewSvc.CheckPurchase(c.Request.Context(), actor.UserID, productID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": check})
}

func (s *Server) CreateReview(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req createReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	productID, err := req.ProductID.ID()
	if err != nil {
		AbortWithError(c, reviewdomain.ErrInvalidID)
		return
	}

	review, err := s.reviewSvc.Create(c.Request.Context(), reviewdomain.CreateRequest{
		UserID:    actor.UserID,
		ProductID: productID,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": review})
}

func (s *Server) ReplyReview(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	reviewID, ok := pathID(c, "reviewId")
	if !ok {
		return
	}

	var req replyReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	review, err := s.reviewSvc.Reply(c.Request.Context(), reviewdomain.ReplyRequest{
		ReviewID: reviewID,
		StaffID:  actor.UserID,
		Reply:    strings.TrimSpace(req.Reply),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": review})
}

func (s *Server) DeleteReview(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	reviewID, ok := pathID(c, "reviewId")
	if !ok {
		return
	}

	if err := s.reviewSvc.Delete(c.Request.Context(), reviewID, actor); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": reviewID}})
}
