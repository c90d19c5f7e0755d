package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/smallbiznis/alankar/internal/customer/domain"
	"github.com/smallbiznis/alankar/pkg/db/pagination"
	"go.uber.org/zap"
)

type createCustomerRequest struct {
	Name    string   `json:"name"`
	Phone   []string `json:"phone"`
	Address *string  `json:"address"`
}

type updateCustomerRequest struct {
	Name    *string   `json:"name"`
	Phone   *[]string `json:"phone"`
	Address *string   `json:"address"`
}

func (s *Server) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.Create(c.Request.Context(), customerdomain.CreateCustomerRequest{
		Name:    strings.TrimSpace(req.Name),
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListCustomers(c *gin.Context) {
	s.listCustomers(c, false)
}

func (s *Server) SearchCustomers(c *gin.Context) {
	s.listCustomers(c, true)
}

func (s *Server) listCustomers(c *gin.Context, requireQuery bool) {
	query := strings.TrimSpace(c.Query("query"))
	if requireQuery && query == "" {
		AbortWithError(c, customerdomain.ErrInvalidQuery)
		return
	}

	resp, err := s.customerSvc.List(c.Request.Context(), customerdomain.ListCustomerRequest{
		Query: query,
		Page:  pagination.ParsePage(c.Query("page")),
		Limit: pagination.ParseLimit(c.Query("limit")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetCustomerByID(c *gin.Context) {
	resp, err := s.customerSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) UpdateCustomer(c *gin.Context) {
	var req updateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.Update(c.Request.Context(), strings.TrimSpace(c.Param("id")), customerdomain.UpdateCustomerRequest{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) DeleteCustomer(c *gin.Context) {
	resp, err := s.customerSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("customer deleted",
		zap.String("customer_id", resp.Customer.ID.String()),
		zap.Int64("deleted_bills", resp.DeletedBills),
	)
	c.JSON(http.StatusOK, gin.H{"message": "Customer deleted successfully"})
}

func isCustomerValidationError(err error) bool {
	switch {
	case errors.Is(err, customerdomain.ErrInvalidName),
		errors.Is(err, customerdomain.ErrInvalidPhone),
		errors.Is(err, customerdomain.ErrInvalidID),
		errors.Is(err, customerdomain.ErrInvalidQuery):
		return true
	default:
		return false
	}
}
