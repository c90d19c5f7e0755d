package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billdomain "github.com/smallbiznis/alankar/internal/bill/domain"
	"github.com/smallbiznis/alankar/pkg/db/pagination"
)

type searchBillsRequest struct {
	Search    string             `json:"search"`
	StartDate string             `json:"startDate"`
	EndDate   string             `json:"endDate"`
	Page      pagination.FlexInt `json:"page"`
	Limit     pagination.FlexInt `json:"limit"`
	BillID    string             `json:"billId"`
}

func (s *Server) CreateBill(c *gin.Context) {
	var req billdomain.CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListBills(c *gin.Context) {
	resp, err := s.billSvc.List(c.Request.Context(), billdomain.ListBillRequest{
		Page:  pagination.ParsePage(c.Query("page")),
		Limit: pagination.ParseLimit(c.Query("limit")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) SearchBills(c *gin.Context) {
	var req searchBillsRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	startDate, err := parseOptionalTime(req.StartDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("startDate", "invalid_start_date", "invalid startDate"))
		return
	}

	endDate, err := parseOptionalTime(req.EndDate, true)
	if err != nil {
		AbortWithError(c, newValidationError("endDate", "invalid_end_date", "invalid endDate"))
		return
	}

	resp, err := s.billSvc.Search(c.Request.Context(), billdomain.SearchBillRequest{
		Term:      strings.TrimSpace(req.Search),
		StartDate: startDate,
		EndDate:   endDate,
		ID:        strings.TrimSpace(req.BillID),
		Page:      pagination.PageOrDefault(req.Page.Int()),
		Limit:     pagination.LimitOrDefault(req.Limit.Int()),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetBillByID(c *gin.Context) {
	resp, err := s.billSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) UpdateBill(c *gin.Context) {
	var req billdomain.UpdateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billSvc.Update(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) DeleteBill(c *gin.Context) {
	resp, err := s.billSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func isBillValidationError(err error) bool {
	switch {
	case errors.Is(err, billdomain.ErrInvalidID),
		errors.Is(err, billdomain.ErrInvalidCustomer),
		errors.Is(err, billdomain.ErrInvalidBillDate),
		errors.Is(err, billdomain.ErrInvalidItem),
		errors.Is(err, billdomain.ErrInvalidMakingChargeType),
		errors.Is(err, billdomain.ErrInvalidPaymentMode),
		errors.Is(err, billdomain.ErrInvalidPaymentDate):
		return true
	default:
		return false
	}
}
