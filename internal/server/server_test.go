package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	analyticsdomain "github.com/smallbiznis/alankar/internal/analytics/domain"
	billdomain "github.com/smallbiznis/alankar/internal/bill/domain"
	"github.com/smallbiznis/alankar/internal/config"
	customerdomain "github.com/smallbiznis/alankar/internal/customer/domain"
	"github.com/smallbiznis/alankar/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCustomerService struct {
	listCalls int
	lastList  customerdomain.ListCustomerRequest
	createErr error
	getErr    error
	deleted   string
}

func (f *fakeCustomerService) Create(ctx context.Context, req customerdomain.CreateCustomerRequest) (customerdomain.Customer, error) {
	if f.createErr != nil {
		return customerdomain.Customer{}, f.createErr
	}
	return customerdomain.Customer{ID: snowflake.ID(42), Name: req.Name, Phone: req.Phone, Address: req.Address}, nil
}

func (f *fakeCustomerService) GetByID(ctx context.Context, id string) (customerdomain.Customer, error) {
	if f.getErr != nil {
		return customerdomain.Customer{}, f.getErr
	}
	return customerdomain.Customer{ID: snowflake.ID(42), Name: "Asha"}, nil
}

func (f *fakeCustomerService) Update(ctx context.Context, id string, req customerdomain.UpdateCustomerRequest) (customerdomain.Customer, error) {
	return customerdomain.Customer{ID: snowflake.ID(42), Name: *req.Name}, nil
}

func (f *fakeCustomerService) Delete(ctx context.Context, id string) (customerdomain.DeleteCustomerResult, error) {
	f.deleted = id
	return customerdomain.DeleteCustomerResult{Customer: customerdomain.Customer{ID: snowflake.ID(42)}, DeletedBills: 2}, nil
}

func (f *fakeCustomerService) List(ctx context.Context, req customerdomain.ListCustomerRequest) (pagination.Page[customerdomain.CustomerWithStats], error) {
	f.listCalls++
	f.lastList = req
	return pagination.NewPage([]customerdomain.CustomerWithStats{}, req.Page, req.Limit, 0), nil
}

type fakeBillService struct {
	lastSearch billdomain.SearchBillRequest
	lastList   billdomain.ListBillRequest
	createErr  error
	getCalls   int
}

func (f *fakeBillService) Create(ctx context.Context, req billdomain.CreateBillRequest) (billdomain.Bill, error) {
	if f.createErr != nil {
		return billdomain.Bill{}, f.createErr
	}
	customerID, _ := snowflake.ParseString(req.CustomerID)
	return billdomain.Bill{ID: "KA-0123456789", CustomerID: customerID}, nil
}

func (f *fakeBillService) GetByID(ctx context.Context, id string) (billdomain.BillView, error) {
	f.getCalls++
	return billdomain.BillView{}, billdomain.ErrNotFound
}

func (f *fakeBillService) Update(ctx context.Context, id string, req billdomain.UpdateBillRequest) (billdomain.Bill, error) {
	return billdomain.Bill{ID: id}, nil
}

func (f *fakeBillService) Delete(ctx context.Context, id string) (billdomain.Bill, error) {
	return billdomain.Bill{ID: id}, nil
}

func (f *fakeBillService) Search(ctx context.Context, req billdomain.SearchBillRequest) (pagination.Page[billdomain.BillView], error) {
	f.lastSearch = req
	return pagination.NewPage([]billdomain.BillView{}, req.Page, req.Limit, 0), nil
}

func (f *fakeBillService) List(ctx context.Context, req billdomain.ListBillRequest) (pagination.Page[billdomain.BillView], error) {
	f.lastList = req
	return pagination.NewPage([]billdomain.BillView{}, req.Page, req.Limit, 0), nil
}

type fakeAnalyticsService struct {
	calls int
}

func (f *fakeAnalyticsService) Summary(ctx context.Context) (analyticsdomain.Summary, error) {
	f.calls++
	return analyticsdomain.Summary{
		TotalCustomers:  1,
		TotalBills:      2,
		TotalPaidAmount: "1700",
		TotalDues:       "1500",
		SalesRevenue:    []analyticsdomain.RevenuePoint{},
	}, nil
}

type testServer struct {
	router    *gin.Engine
	customers *fakeCustomerService
	bills     *fakeBillService
	analytics *fakeAnalyticsService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(CORS([]string{"https://shop.example"}))
	router.Use(ErrorHandlingMiddleware())

	ts := &testServer{
		router:    router,
		customers: &fakeCustomerService{},
		bills:     &fakeBillService{},
		analytics: &fakeAnalyticsService{},
	}
	NewServer(ServerParams{
		Gin:          router,
		Cfg:          config.Config{Environment: "test"},
		Log:          zap.NewNop(),
		CustomerSvc:  ts.customers,
		BillSvc:      ts.bills,
		AnalyticsSvc: ts.analytics,
	})
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body == "" {
		reader = &bytes.Buffer{}
	} else {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out.Error
}

func TestSearchBillsParsesBody(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/bills/search",
		`{"search":" 98 ","startDate":"2024-03-01","endDate":"2024-03-02","page":"2","limit":5,"billId":""}`)
	require.Equal(t, http.StatusOK, resp.Code)

	got := ts.bills.lastSearch
	assert.Equal(t, "98", got.Term)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 5, got.Limit)
	require.NotNil(t, got.StartDate)
	require.NotNil(t, got.EndDate)
	assert.True(t, got.StartDate.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, got.EndDate.Equal(time.Date(2024, 3, 2, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)))

	var page pagination.Page[billdomain.BillView]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Page)
	assert.NotNil(t, page.Data)
}

func TestSearchBillsDefaultsPaging(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/bills/search", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, pagination.DefaultPage, ts.bills.lastSearch.Page)
	assert.Equal(t, pagination.DefaultLimit, ts.bills.lastSearch.Limit)

	resp = ts.do(http.MethodPost, "/bills/search", `{"page":"abc","limit":-3}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, pagination.DefaultPage, ts.bills.lastSearch.Page)
	assert.Equal(t, pagination.DefaultLimit, ts.bills.lastSearch.Limit)
}

func TestSearchBillsRejectsBadDate(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/bills/search", `{"startDate":"yesterday"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	payload := decodeError(t, resp)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_start_date", payload.Errors[0].Code)
}

func TestListBillsReadsQuery(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/bills?page=3&limit=10", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, billdomain.ListBillRequest{Page: 3, Limit: 10}, ts.bills.lastList)
}

func TestCreateBillErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		typeName string
	}{
		{name: "exhausted", err: billdomain.ErrIdentifierExhausted, status: http.StatusServiceUnavailable, typeName: "identifier_exhausted"},
		{name: "duplicate", err: billdomain.ErrDuplicateID, status: http.StatusConflict, typeName: "conflict"},
		{name: "validation", err: billdomain.ErrInvalidPaymentMode, status: http.StatusBadRequest, typeName: "validation_error"},
		{name: "store", err: assert.AnError, status: http.StatusInternalServerError, typeName: "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.bills.createErr = tc.err

			resp := ts.do(http.MethodPost, "/bills", `{"customerId":"42","billDate":"2024-03-15","items":[],"payments":[]}`)
			require.Equal(t, tc.status, resp.Code)
			assert.Equal(t, tc.typeName, decodeError(t, resp).Type)
		})
	}
}

func TestCreateBillReturnsCreated(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/bills", `{"customerId":"42","billDate":"2024-03-15","totalAmount":"3200.50"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Contains(t, resp.Body.String(), `"KA-0123456789"`)
}

func TestCreateBillRejectsMalformedJSON(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/bills", `{"customerId":`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_request", decodeError(t, resp).Errors[0].Code)
}

func TestGetBillNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/bills/KA-ffffffffff", "")
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "not_found", decodeError(t, resp).Type)
}

func TestSummaryRoutes(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/bills/summary", "/summary"} {
		resp := ts.do(http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, resp.Code, path)

		var summary analyticsdomain.Summary
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &summary))
		assert.Equal(t, "1500", summary.TotalDues)
	}
	assert.Equal(t, 2, ts.analytics.calls)
	assert.Zero(t, ts.bills.getCalls)
}

func TestSearchCustomersRequiresQuery(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/customers/search?query=%20", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	payload := decodeError(t, resp)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_query", payload.Errors[0].Code)
	assert.Zero(t, ts.customers.listCalls)

	resp = ts.do(http.MethodGet, "/customers/search?query=asha&page=2", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, customerdomain.ListCustomerRequest{Query: "asha", Page: 2, Limit: pagination.DefaultLimit}, ts.customers.lastList)
}

func TestListCustomersWithoutQuery(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/customers?limit=x", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, customerdomain.ListCustomerRequest{Page: 1, Limit: pagination.DefaultLimit}, ts.customers.lastList)
}

func TestCreateCustomer(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/customers", `{"name":" Asha ","phone":["9876543210"]}`)
	require.Equal(t, http.StatusCreated, resp.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "Asha", body["name"])
	assert.Equal(t, []any{"9876543210"}, body["phone"])
}

func TestCreateCustomerValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.customers.createErr = customerdomain.ErrInvalidName

	resp := ts.do(http.MethodPost, "/customers", `{"name":""}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	payload := decodeError(t, resp)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "name", payload.Errors[0].Field)
	assert.Equal(t, "invalid_name", payload.Errors[0].Code)
}

func TestGetCustomerNotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.customers.getErr = customerdomain.ErrNotFound

	resp := ts.do(http.MethodGet, "/customers/42", "")
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeleteCustomerMessage(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodDelete, "/customers/42", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"message":"Customer deleted successfully"}`, resp.Body.String())
	assert.Equal(t, "42", ts.customers.deleted)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/bills/search", nil)
	req.Header.Set("Origin", "https://shop.example")
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.Equal(t, "https://shop.example", resp.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	req = httptest.NewRequest(http.MethodGet, "/customers", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	resp = httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestClassifyErrorForLog(t *testing.T) {
	typ, code := classifyErrorForLog(billdomain.ErrInvalidBillDate)
	assert.Equal(t, "validation_error", typ)
	assert.Equal(t, "invalid_bill_date", code)

	typ, code = classifyErrorForLog(billdomain.ErrIdentifierExhausted)
	assert.Equal(t, "identifier_exhausted", typ)
	assert.Equal(t, "identifier_exhausted", code)
}
