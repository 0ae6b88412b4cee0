package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"staybid/internal/auctions/service"
	"staybid/internal/auctions/validator"
	apperrors "staybid/pkg/errors"
	httputil "staybid/pkg/http"
	"staybid/pkg/logger"
	"staybid/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockAuctionService struct {
	service.AuctionService

	previewFunc   func(req *validator.PreviewRequest) (*service.Preview, error)
	createFunc    func(req *validator.CreateRequest) (*model.Auction, error)
	bidFunc       func(uid string, req *validator.BidRequest) (*service.BidResult, error)
	cancelFunc    func(uid, reason string) (*model.Auction, error)
	endingFunc    func(limit int) ([]*model.Auction, error)
	adminListFunc func(status model.AuctionStatus, limit int, offset int64) ([]*model.Auction, int64, error)
}

func (m *mockAuctionService) PreviewCreate(_ context.Context, req *validator.PreviewRequest) (*service.Preview, error) {
	return m.previewFunc(req)
}

func (m *mockAuctionService) CreateAuction(_ context.Context, req *validator.CreateRequest) (*model.Auction, error) {
	return m.createFunc(req)
}

func (m *mockAuctionService) PlaceBid(_ context.Context, uid string, req *validator.BidRequest) (*service.BidResult, error) {
	return m.bidFunc(uid, req)
}

func (m *mockAuctionService) CancelAuction(_ context.Context, uid, reason string) (*model.Auction, error) {
	return m.cancelFunc(uid, reason)
}

func (m *mockAuctionService) EndingSoon(_ context.Context, limit int) ([]*model.Auction, error) {
	return m.endingFunc(limit)
}

func (m *mockAuctionService) AdminList(_ context.Context, status model.AuctionStatus, limit int, offset int64) ([]*model.Auction, int64, error) {
	return m.adminListFunc(status, limit, offset)
}

func serve(t *testing.T, svc service.AuctionService, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	router := httprouter.New()
	NewAuctionHandler(svc, logger.Discard()).RegisterRoutes(router)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var body httputil.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func TestOpen_DispatchesPreviewAndCreate(t *testing.T) {
	var previewed, created bool
	svc := &mockAuctionService{
		previewFunc: func(req *validator.PreviewRequest) (*service.Preview, error) {
			previewed = req.UnitUID == "villa-1"
			return &service.Preview{Eligible: true, StartingPrice: 700_000, BidIncrement: 35_000}, nil
		},
		createFunc: func(req *validator.CreateRequest) (*model.Auction, error) {
			created = req.UserID == "host-1" && req.InitialBid
			return &model.Auction{
				UID:           "a-1",
				Status:        model.AuctionActive,
				EndTime:       time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC),
				StartingPrice: 700_000,
				CurrentPrice:  735_000,
				BidIncrement:  35_000,
				Currency:      "VND",
			}, nil
		},
	}

	body := `{"unitUid":"villa-1","checkin":"2025-01-10","checkout":"2025-01-15"}`
	w := serve(t, svc, httptest.NewRequest(http.MethodPost, "/auction/preview", strings.NewReader(body)))
	if w.Code != http.StatusOK || !previewed {
		t.Errorf("preview: status = %d, called = %v", w.Code, previewed)
	}

	req := httptest.NewRequest(http.MethodPost, "/auction/create", strings.NewReader(`{"unitUid":"villa-1","checkin":"2025-01-10","checkout":"2025-01-15","initialBid":true}`))
	req.Header.Set(httputil.HeaderUserID, "host-1")
	w = serve(t, svc, req)
	if w.Code != http.StatusCreated || !created {
		t.Errorf("create: status = %d, called = %v", w.Code, created)
	}
	var createdBody struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&createdBody); err != nil {
		t.Fatalf("failed to decode create body: %v", err)
	}
	for key, want := range map[string]any{
		"auctionUid":   "a-1",
		"endTime":      "2025-01-06T10:00:00Z",
		"currentPrice": float64(735_000),
		"currency":     "VND",
	} {
		if got := createdBody.Data[key]; got != want {
			t.Errorf("create body %s = %v, want %v", key, got, want)
		}
	}
	if _, ok := createdBody.Data["auction_uid"]; ok {
		t.Error("create body should not expose the stored model")
	}

	w = serve(t, svc, httptest.NewRequest(http.MethodPost, "/auction/launch", strings.NewReader(body)))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown action: status = %d, want 404", w.Code)
	}
}

func TestBid_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		retryAfter bool
	}{
		{"too low", apperrors.BidTooLow(735_000, 700_000, 35_000), http.StatusConflict, apperrors.CodeBidTooLow, false},
		{"ended", apperrors.AuctionEnded("a-1"), http.StatusConflict, apperrors.CodeAuctionEnded, false},
		{"missing", apperrors.NotFoundWithID("Auction", "a-1"), http.StatusNotFound, apperrors.CodeNotFound, false},
		{"busy", apperrors.LockContention(errors.New("lock timeout")), http.StatusLocked, apperrors.CodeLockContention, true},
		{"internal", apperrors.Internal("boom", errors.New("db")), http.StatusInternalServerError, apperrors.CodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuctionService{bidFunc: func(string, *validator.BidRequest) (*service.BidResult, error) { return nil, tt.err }}
			w := serve(t, svc, httptest.NewRequest(http.MethodPost, "/auction/a-1/bid", strings.NewReader(`{"userId":"g","amount":730000}`)))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := decodeError(t, w).Code; got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
			if (w.Header().Get("Retry-After") != "") != tt.retryAfter {
				t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
			}
		})
	}
}

func TestBid_PassesAuctionAndCaller(t *testing.T) {
	var gotUID string
	var gotReq *validator.BidRequest
	svc := &mockAuctionService{bidFunc: func(uid string, req *validator.BidRequest) (*service.BidResult, error) {
		gotUID, gotReq = uid, req
		return &service.BidResult{BidID: 9, CurrentPrice: 735_000, MinimumBid: 770_000}, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/auction/a-1/bid", strings.NewReader(`{"amount":735000}`))
	req.Header.Set(httputil.HeaderUserID, "guest-7")
	w := serve(t, svc, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if gotUID != "a-1" || gotReq.UserID != "guest-7" || gotReq.Amount != 735_000 {
		t.Errorf("service got uid=%s req=%+v", gotUID, gotReq)
	}
}

func TestBid_RejectsMalformedBody(t *testing.T) {
	svc := &mockAuctionService{bidFunc: func(string, *validator.BidRequest) (*service.BidResult, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	w := serve(t, svc, httptest.NewRequest(http.MethodPost, "/auction/a-1/bid", strings.NewReader(`{"amount":"lots"}`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCancel_AllowsEmptyBody(t *testing.T) {
	var gotReason = "unset"
	svc := &mockAuctionService{cancelFunc: func(uid, reason string) (*model.Auction, error) {
		gotReason = reason
		return &model.Auction{UID: uid, Status: model.AuctionCancelled}, nil
	}}

	w := serve(t, svc, httptest.NewRequest(http.MethodPut, "/auction/a-1/cancel", nil))
	if w.Code != http.StatusOK || gotReason != "" {
		t.Errorf("status = %d, reason = %q", w.Code, gotReason)
	}
}

func TestEndingSoon_Limit(t *testing.T) {
	var gotLimit int
	svc := &mockAuctionService{endingFunc: func(limit int) ([]*model.Auction, error) {
		gotLimit = limit
		return []*model.Auction{{UID: "a-1", EndTime: time.Now()}}, nil
	}}

	tests := []struct {
		query      string
		wantStatus int
		wantLimit  int
	}{
		{"", http.StatusOK, 15},
		{"?limit=5", http.StatusOK, 5},
		{"?limit=1000", http.StatusOK, 100},
		{"?limit=abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		gotLimit = 0
		w := serve(t, svc, httptest.NewRequest(http.MethodGet, "/auction/ending-soon"+tt.query, nil))
		if w.Code != tt.wantStatus || gotLimit != tt.wantLimit {
			t.Errorf("%q: status = %d, limit = %d, want %d and %d", tt.query, w.Code, gotLimit, tt.wantStatus, tt.wantLimit)
		}
	}
}

func TestAdminList_Paginates(t *testing.T) {
	svc := &mockAuctionService{adminListFunc: func(status model.AuctionStatus, limit int, offset int64) ([]*model.Auction, int64, error) {
		if status != model.AuctionEnded || limit != 20 || offset != 40 {
			t.Errorf("service got status=%s limit=%d offset=%d", status, limit, offset)
		}
		return []*model.Auction{{UID: "a-1"}}, 41, nil
	}}

	w := serve(t, svc, httptest.NewRequest(http.MethodGet, "/auction/admin/list?status=ended&limit=20&offset=40", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body httputil.PaginatedResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalCount != 41 || body.Limit != 20 || body.Offset != 40 {
		t.Errorf("unexpected page: %+v", body)
	}
}
