package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newHandlerContext(method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_ListQueue(t *testing.T) {
	env := newTestEnv()
	v := env.addVisit(1)
	env.svc.AdmitFromPharmacy(context.Background(), env.pharmQ.addPrepared(v.ID, v.PatientID))
	h := NewHandler(env.svc)

	c, rec := newHandlerContext(http.MethodGet, "/api/v1/billing/queue", "")
	if err := h.ListQueue(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var entries []Entry
	json.Unmarshal(rec.Body.Bytes(), &entries)
	if len(entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Patient == nil {
		t.Error("expected entries enriched with the patient")
	}
}

func TestHandler_ListQueue_InvalidStatus(t *testing.T) {
	env := newTestEnv()
	h := NewHandler(env.svc)

	c, _ := newHandlerContext(http.MethodGet, "/api/v1/billing/queue?status=bogus", "")
	if err := h.ListQueue(c); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestHandler_GenerateReceipt(t *testing.T) {
	env := newTestEnv()
	v := env.addVisit(1)
	env.svc.AdmitFromPharmacy(context.Background(), env.pharmQ.addPrepared(v.ID, v.PatientID))
	q, _ := env.repo.GetQueueItemByVisit(context.Background(), v.ID)
	h := NewHandler(env.svc)

	c, rec := newHandlerContext(http.MethodPost, "/api/v1/billing/queue/:id/receipt", `{"payment_method":"cash"}`)
	c.SetParamNames("id")
	c.SetParamValues(q.ID.String())

	if err := h.GenerateReceipt(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var receipt Receipt
	json.Unmarshal(rec.Body.Bytes(), &receipt)
	if receipt.ReceiptNumber == "" {
		t.Error("expected a receipt number in the response")
	}
}

func TestHandler_EditFee_InvalidID(t *testing.T) {
	env := newTestEnv()
	h := NewHandler(env.svc)

	c, _ := newHandlerContext(http.MethodPut, "/api/v1/billing/queue/:id/fee", `{"fee_amount":500}`)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	if err := h.EditFee(c); err == nil {
		t.Error("expected error for malformed id")
	}
}
