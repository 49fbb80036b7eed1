package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ThomasRohde/Agent0-sub003/value"
)

func TestHTTPGetReturnsStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("ack"))
	}))
	defer srv.Close()

	tool := HTTPGet(srv.Client())
	out, err := tool.Execute(context.Background(), rec(value.Entry{Key: "url", Value: value.NewString(srv.URL)}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	status, _ := out.Get("status")
	if status.AsNumber() != http.StatusCreated {
		t.Fatalf("expected status 201, got %v", status)
	}
	body, _ := out.Get("body")
	if body.AsString() != "ack" {
		t.Fatalf("expected body 'ack', got %v", body)
	}
}
