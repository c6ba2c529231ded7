package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type echoReply struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count"`
}

func TestJSONDo(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantErr    bool
		want       echoReply
	}{
		{name: "decodes reply", status: http.StatusOK, body: `{"name":"a","count":2}`, want: echoReply{Name: "a", Count: 2}},
		{name: "non-2xx becomes HTTPError", status: http.StatusServiceUnavailable, body: "down", wantStatus: http.StatusServiceUnavailable, wantErr: true},
		{name: "schema violation", status: http.StatusOK, body: `{"count":1}`, wantErr: true},
		{name: "malformed json", status: http.StatusOK, body: `{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
				}
				var in map[string]string
				if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in["q"] != "x" {
					t.Errorf("request body = %v, err = %v", in, err)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			var got echoReply
			err := NewJSON(srv.URL+"/", srv.Client()).Do(context.Background(), http.MethodPost, "/echo", map[string]string{"q": "x"}, &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if StatusCode(err) != tt.wantStatus {
				t.Fatalf("StatusCode = %d, want %d", StatusCode(err), tt.wantStatus)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestJSONDoNilOutAndMapOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.ContentLength > 0 {
			t.Errorf("GET without body sent %d bytes", r.ContentLength)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	j := NewJSON(srv.URL, nil)
	if err := j.Do(context.Background(), http.MethodGet, "/", nil, nil); err != nil {
		t.Fatalf("nil out: %v", err)
	}
	out := map[string]bool{}
	if err := j.Do(context.Background(), http.MethodGet, "/", nil, &out); err != nil {
		t.Fatalf("map out: %v", err)
	}
	if !out["ok"] {
		t.Fatalf("out = %v", out)
	}
}

func TestHTTPErrorTruncatesBody(t *testing.T) {
	err := error(&HTTPError{StatusCode: 500, Body: strings.Repeat("x", 300)})
	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatal("errors.As failed")
	}
	if !strings.HasSuffix(err.Error(), "...") || len(err.Error()) > 300 {
		t.Fatalf("Error() = %q", err.Error())
	}
}
