package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
)

type memTokens struct {
	token   string
	cleared bool
}

func (m *memTokens) Token() (string, error) {
	if m.token == "" {
		return "", ErrAuthRequired
	}
	return m.token, nil
}

func (m *memTokens) Clear() error {
	m.token = ""
	m.cleared = true
	return nil
}

func TestSubmitMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != EndpointSubmit {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm() error = %v", err)
		}
		if got := r.FormValue("prompt"); got != "shorten sleeves; add pocket" {
			t.Errorf("prompt = %q", got)
		}
		if got := r.FormValue("fileType"); got != "image" {
			t.Errorf("fileType = %q", got)
		}
		for field, want := range map[string]string{"file": "primary", "image_2": "second", "image_3": "third"} {
			f, _, err := r.FormFile(field)
			if err != nil {
				t.Errorf("FormFile(%q) error = %v", field, err)
				continue
			}
			data, _ := io.ReadAll(f)
			f.Close()
			if string(data) != want {
				t.Errorf("%s = %q, want %q", field, data, want)
			}
		}
		if _, _, err := r.FormFile("image_4"); err == nil {
			t.Error("image_4 should be absent")
		}
		json.NewEncoder(w).Encode(SubmitResponse{TaskID: "t-1", Status: "pending"})
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", &memTokens{token: "secret"})
	resp, err := c.Submit(context.Background(), SubmitRequest{
		Primary:   Image{Data: []byte("primary")},
		Secondary: []Image{{Data: []byte("second")}, {Data: []byte("third")}},
		Prompt:    "shorten sleeves; add pocket",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if resp.TaskID != "t-1" || resp.Status != StatusPending {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSubmitValidation(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	c := NewClient(server.URL, &memTokens{})
	_, err := c.Submit(context.Background(), SubmitRequest{Primary: Image{Data: []byte("x")}})
	if !errors.Is(err, ErrAuthRequired) {
		t.Errorf("no token: error = %v, want ErrAuthRequired", err)
	}

	c = NewClient(server.URL, &memTokens{token: "t"})
	four := make([]Image, 4)
	if _, err := c.Submit(context.Background(), SubmitRequest{Primary: Image{Data: []byte("x")}, Secondary: four}); err == nil {
		t.Error("four secondary images should be rejected")
	}
	if _, err := c.Submit(context.Background(), SubmitRequest{}); err == nil {
		t.Error("missing primary should be rejected")
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("server saw %d requests, want 0", n)
	}
}

func TestStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/proxy/tasks/abc" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"taskId":"abc","status":"SUCCESS","progress":100,"message":"done"}`))
	}))
	defer server.Close()

	resp, err := NewClient(server.URL, &memTokens{token: "t"}).Status(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !resp.Status.Terminal() || resp.Progress == nil || *resp.Progress != 100 || resp.Message != "done" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestComplete(t *testing.T) {
	tests := []struct {
		name string
		body string
		want func(base string) []string
	}{
		{
			name: "storage paths",
			body: `{"storagePaths":["output\\eason\\20250926_093357.png","output/eason/b.png"]}`,
			want: func(base string) []string {
				return []string{
					base + "/proxy/static/images/eason/20250926_093357.png",
					base + "/proxy/static/images/eason/b.png",
				}
			},
		},
		{
			name: "outputs",
			body: `{"outputs":["https://cdn.example.com/1.png"]}`,
			want: func(string) []string { return []string{"https://cdn.example.com/1.png"} },
		},
		{
			name: "empty",
			body: `{}`,
			want: func(string) []string { return nil },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/proxy/tasks/t-9/complete" {
					t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
				}
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			got, err := NewClient(server.URL, &memTokens{token: "t"}).Complete(context.Background(), "t-9")
			if err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			if want := tt.want(server.URL); !reflect.DeepEqual(got, want) {
				t.Errorf("Complete() = %v, want %v", got, want)
			}
		})
	}
}

func TestRemoteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"detail string", http.StatusBadRequest, `{"detail":"prompt too long"}`, "prompt too long"},
		{"detail list", http.StatusUnprocessableEntity, `{"detail":[{"msg":"field required"}]}`, "field required"},
		{"message", http.StatusInternalServerError, `{"message":"workflow crashed"}`, "workflow crashed"},
		{"no body", http.StatusBadGateway, ``, "HTTP 502: Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, &memTokens{token: "t"}).Status(context.Background(), "x")
			var remote *RemoteError
			if !errors.As(err, &remote) {
				t.Fatalf("error = %v, want *RemoteError", err)
			}
			if remote.Status != tt.status || remote.Message != tt.wantMsg {
				t.Errorf("remote = %+v, want %d %q", remote, tt.status, tt.wantMsg)
			}
			if !errors.Is(err, ErrRequestFailed) {
				t.Error("RemoteError should match ErrRequestFailed")
			}
		})
	}
}

func TestUnauthorizedClearsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := &memTokens{token: "stale"}
	_, err := NewClient(server.URL, tokens).History(context.Background(), 1)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
	if !tokens.cleared {
		t.Error("token should be cleared on 401")
	}
}

func TestHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != EndpointHistory || r.URL.Query().Get("page") != "2" {
			t.Errorf("unexpected %s", r.URL)
		}
		w.Write([]byte(`[{"id":7,"tenant_task_id":"t-7","task_type":"redesign","status":"SUCCESS",
			"created_at":"2025-09-26T09:33:57.123456","completed_at":null,
			"image_urls":["https://cdn/x.png"],"error_message":null}]`))
	}))
	defer server.Close()

	items, err := NewClient(server.URL, &memTokens{token: "t"}).History(context.Background(), 2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(items) != 1 || items[0].TenantTaskID != "t-7" || items[0].CompletedAt != nil {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Created().Year() != 2025 {
		t.Errorf("Created() = %v", items[0].Created())
	}
}

func TestContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(server.URL, &memTokens{token: "t"}).Status(ctx, "x")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
