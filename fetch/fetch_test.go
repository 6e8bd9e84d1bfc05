package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdb "github.com/symboldb/symboldb"
)

func TestGetSurfacesMetadata(t *testing.T) {
	const body = "package listing contents"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := New()
	res, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if res.FinalURL != srv.URL {
		t.Fatalf("final url = %q, want %q", res.FinalURL, srv.URL)
	}
	if res.LastModified.IsZero() {
		t.Fatal("expected a parsed Last-Modified")
	}
	got, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != body {
		t.Fatalf("body = %q, want %q", got, body)
	}
}

func TestGetFollowsRedirect(t *testing.T) {
	var final *httptest.Server
	final = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer final.Close()

	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusFound)
	}))
	defer redirecting.Close()

	c := New()
	res, err := c.Get(context.Background(), redirecting.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.FinalURL != final.URL {
		t.Fatalf("final url = %q, want %q", res.FinalURL, final.URL)
	}
}

func TestGetNonOKStatusIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New()
	_, err := c.Get(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
}

func TestGetReportsContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("exactly17bytes!!!"))
	}))
	defer srv.Close()

	c := New()
	res, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	io.ReadAll(res.Body)
	if res.Length != 17 {
		t.Fatalf("length = %d, want 17 (sentinel %d)", res.Length, sdb.NoLength)
	}
}

func TestStallGuardAbortsOnLowThroughput(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		pw.Write([]byte("a"))
		time.Sleep(20 * time.Millisecond)
		pw.Write([]byte("b"))
	}()
	g := newStallGuard(pr, 1000000, 5*time.Millisecond, "u", "u", "1.2.3.4:80")

	buf := make([]byte, 16)
	if _, err := g.Read(buf); err != nil {
		t.Fatalf("first read: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := g.Read(buf); err == nil {
		t.Fatal("expected a stalled-transfer error")
	}
}
