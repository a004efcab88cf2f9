package client_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"

	"github.com/adamwoolhether/trickle/client"
	"github.com/adamwoolhether/trickle/client/throttle"
	"github.com/adamwoolhether/trickle/pace"
)

// kvm stands in for a keyboard-emulating endpoint: it answers with the
// number of characters it was asked to type.
func kvm() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-KVMD-User") == "" {
			http.Error(w, "who are you", http.StatusForbidden)
			return
		}
		b, _ := io.ReadAll(r.Body)
		fmt.Fprintf(w, `{"typed":%d}`, len([]rune(string(b))))
	}))
}

var kvmAuth = client.WithHeaders(map[string][]string{
	"X-KVMD-User":   {"admin"},
	"X-KVMD-Passwd": {"admin"},
})

func ExampleURL() {
	u := client.URL("https", "10.0.0.5", "/api/hid/print",
		client.WithPort(443),
		client.WithQueryStrings(map[string]string{"keymap": "fr"}),
	)

	fmt.Println(u)
	// Output: https://10.0.0.5:443/api/hid/print?keymap=fr
}

func ExampleStreamRequest() {
	u := client.URL("https", "kvm.local", "/api/hid/print")

	req, err := client.StreamRequest(context.Background(), u, http.MethodPost, "echo hello", pace.Config{},
		client.WithBasicAuth("admin", "admin"),
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer req.Body.Close()

	fmt.Println(req.Method, req.URL.Path)
	fmt.Println(req.Header.Get("Content-Type"))
	fmt.Println(req.ContentLength)
	// Output:
	// POST /api/hid/print
	// application/x-www-form-urlencoded
	// -1
}

func ExampleStreamRequest_empty() {
	u := client.URL("https", "kvm.local", "/api/hid/events/send_shortcut")

	// Nothing to pace: the request is sent as is.
	req, err := client.StreamRequest(context.Background(), u, http.MethodPost, "", pace.Config{})
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(req.Body == http.NoBody, req.Header.Get("Content-Type") == "")
	// Output: true true
}

func ExampleClient_Stream() {
	ts := kvm()
	defer ts.Close()

	c, _ := client.Build()
	u, _ := url.Parse(ts.URL + "/api/hid/print")

	// 500 chars per second in chunks of 5: one chunk every 10ms.
	resp, err := c.Stream(context.Background(), u, http.MethodPost, "uname -a; uptime", pace.Config{
		CharsPerSecond: 500,
		ChunkSize:      5,
	}, kvmAuth)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	fmt.Println(resp.StatusCode, string(b))
	// Output: 200 {"typed":16}
}

func ExampleClient_Do() {
	ts := kvm()
	defer ts.Close()

	c, _ := client.Build()
	u, _ := url.Parse(ts.URL + "/api/hid/print")

	req, err := c.StreamRequest(context.Background(), u, http.MethodPost, "héllo", pace.Config{ChunkSize: 2}, kvmAuth)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	var result struct {
		Typed int `json:"typed"`
	}
	if err := c.Do(req, http.StatusOK, client.WithDestination(&result)); err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(result.Typed)
	// Output: 5
}

func ExampleClient_Expect() {
	ts := kvm()
	defer ts.Close()

	c, _ := client.Build()
	u, _ := url.Parse(ts.URL + "/api/hid/print")

	// No credentials this time.
	resp, err := c.Stream(context.Background(), u, http.MethodPost, "reboot", pace.Config{})
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	err = c.Expect(resp, 0)
	fmt.Println(errors.Is(err, client.ErrAuthFailure))

	var statusErr *client.UnexpectedStatusError
	if errors.As(err, &statusErr) {
		fmt.Println(statusErr.StatusCode, strings.TrimSpace(statusErr.Body))
	}
	// Output:
	// true
	// 403 who are you
}

func ExampleWithBodyWriter() {
	ts := kvm()
	defer ts.Close()

	c, _ := client.Build()
	u, _ := url.Parse(ts.URL + "/api/hid/print")

	resp, err := c.Stream(context.Background(), u, http.MethodPost, "ls -la", pace.Config{}, kvmAuth)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	if err := c.Expect(resp, http.StatusOK, client.WithBodyWriter(os.Stdout)); err != nil {
		fmt.Println("error:", err)
	}
	// Output: {"typed":6}
}

func ExampleWithThrottleConfig() {
	// One paced body in flight at a time, at most one new request per second.
	c, err := client.Build(client.WithThrottleConfig(throttle.Config{
		RPS:         1,
		Burst:       1,
		MaxInFlight: 1,
	}))
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	_ = c
	fmt.Println("ok")
	// Output: ok
}

func ExampleWithRequestID() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.Header.Get("X-Request-ID") != "")
	}))
	defer ts.Close()

	c, _ := client.Build(client.WithRequestID("X-Request-ID"))
	u, _ := url.Parse(ts.URL)

	resp, err := c.Stream(context.Background(), u, http.MethodPost, "id", pace.Config{})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	// Output: true
}

func ExampleWithProgress() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Progress lines go to the client's logger while a body is paced.
	c, err := client.Build(client.WithLogger(logger), client.WithProgress())
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	_ = c
	fmt.Println("ok")
	// Output: ok
}

func ExampleWithNoFollowRedirects() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}))
	defer ts.Close()

	c, _ := client.Build(client.WithNoFollowRedirects())
	u, _ := url.Parse(ts.URL + "/api/hid/print")

	resp, err := c.Stream(context.Background(), u, http.MethodPost, "whoami", pace.Config{})
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Println(c.Expect(resp, http.StatusSeeOther), resp.Header.Get("Location"))
	// Output: <nil> /login
}

func ExampleWithContentType() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.Header.Get("Content-Type"))
	}))
	defer ts.Close()

	c, _ := client.Build()
	u, _ := url.Parse(ts.URL)

	resp, err := c.Stream(context.Background(), u, http.MethodPost, "plain text", pace.Config{},
		client.WithContentType("text/plain"),
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	// Output: text/plain
}

func ExampleWithCookies() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("auth_token")
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, cookie.Value)
	}))
	defer ts.Close()

	c, _ := client.Build()
	u, _ := url.Parse(ts.URL + "/api/hid/print")

	// A session cookie from a prior login instead of per-request credentials.
	resp, err := c.Stream(context.Background(), u, http.MethodPost, "ls", pace.Config{},
		client.WithCookies(&http.Cookie{Name: "auth_token", Value: "5e55i0n"}),
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	if err := c.Expect(resp, http.StatusOK, client.WithBodyWriter(os.Stdout)); err != nil {
		fmt.Println("error:", err)
	}
	// Output: 5e55i0n
}
