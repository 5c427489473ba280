package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/reqchain/pkg/auth"
	"github.com/getmockd/reqchain/pkg/workflow"
)

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Query", r.URL.RawQuery)
		w.Header().Set("X-Auth", r.Header.Get("Authorization"))
		w.Header().Set("X-Content-Type", r.Header.Get("Content-Type"))
		w.Header().Set("X-Agent", r.Header.Get("User-Agent"))
		_, _ = w.Write(body)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "s-1", Path: "/"})
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("session")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(c.Value))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/fail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"down"}`))
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/echo", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDispatch_Request(t *testing.T) {
	srv := echoServer(t)
	c, err := New(Config{})
	require.NoError(t, err)

	resp, err := c.Dispatch(context.Background(), &workflow.RequestSpec{
		Method: "post",
		URL:    srv.URL + "/echo?fixed=1",
		Query:  map[string]string{"page": "2"},
		Body:   `{"name":"ann"}`,
	})
	require.NoError(t, err)

	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, `{"name":"ann"}`, resp.Body)
	assert.Equal(t, "POST", resp.Headers.Get("X-Method"))
	assert.Equal(t, "fixed=1&page=2", resp.Headers.Get("X-Query"))
	assert.Equal(t, "application/json", resp.Headers.Get("X-Content-Type"))
	assert.Equal(t, "reqchain", resp.Headers.Get("X-Agent"))
	assert.Greater(t, resp.Elapsed, time.Duration(0))

	doc, err := resp.JSON()
	require.NoError(t, err)
	name, _ := doc.Field("name")
	assert.Equal(t, "ann", name.String())
}

func TestDispatch_ErrorStatusIsResponse(t *testing.T) {
	srv := echoServer(t)
	c, err := New(Config{})
	require.NoError(t, err)

	resp, err := c.Dispatch(context.Background(), &workflow.RequestSpec{Method: "GET", URL: srv.URL + "/fail"})
	require.NoError(t, err)
	assert.Equal(t, 503, resp.Status)
}

func TestDispatch_AuthPrecedence(t *testing.T) {
	srv := echoServer(t)
	acq := auth.NewAcquirer(nil, nil)
	cred := auth.Credential{Kind: auth.KindBearer, Bearer: &auth.Bearer{Token: "from-auth"}}

	c, err := New(Config{Headers: map[string]string{"Authorization": "from-defaults"}}, WithAuth(acq.Source(cred)))
	require.NoError(t, err)

	resp, err := c.Dispatch(context.Background(), &workflow.RequestSpec{Method: "GET", URL: srv.URL + "/echo"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer from-auth", resp.Headers.Get("X-Auth"))

	resp, err = c.Dispatch(context.Background(), &workflow.RequestSpec{
		Method:  "GET",
		URL:     srv.URL + "/echo",
		Headers: map[string]string{"Authorization": "Bearer from-step"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer from-step", resp.Headers.Get("X-Auth"))
}

func TestDispatch_AuthFailure(t *testing.T) {
	c, err := New(Config{}, WithAuth(func(context.Context) (auth.Material, error) {
		return auth.Material{}, errors.New("token endpoint down")
	}))
	require.NoError(t, err)

	_, err = c.Dispatch(context.Background(), &workflow.RequestSpec{Method: "GET", URL: "http://127.0.0.1:1/x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token endpoint down")
}

func TestDispatch_Cookies(t *testing.T) {
	srv := echoServer(t)

	c, err := New(Config{})
	require.NoError(t, err)
	_, err = c.Dispatch(context.Background(), &workflow.RequestSpec{Method: "POST", URL: srv.URL + "/login"})
	require.NoError(t, err)
	resp, err := c.Dispatch(context.Background(), &workflow.RequestSpec{Method: "GET", URL: srv.URL + "/whoami"})
	require.NoError(t, err)
	assert.Equal(t, "s-1", resp.Body)

	noJar, err := New(Config{NoCookies: true})
	require.NoError(t, err)
	_, err = noJar.Dispatch(context.Background(), &workflow.RequestSpec{Method: "POST", URL: srv.URL + "/login"})
	require.NoError(t, err)
	resp, err = noJar.Dispatch(context.Background(), &workflow.RequestSpec{Method: "GET", URL: srv.URL + "/whoami"})
	require.NoError(t, err)
	assert.Equal(t, 401, resp.Status)
}

func TestClient_ResetCookies(t *testing.T) {
	srv := echoServer(t)

	c, err := New(Config{})
	require.NoError(t, err)
	_, err = c.Dispatch(context.Background(), &workflow.RequestSpec{Method: "POST", URL: srv.URL + "/login"})
	require.NoError(t, err)

	require.NoError(t, c.ResetCookies())
	resp, err := c.Dispatch(context.Background(), &workflow.RequestSpec{Method: "GET", URL: srv.URL + "/whoami"})
	require.NoError(t, err)
	assert.Equal(t, 401, resp.Status)
}

func TestDispatch_Timeout(t *testing.T) {
	srv := echoServer(t)
	c, err := New(Config{})
	require.NoError(t, err)

	_, err = c.Dispatch(context.Background(), &workflow.RequestSpec{
		Method:  "GET",
		URL:     srv.URL + "/slow",
		Timeout: 50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestDispatch_Redirects(t *testing.T) {
	srv := echoServer(t)

	follow, err := New(Config{})
	require.NoError(t, err)
	resp, err := follow.Dispatch(context.Background(), &workflow.RequestSpec{Method: "GET", URL: srv.URL + "/redirect"})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)

	stay, err := New(Config{NoFollowRedirects: true})
	require.NoError(t, err)
	resp, err = stay.Dispatch(context.Background(), &workflow.RequestSpec{Method: "GET", URL: srv.URL + "/redirect"})
	require.NoError(t, err)
	assert.Equal(t, 302, resp.Status)
	assert.Equal(t, "/echo", resp.Headers.Get("Location"))
}

func TestDispatch_BodyLimit(t *testing.T) {
	srv := echoServer(t)
	c, err := New(Config{MaxBodyBytes: 4})
	require.NoError(t, err)

	resp, err := c.Dispatch(context.Background(), &workflow.RequestSpec{Method: "POST", URL: srv.URL + "/echo", Body: "abcd"})
	require.NoError(t, err)
	assert.Equal(t, "abcd", resp.Body, "a body exactly at the limit is kept")

	_, err = c.Dispatch(context.Background(), &workflow.RequestSpec{Method: "POST", URL: srv.URL + "/echo", Body: "abcdefgh"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	assert.Contains(t, err.Error(), "more than 4 bytes")
}

func TestDispatch_InvalidURL(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)

	_, err = c.Dispatch(context.Background(), &workflow.RequestSpec{Method: "GET", URL: "/relative/path"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme and host")
}

// recordingClient is an HTTPClient that never touches the network.
type recordingClient struct {
	reqs []*http.Request
}

func (r *recordingClient) Do(req *http.Request) (*http.Response, error) {
	r.reqs = append(r.reqs, req)
	return &http.Response{
		StatusCode: 201,
		Header:     http.Header{"Location": []string{"/items/1"}},
		Body:       io.NopCloser(strings.NewReader(`{"id":1}`)),
	}, nil
}

func TestDispatch_WithHTTPClient(t *testing.T) {
	rc := &recordingClient{}
	c, err := New(Config{Headers: map[string]string{"Accept": "application/json"}}, WithHTTPClient(rc))
	require.NoError(t, err)

	resp, err := c.Dispatch(context.Background(), &workflow.RequestSpec{
		Method:  "PUT",
		URL:     "https://api.test/items/1",
		Headers: map[string]string{"Host": "internal.api"},
	})
	require.NoError(t, err)
	assert.Equal(t, 201, resp.Status)
	v, ok := resp.Header("location")
	assert.True(t, ok)
	assert.Equal(t, "/items/1", v)

	require.Len(t, rc.reqs, 1)
	assert.Equal(t, "application/json", rc.reqs[0].Header.Get("Accept"))
	assert.Equal(t, "internal.api", rc.reqs[0].Host)
}
