package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kendra-chatbot/internal/domain"
)

var testSampling = domain.SamplingConfig{MaxTokens: 2000, Temperature: 1, TopP: 0.999, TopK: 250}

func TestChatURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/v1/chat/completions"},
		{"", "https://api.openai.com/v1/chat/completions"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, chatURL(tc.base), "base=%q", tc.base)
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil, "/kendra-chatbot", "gpt-4o-mini")
	require.ErrorContains(t, err, "nil")

	_, err = NewClient(&fakeGetter{}, "/kendra-chatbot", " ")
	require.ErrorContains(t, err, "model")

	_, err = NewClient(&fakeGetter{}, "/", "gpt-4o-mini")
	require.ErrorContains(t, err, "prefix")
}

func TestNewClient_Valid(t *testing.T) {
	c, err := NewClient(&fakeGetter{}, "/kendra-chatbot/", "gpt-4o-mini")
	require.NoError(t, err)
	require.Equal(t, "https://api.openai.com/v1", c.baseURL)
	require.Equal(t, "/kendra-chatbot/open-ai-token", c.tokenParameterName())
}

// fakeGetter is a minimal paramstore.Getter stub for use within this package.
type fakeGetter struct {
	val    string
	err    error
	name   string
	onCall func()
}

func (f *fakeGetter) GetParameter(_ context.Context, name string) (string, error) {
	f.name = name
	if f.onCall != nil {
		f.onCall()
	}
	return f.val, f.err
}

func TestResolveAPIKey_FetchedOnce(t *testing.T) {
	calls := 0
	g := &fakeGetter{val: `{"token":"sk-from-ssm"}`}
	g.onCall = func() { calls++ }
	c, err := NewClient(g, "/kendra-chatbot", "gpt-4o-mini")
	require.NoError(t, err)

	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-from-ssm", key)
	require.Equal(t, "/kendra-chatbot/open-ai-token", g.name)

	_, _ = c.resolveAPIKey(context.Background())
	_, _ = c.resolveAPIKey(context.Background())
	require.Equal(t, 1, calls)
}

func TestResolveAPIKey_RetriesAfterFailure(t *testing.T) {
	calls := 0
	g := &fakeGetter{err: errors.New("ThrottlingException")}
	g.onCall = func() { calls++ }
	c, err := NewClient(g, "/kendra-chatbot", "gpt-4o-mini")
	require.NoError(t, err)

	_, err = c.resolveAPIKey(context.Background())
	require.ErrorContains(t, err, "ThrottlingException")

	g.err = nil
	g.val = `{"token":"sk-recovered"}`
	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-recovered", key)
	require.Equal(t, 2, calls)

	g.err = errors.New("should not be fetched again")
	key, err = c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-recovered", key)
	require.Equal(t, 2, calls)
}

func TestFetchAPIKey(t *testing.T) {
	cases := []struct {
		name    string
		getter  Getter
		param   string
		want    string
		wantErr string
	}{
		{name: "json token", getter: &fakeGetter{val: `{"token":"sk-from-json"}`}, param: "/p/open-ai-token", want: "sk-from-json"},
		{name: "missing token field", getter: &fakeGetter{val: `{"other":"value"}`}, param: "/p/open-ai-token", wantErr: "API token is empty"},
		{name: "malformed json", getter: &fakeGetter{val: `{"broken`}, param: "/p/open-ai-token", wantErr: "unmarshal"},
		{name: "getter error", getter: &fakeGetter{err: errors.New("ssm unavailable")}, param: "/p/open-ai-token", wantErr: "ssm unavailable"},
		{name: "nil getter", getter: nil, param: "/p/open-ai-token", wantErr: "nil"},
		{name: "empty name", getter: &fakeGetter{val: `{"token":"x"}`}, param: " ", wantErr: "empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := fetchAPIKeyFromParamStore(context.Background(), tc.getter, tc.param)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, key)
		})
	}
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(
		&fakeGetter{val: `{"token":"sk-test"}`},
		"/kendra-chatbot",
		"gpt-mock",
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func TestGenerate_HappyPath(t *testing.T) {
	var sent map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if r.URL.Path != "/v1/chat/completions" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &sent)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-123",
			"choices": [{
				"index": 0,
				"message": { "role": "assistant", "content": "SageMaker is a managed ML service." },
				"finish_reason": "stop"
			}]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	got, err := c.Generate(context.Background(), "What is SageMaker?", testSampling)
	require.NoError(t, err)
	require.Equal(t, "SageMaker is a managed ML service.", got)

	require.Equal(t, "Bearer sk-test", auth)
	require.Equal(t, "gpt-mock", sent["model"])
	require.EqualValues(t, 2000, sent["max_tokens"])
	require.EqualValues(t, 1, sent["temperature"])
	require.EqualValues(t, 0.999, sent["top_p"])
	require.NotContains(t, sent, "top_k")
	msgs := sent["messages"].([]any)
	require.Len(t, msgs, 1)
	require.Equal(t, map[string]any{"role": "user", "content": "What is SageMaker?"}, msgs[0])
}

func TestGenerate_UpstreamStatus(t *testing.T) {
	for _, status := range []int{400, 429, 500} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))

		c := newTestClient(t, srv)
		_, err := c.Generate(context.Background(), "hi", testSampling)
		srv.Close()

		require.Error(t, err)
		require.Contains(t, err.Error(), "unexpected status")
		var statusErr *HTTPStatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, status, statusErr.HTTPStatusCode())
	}
}

func TestGenerate_BadResponses(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "invalid json", body: `not-a-json`, want: "decode response"},
		{name: "no choices", body: `{"choices":[]}`, want: "no choices"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv).Generate(context.Background(), "hi", testSampling)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestGenerate_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Generate(context.Background(), "hi", testSampling)
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}

func TestGenerate_TokenFailure(t *testing.T) {
	c, err := NewClient(&fakeGetter{err: errors.New("AccessDenied")}, "/kendra-chatbot", "gpt-mock")
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), "hi", testSampling)
	require.ErrorContains(t, err, "AccessDenied")
}
