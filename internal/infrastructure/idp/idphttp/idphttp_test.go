package idphttp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/firefly/security-center/internal/core/domain"
)

func TestClassifyStatus(t *testing.T) {
	cases := map[int]error{
		http.StatusBadRequest:           domain.ErrInvalidCredentials,
		http.StatusUnauthorized:         domain.ErrInvalidCredentials,
		http.StatusForbidden:            domain.ErrInvalidCredentials,
		http.StatusTooManyRequests:      domain.ErrProviderUnavailable,
		http.StatusBadGateway:           domain.ErrProviderUnavailable,
		http.StatusServiceUnavailable:   domain.ErrProviderUnavailable,
		http.StatusNotFound:             domain.ErrMalformedResponse,
		http.StatusUnsupportedMediaType: domain.ErrMalformedResponse,
	}
	for status, want := range cases {
		require.ErrorIs(t, ClassifyStatus(status), want, "status %d", status)
	}
}

func TestDo_DecodesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("k") != "v" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	}))
	defer srv.Close()

	req, err := PostForm(context.Background(), srv.URL, url.Values{"k": {"v"}})
	require.NoError(t, err)

	var out struct{ Name string }
	require.NoError(t, Do(srv.Client(), req, &out, nil))
	require.Equal(t, "ok", out.Name)
}

func TestDo_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid user credentials"}`))
	}))
	defer srv.Close()

	req, _ := PostForm(context.Background(), srv.URL, nil)
	err := Do(srv.Client(), req, nil, nil)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "invalid_grant", se.Code)
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
	require.True(t, IsCode(err, "INVALID_GRANT"))
}

func TestDo_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	var out map[string]any
	require.ErrorIs(t, Do(srv.Client(), req, &out, nil), domain.ErrMalformedResponse)
}

func TestDo_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	req, _ := http.NewRequest(http.MethodGet, addr, nil)
	require.ErrorIs(t, Do(http.DefaultClient, req, nil, nil), domain.ErrProviderUnavailable)
}
