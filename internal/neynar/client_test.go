package neynar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupSigner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/farcaster/signer", r.URL.Path)
		assert.Equal(t, "abc-123", r.URL.Query().Get("signer_uuid"))
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte(`{"signer_uuid":"abc-123","fid":1234,"status":"approved","public_key":"0x"}`))
	}))
	defer srv.Close()

	s, err := New(srv.URL+"/", "key", time.Second).LookupSigner(context.Background(), "abc-123")
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), s.FID)
	assert.Equal(t, SignerApproved, s.Status)
}

func TestLookupSigner_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Signer not found"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "key", time.Second).LookupSigner(context.Background(), "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Contains(t, apiErr.Body, "Signer not found")
}

func TestPublishCast(t *testing.T) {
	var got CastRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/farcaster/cast", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"cast":{"hash":"0xabc"}}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, "key", time.Second).PublishCast(context.Background(), CastRequest{
		SignerUUID: "s", Text: "gm", Embeds: []Embed{{URL: "https://img/1.png"}},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "0xabc", res.Cast.Hash)
	assert.Equal(t, "gm", got.Text)
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "https://img/1.png", got.Embeds[0].URL)
}

func TestPublishCast_OmitsEmptyEmbeds(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "key", time.Second).PublishCast(context.Background(), CastRequest{SignerUUID: "s", Text: "gm"})
	require.NoError(t, err)
	_, has := raw["embeds"]
	assert.False(t, has)
}

func TestPublishCast_ErrorCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("signer revoked\n"))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "key", time.Second).PublishCast(context.Background(), CastRequest{SignerUUID: "s", Text: "gm"})
	require.Error(t, err)
	assert.Equal(t, "neynar: 403 signer revoked", err.Error())
}
