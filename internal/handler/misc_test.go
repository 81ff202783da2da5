package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/castscheduler/internal/logging"
	"github.com/iliyamo/castscheduler/internal/timezones"
)

func TestProfileHandler(t *testing.T) {
	f := &fakeProfiles{}
	h := NewProfileHandler(f, logging.Nop())
	e := echo.New()
	g := e.Group("/v1", as(5))
	g.GET("/profile", h.Get)
	g.PUT("/profile", h.Put)
	g.GET("/profile/signer", h.Signer)

	assert.Equal(t, http.StatusNotFound, call(e, http.MethodGet, "/v1/profile", "").Code)

	rec := call(e, http.MethodPut, "/v1/profile",
		`{"display_name":"Alice","farcaster_id":"42","farcaster_username":"alice","timezone":"Asia/Tokyo"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got profileResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Asia/Tokyo", got.Timezone)
	assert.Equal(t, "Current Timezone (Tokyo, Osaka, Sapporo GMT+09:00)", got.TimezoneLabel)

	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/v1/profile", "").Code)
	assert.Equal(t, http.StatusBadRequest, call(e, http.MethodPut, "/v1/profile", `{"display_name":" "}`).Code)

	rec = call(e, http.MethodGet, "/v1/profile/signer", "")
	assert.JSONEq(t, `{"linked":false}`, rec.Body.String())
	f.signer = true
	rec = call(e, http.MethodGet, "/v1/profile/signer", "")
	assert.JSONEq(t, `{"linked":true}`, rec.Body.String())
}

func TestUploadHandler(t *testing.T) {
	f := &fakeUploads{}
	h := NewUploadHandler(f, logging.Nop())
	e := echo.New()
	e.POST("/v1/uploads", h.Create, as(5))

	rec := call(e, http.MethodPost, "/v1/uploads", `{"size":2048,"content_type":"image/PNG"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "image/png", f.contentType)
	assert.JSONEq(t, `{"storage_id":"casts/2026/10/abc","upload_url":"https://s3.example/casts/2026/10/abc?sig=1"}`, rec.Body.String())

	rec = call(e, http.MethodPost, "/v1/uploads", `{"size":20971520,"content_type":"image/png"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "10MB")

	rec = call(e, http.MethodPost, "/v1/uploads", `{"size":100,"content_type":"application/pdf"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(e, http.MethodPost, "/v1/uploads", `{"content_type":"image/png"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, f.calls)
}

func TestTimezones(t *testing.T) {
	e := echo.New()
	e.GET("/v1/timezones", Timezones)

	rec := call(e, http.MethodGet, "/v1/timezones", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Timezones []timezones.Zone `json:"timezones"`
		Current   *timezones.Zone  `json:"current"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Timezones, len(timezones.All))
	assert.Nil(t, got.Current)

	rec = call(e, http.MethodGet, "/v1/timezones?current=UTC", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Current)
	assert.Equal(t, "Current Timezone (UTC GMT+00:00)", got.Current.Label)

	rec = call(e, http.MethodGet, "/v1/timezones?current=Mars/Base", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReady(t *testing.T) {
	e := echo.New()
	e.GET("/healthz", Health)
	healthy := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	e.GET("/ok", Ready(map[string]Check{"db": healthy, "redis": healthy}))
	e.GET("/bad", Ready(map[string]Check{"db": healthy, "redis": down}))

	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/healthz", "").Code)

	rec := call(e, http.MethodGet, "/ok", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"db":"ok","redis":"ok"}`, rec.Body.String())

	rec = call(e, http.MethodGet, "/bad", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"db":"ok","redis":"connection refused"}`, rec.Body.String())
}
