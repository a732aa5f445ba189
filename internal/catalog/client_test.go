package catalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/astghikaramyan/resource-service/internal/apperror"
	testutils "github.com/astghikaramyan/resource-service/internal/testing"
	"github.com/astghikaramyan/resource-service/internal/traceid"
	"github.com/stretchr/testify/assert"
)

type scriptedResponse struct {
	statusCode int
	body       string
	err        error
}

type fakeDoer struct {
	responses []scriptedResponse
	requests  []*http.Request
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req)
	response := f.responses[0]
	f.responses = f.responses[1:]
	if response.err != nil {
		return nil, response.err
	}
	return &http.Response{
		StatusCode: response.statusCode,
		Body:       io.NopCloser(bytes.NewReader([]byte(response.body))),
	}, nil
}

func TestDeleteSongByResourceIdLooksUpThenDeletes(t *testing.T) {
	testutils.SkipIfIntegration(t)

	doer := &fakeDoer{responses: []scriptedResponse{
		{statusCode: http.StatusOK, body: `{"id":42}`},
		{statusCode: http.StatusOK, body: `{"ids":[42]}`},
	}}
	client := NewClient(doer, "http://song-service")

	err := client.DeleteSongByResourceId(context.Background(), 7)
	assert.NoError(t, err)
	assert.Len(t, doer.requests, 2)
	assert.Equal(t, http.MethodGet, doer.requests[0].Method)
	assert.Equal(t, "http://song-service/songs/resource-identifiers/7", doer.requests[0].URL.String())
	assert.Equal(t, http.MethodDelete, doer.requests[1].Method)
	assert.Equal(t, "http://song-service/songs?id=42", doer.requests[1].URL.String())
}

func TestDeleteSongByResourceIdNoSongIsNoOp(t *testing.T) {
	testutils.SkipIfIntegration(t)

	doer := &fakeDoer{responses: []scriptedResponse{
		{statusCode: http.StatusNotFound},
	}}
	client := NewClient(doer, "http://song-service")

	err := client.DeleteSongByResourceId(context.Background(), 7)
	assert.NoError(t, err)
	assert.Len(t, doer.requests, 1)
}

func TestDeleteSongByResourceIdPropagatesTraceId(t *testing.T) {
	testutils.SkipIfIntegration(t)

	doer := &fakeDoer{responses: []scriptedResponse{
		{statusCode: http.StatusNotFound},
	}}
	client := NewClient(doer, "http://song-service")

	ctx := traceid.ContextWith(context.Background(), "trace-9")
	assert.NoError(t, client.DeleteSongByResourceId(ctx, 7))
	assert.Equal(t, "trace-9", doer.requests[0].Header.Get(traceid.Header))
}

func TestDeleteSongByResourceIdLookupFailure(t *testing.T) {
	testutils.SkipIfIntegration(t)

	doer := &fakeDoer{responses: []scriptedResponse{
		{err: errors.New("connection refused")},
	}}
	client := NewClient(doer, "http://song-service")

	err := client.DeleteSongByResourceId(context.Background(), 7)
	assert.Equal(t, apperror.KindMetadataServiceFailure, apperror.KindOf(err))
	assert.Contains(t, err.Error(), "Resource operation could not be completed")
}

func TestDeleteSongByResourceIdErrorStatus(t *testing.T) {
	testutils.SkipIfIntegration(t)

	doer := &fakeDoer{responses: []scriptedResponse{
		{statusCode: http.StatusOK, body: `{"id":42}`},
		{statusCode: http.StatusInternalServerError},
	}}
	client := NewClient(doer, "http://song-service")

	err := client.DeleteSongByResourceId(context.Background(), 7)
	assert.Equal(t, apperror.KindMetadataServiceFailure, apperror.KindOf(err))
}
