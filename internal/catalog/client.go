package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/astghikaramyan/resource-service/internal/apperror"
	"github.com/astghikaramyan/resource-service/internal/traceid"
)

// Client talks to the song metadata catalog service. Retrying is owned by
// the orchestrator, which treats the catalog deletion and the local record
// deletion as one logical step.
type Client interface {
	DeleteSongByResourceId(ctx context.Context, resourceId int64) error
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type httpClient struct {
	httpClient httpDoer
	baseUrl    string
}

func NewClient(doer httpDoer, baseUrl string) Client {
	return &httpClient{
		httpClient: doer,
		baseUrl:    baseUrl,
	}
}

type songDto struct {
	Id int64 `json:"id"`
}

// DeleteSongByResourceId looks the song up by its resource id and deletes
// it by its internal id. A catalog without a song for the resource is not
// an error; the metadata may never have been extracted.
func (c *httpClient) DeleteSongByResourceId(ctx context.Context, resourceId int64) error {
	song, err := c.findSongByResourceId(ctx, resourceId)
	if err != nil {
		return err
	}
	if song == nil {
		return nil
	}
	return c.deleteSongById(ctx, song.Id)
}

func (c *httpClient) findSongByResourceId(ctx context.Context, resourceId int64) (*songDto, error) {
	url := fmt.Sprintf("%s/songs/resource-identifiers/%d", c.baseUrl, resourceId)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(ctx, req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindMetadataServiceFailure, "Resource operation could not be completed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperror.Newf(apperror.KindMetadataServiceFailure, "Metadata service responded with status %d for resource ID=%d", resp.StatusCode, resourceId)
	}
	var song songDto
	err = json.NewDecoder(resp.Body).Decode(&song)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindMetadataServiceFailure, "Resource operation could not be completed", err)
	}
	return &song, nil
}

func (c *httpClient) deleteSongById(ctx context.Context, songId int64) error {
	url := fmt.Sprintf("%s/songs?id=%d", c.baseUrl, songId)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	c.setHeaders(ctx, req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperror.Wrap(apperror.KindMetadataServiceFailure, "Resource operation could not be completed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apperror.Newf(apperror.KindMetadataServiceFailure, "Metadata service responded with status %d deleting song ID=%d", resp.StatusCode, songId)
	}
	return nil
}

func (c *httpClient) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if traceId := traceid.FromContext(ctx); traceId != "" {
		req.Header.Set(traceid.Header, traceId)
	}
}
