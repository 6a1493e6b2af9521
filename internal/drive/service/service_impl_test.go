package service

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallbiznis/drivebridge/internal/config"
	"github.com/smallbiznis/drivebridge/internal/drive/domain"
	"github.com/smallbiznis/drivebridge/internal/googleapi"
	authdomain "github.com/smallbiznis/drivebridge/internal/googleauth/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubAuth struct {
	authdomain.Service
	token string
}

func (s stubAuth) AccessToken(context.Context) (string, error) {
	if s.token == "" {
		return "", authdomain.ErrUnauthenticated
	}
	return s.token, nil
}

func newTestService(t *testing.T, token string, h http.Handler) *Service {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.Config{Google: config.GoogleConfig{
		DriveAPIURL:       srv.URL + "/drive/v3/files",
		DriveUploadURL:    srv.URL + "/upload/drive/v3/files",
		HTTPClientTimeout: 2 * time.Second,
	}}
	return New(Params{Cfg: cfg, Log: zap.NewNop(), Auth: stubAuth{token: token}}).(*Service)
}

func TestListFilesClampsPageSize(t *testing.T) {
	cases := []struct {
		name string
		in   int
		want string
	}{
		{name: "zero", in: 0, want: "1"},
		{name: "negative", in: -7, want: "1"},
		{name: "explicit", in: 50, want: "50"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got url.Values
			svc := newTestService(t, "ya29.token", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.URL.Query()
				_, _ = w.Write([]byte(`{"files":[]}`))
			}))

			_, err := svc.ListFiles(context.Background(), domain.ListFilesRequest{PageSize: tc.in})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Get("pageSize"))
		})
	}
}

func TestListFilesRequest(t *testing.T) {
	var (
		gotQuery url.Values
		gotAuth  string
	)
	svc := newTestService(t, "ya29.token", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{
			"nextPageToken": "next-1",
			"files": [
				{"id": "f1", "name": "a.txt", "mimeType": "text/plain", "size": "12"},
				{"id": "f2", "name": "Reports", "mimeType": "application/vnd.google-apps.folder"}
			]
		}`))
	}))

	out, err := svc.ListFiles(context.Background(), domain.ListFilesRequest{
		PageSize:  domain.DefaultPageSize,
		PageToken: "prev",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer ya29.token", gotAuth)
	assert.Equal(t, "trashed=false", gotQuery.Get("q"))
	assert.Equal(t, domain.ListFields, gotQuery.Get("fields"))
	assert.Equal(t, "prev", gotQuery.Get("pageToken"))
	assert.Equal(t, "20", gotQuery.Get("pageSize"))

	assert.Equal(t, "next-1", out.NextPageToken)
	require.Len(t, out.Files, 2)
	assert.Equal(t, "f1", out.Files[0].ID)
	assert.Equal(t, "12", out.Files[0].Size)
	assert.Equal(t, "Reports", out.Files[1].Name)
}

func TestListFilesEmptyResponse(t *testing.T) {
	svc := newTestService(t, "ya29.token", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	out, err := svc.ListFiles(context.Background(), domain.ListFilesRequest{})
	require.NoError(t, err)
	assert.NotNil(t, out.Files)
	assert.Empty(t, out.Files)
	assert.Equal(t, "", out.NextPageToken)
}

func TestOperationsRequireToken(t *testing.T) {
	var calls atomic.Int32
	svc := newTestService(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	ctx := context.Background()

	_, err := svc.ListFiles(ctx, domain.ListFilesRequest{})
	assert.ErrorIs(t, err, authdomain.ErrUnauthenticated)
	_, err = svc.UploadFile(ctx, domain.UploadRequest{Name: "a.txt", Content: []byte("x")})
	assert.ErrorIs(t, err, authdomain.ErrUnauthenticated)
	_, err = svc.DownloadLink(ctx, "f1")
	assert.ErrorIs(t, err, authdomain.ErrUnauthenticated)
	_, err = svc.CreateFolder(ctx, "Reports")
	assert.ErrorIs(t, err, authdomain.ErrUnauthenticated)

	assert.Equal(t, int32(0), calls.Load())
}

func TestProviderErrorMessagePassesThrough(t *testing.T) {
	svc := newTestService(t, "ya29.token", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"The user does not have sufficient permissions for this file.","errors":[{"reason":"insufficientFilePermissions"}]}}`))
	}))

	_, err := svc.ListFiles(context.Background(), domain.ListFilesRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, googleapi.ErrProvider)
	assert.Equal(t, "The user does not have sufficient permissions for this file.", googleapi.Message(err))
}

func TestTransportErrorIsDistinct(t *testing.T) {
	svc := newTestService(t, "ya29.token", http.NotFoundHandler())
	svc.apiURL = "http://127.0.0.1:1/drive/v3/files"

	_, err := svc.CreateFolder(context.Background(), "Reports")
	require.Error(t, err)
	assert.ErrorIs(t, err, googleapi.ErrTransport)
	assert.NotErrorIs(t, err, googleapi.ErrProvider)
}

func TestUploadFileSendsMultipartRelated(t *testing.T) {
	type part struct {
		contentType string
		body        string
	}
	var (
		parts     []part
		uploadTyp string
	)
	svc := newTestService(t, "ya29.token", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploadTyp = r.URL.Query().Get("uploadType")
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/related" {
			http.Error(w, "bad content type", http.StatusBadRequest)
			return
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			b, _ := io.ReadAll(p)
			parts = append(parts, part{contentType: p.Header.Get("Content-Type"), body: string(b)})
		}
		_, _ = w.Write([]byte(`{"kind":"drive#file","id":"new-1","name":"notes.txt","mimeType":"text/plain"}`))
	}))

	out, err := svc.UploadFile(context.Background(), domain.UploadRequest{
		Name:     " notes.txt ",
		MimeType: "text/plain",
		Content:  []byte("hello drive"),
	})
	require.NoError(t, err)
	assert.Equal(t, "new-1", out.ID)
	assert.Equal(t, "multipart", uploadTyp)

	require.Len(t, parts, 2)
	assert.Equal(t, "application/json; charset=UTF-8", parts[0].contentType)
	var meta map[string]string
	require.NoError(t, json.Unmarshal([]byte(parts[0].body), &meta))
	assert.Equal(t, "notes.txt", meta["name"])
	assert.Equal(t, "text/plain", parts[1].contentType)
	assert.Equal(t, "hello drive", parts[1].body)
}

func TestUploadFileRequiresFile(t *testing.T) {
	svc := newTestService(t, "ya29.token", http.NotFoundHandler())

	_, err := svc.UploadFile(context.Background(), domain.UploadRequest{Name: "a.txt"})
	assert.ErrorIs(t, err, domain.ErrNoFile)
	_, err = svc.UploadFile(context.Background(), domain.UploadRequest{Content: []byte("x")})
	assert.ErrorIs(t, err, domain.ErrNoFile)
}

func TestMultipartBoundaryIsRandom(t *testing.T) {
	req := domain.UploadRequest{Name: "a", MimeType: "text/plain", Content: []byte("x")}
	_, first, err := multipartRelated(req)
	require.NoError(t, err)
	_, second, err := multipartRelated(req)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestDownloadLink(t *testing.T) {
	svc := newTestService(t, "ya29.token", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/files/abc123") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"File not found: missing."}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"abc123"}`))
	}))
	ctx := context.Background()

	link, err := svc.DownloadLink(ctx, "abc123")
	require.NoError(t, err)
	parsed, err := url.Parse(link.URL)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(parsed.Path, "/drive/v3/files/abc123"))
	assert.Equal(t, "media", parsed.Query().Get("alt"))
	assert.Equal(t, "ya29.token", parsed.Query().Get("access_token"))

	_, err = svc.DownloadLink(ctx, "missing")
	assert.ErrorIs(t, err, googleapi.ErrProvider)
	assert.Equal(t, "File not found: missing.", googleapi.Message(err))

	_, err = svc.DownloadLink(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateFolder(t *testing.T) {
	var body map[string]string
	svc := newTestService(t, "ya29.token", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"id":"folder-1","name":"Reports","mimeType":"application/vnd.google-apps.folder"}`))
	}))

	out, err := svc.CreateFolder(context.Background(), "Reports")
	require.NoError(t, err)
	assert.Equal(t, "folder-1", out.ID)
	assert.Equal(t, "Reports", body["name"])
	assert.Equal(t, domain.FolderMimeType, body["mimeType"])

	_, err = svc.CreateFolder(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
