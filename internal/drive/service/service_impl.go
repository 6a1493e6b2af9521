package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/smallbiznis/drivebridge/internal/config"
	"github.com/smallbiznis/drivebridge/internal/drive/domain"
	"github.com/smallbiznis/drivebridge/internal/googleapi"
	authdomain "github.com/smallbiznis/drivebridge/internal/googleauth/domain"
	obslogger "github.com/smallbiznis/drivebridge/internal/observability/logger"
	"github.com/smallbiznis/drivebridge/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultContentType = "application/octet-stream"

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Auth    authdomain.Service
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	auth      authdomain.Service
	metrics   *metrics.Metrics
	http      *http.Client
	apiURL    string
	uploadURL string
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("drive.service"),
		auth:      p.Auth,
		metrics:   p.Metrics,
		http:      googleapi.NewHTTPClient(p.Cfg.Google.HTTPClientTimeout),
		apiURL:    strings.TrimRight(p.Cfg.Google.DriveAPIURL, "/"),
		uploadURL: strings.TrimRight(p.Cfg.Google.DriveUploadURL, "/"),
	}
}

func (s *Service) ListFiles(ctx context.Context, req domain.ListFilesRequest) (*domain.FileList, error) {
	token, err := s.auth.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req = req.Normalize()
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(req.PageSize))
	q.Set("q", req.Query)
	q.Set("fields", domain.ListFields)
	if req.PageToken != "" {
		q.Set("pageToken", req.PageToken)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var out domain.FileList
	if err := s.call(ctx, "drive.list", token, httpReq, &out); err != nil {
		return nil, err
	}
	if out.Files == nil {
		out.Files = []domain.File{}
	}
	return &out, nil
}

func (s *Service) UploadFile(ctx context.Context, req domain.UploadRequest) (*domain.File, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Content == nil {
		return nil, domain.ErrNoFile
	}
	if req.MimeType == "" {
		req.MimeType = defaultContentType
	}

	token, err := s.auth.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	body, contentType, err := multipartRelated(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.uploadURL+"?uploadType=multipart", body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", contentType)

	var out domain.File
	if err := s.call(ctx, "drive.upload", token, httpReq, &out); err != nil {
		return nil, err
	}
	obslogger.WithContext(ctx, s.log).Info("drive.upload.succeeded",
		zap.String("file_id", out.ID),
		zap.Int("size_bytes", len(req.Content)),
	)
	return &out, nil
}

// DownloadLink confirms the file exists and returns a URL that carries the
// bearer token. The URL is as sensitive as the token itself.
func (s *Service) DownloadLink(ctx context.Context, fileID string) (*domain.DownloadLink, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, domain.ErrInvalidInput
	}

	token, err := s.auth.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	fileURL := s.apiURL + "/" + url.PathEscape(fileID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL+"?fields=id", nil)
	if err != nil {
		return nil, err
	}
	var meta domain.File
	if err := s.call(ctx, "drive.download", token, httpReq, &meta); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("alt", "media")
	q.Set("access_token", token)
	return &domain.DownloadLink{URL: fileURL + "?" + q.Encode()}, nil
}

func (s *Service) CreateFolder(ctx context.Context, name string) (*domain.File, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidInput
	}

	token, err := s.auth.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]string{
		"name":     name,
		"mimeType": domain.FolderMimeType,
	})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var out domain.File
	if err := s.call(ctx, "drive.create_folder", token, httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call sends an authorized request and decodes a 2xx body into out. Anything
// else becomes a ProviderError carrying Google's message.
func (s *Service) call(ctx context.Context, op, token string, req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	status, body, err := googleapi.Do(s.http, op, req)
	if err == nil && !googleapi.IsSuccess(status) {
		err = googleapi.DecodeError(op, status, body)
	}
	if err == nil {
		if decodeErr := json.Unmarshal(body, out); decodeErr != nil {
			err = &googleapi.ProviderError{
				Op:         op,
				StatusCode: status,
				Message:    fmt.Sprintf("malformed response: %v", decodeErr),
			}
		}
	}

	s.metrics.RecordDriveRequest(ctx, op, googleapi.Outcome(err))
	if err != nil {
		obslogger.WithContext(ctx, s.log).Warn("drive.request.failed",
			zap.String("operation", op),
			zap.Int("status_code", status),
			zap.Error(err),
		)
	}
	return err
}

// multipartRelated builds the two-part upload body: JSON metadata followed by
// the raw content.
func multipartRelated(req domain.UploadRequest) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	meta, err := json.Marshal(map[string]string{"name": req.Name})
	if err != nil {
		return nil, "", err
	}
	metaPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"application/json; charset=UTF-8"},
	})
	if err != nil {
		return nil, "", err
	}
	if _, err := metaPart.Write(meta); err != nil {
		return nil, "", err
	}

	filePart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {req.MimeType},
	})
	if err != nil {
		return nil, "", err
	}
	if _, err := filePart.Write(req.Content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return buf, "multipart/related; boundary=" + w.Boundary(), nil
}
