package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/drivebridge/internal/audit/domain"
	"github.com/smallbiznis/drivebridge/internal/config"
	drivedomain "github.com/smallbiznis/drivebridge/internal/drive/domain"
	googleauthdomain "github.com/smallbiznis/drivebridge/internal/googleauth/domain"
)

type saveCredentialsRequest struct {
	ClientID     string `json:"client_id" form:"client_id"`
	ClientSecret string `json:"client_secret" form:"client_secret"`
}

type createFolderRequest struct {
	Name string `json:"name" form:"name"`
}

func (s *Server) SaveCredentials(c *gin.Context) {
	var req saveCredentialsRequest
	if err := c.ShouldBind(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	err := s.tokenSvc.SaveCredentials(c.Request.Context(), googleauthdomain.Credentials{
		ClientID:     strings.TrimSpace(req.ClientID),
		ClientSecret: strings.TrimSpace(req.ClientSecret),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Entry{
		Action:     auditdomain.ActionCredentialsSaved,
		TargetType: auditTargetDrive,
		Metadata: map[string]any{
			"client_id":     strings.TrimSpace(req.ClientID),
			"client_secret": strings.TrimSpace(req.ClientSecret),
		},
	})
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Credentials saved successfully",
	})
}

func (s *Server) GetCredentials(c *gin.Context) {
	creds, err := s.tokenSvc.GetCredentials(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if creds == nil {
		c.JSON(http.StatusOK, gin.H{
			"success":     false,
			"credentials": nil,
			"message":     "No credentials found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"credentials": creds,
	})
}

func (s *Server) StartDriveAuth(c *gin.Context) {
	authURL, err := s.tokenSvc.AuthorizationURL(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auth_url": authURL,
		"message":  "Opening Google authentication in a new window. If blocked, please check your browser settings.",
	})
}

func (s *Server) ListDriveFiles(c *gin.Context) {
	pageSize, err := strconv.Atoi(strings.TrimSpace(c.Query("page_size")))
	if err != nil || pageSize == 0 {
		pageSize = drivedomain.DefaultPageSize
	}

	list, err := s.driveSvc.ListFiles(c.Request.Context(), drivedomain.ListFilesRequest{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(c.Query("page_token")),
		Query:     strings.TrimSpace(c.Query("q")),
	})
	if err != nil {
		AbortWithError(c, remoteFailure("api_error", err))
		return
	}

	files := list.Files
	if files == nil {
		files = []drivedomain.File{}
	}
	c.JSON(http.StatusOK, gin.H{
		"files":         files,
		"nextPageToken": list.NextPageToken,
	})
}

func (s *Server) UploadDriveFile(c *gin.Context) {
	limit := s.maxUploadBytes()
	// Multipart framing and the name field ride on top of the file part.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			AbortWithError(c, drivedomain.ErrFileTooLarge)
			return
		}
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			AbortWithError(c, drivedomain.ErrNoFile)
			return
		}
		AbortWithError(c, invalidRequestError())
		return
	}

	if header.Size > limit {
		AbortWithError(c, drivedomain.ErrFileTooLarge)
		return
	}

	file, err := header.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if int64(len(content)) > limit {
		AbortWithError(c, drivedomain.ErrFileTooLarge)
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = header.Filename
	}

	uploaded, err := s.driveSvc.UploadFile(c.Request.Context(), drivedomain.UploadRequest{
		Name:     name,
		MimeType: header.Header.Get("Content-Type"),
		Content:  content,
	})
	if err != nil {
		AbortWithError(c, remoteFailure("upload_error", err))
		return
	}

	s.recordAudit(c, auditdomain.Entry{
		Action:     auditdomain.ActionFileUploaded,
		TargetType: auditTargetFile,
		TargetID:   uploaded.ID,
		Metadata:   map[string]any{"name": uploaded.Name, "size": len(content)},
	})
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"file":    uploaded,
		"message": "File uploaded successfully",
	})
}

const multipartOverhead = 1 << 20

func (s *Server) maxUploadBytes() int64 {
	if s.cfg.Google.MaxUploadBytes > 0 {
		return s.cfg.Google.MaxUploadBytes
	}
	return config.DefaultMaxUploadBytes
}

func (s *Server) DownloadDriveFile(c *gin.Context) {
	link, err := s.driveSvc.DownloadLink(c.Request.Context(), strings.TrimSpace(c.Query("file_id")))
	if err != nil {
		AbortWithError(c, remoteFailure("download_error", err))
		return
	}

	c.JSON(http.StatusOK, link)
}

func (s *Server) CreateDriveFolder(c *gin.Context) {
	var req createFolderRequest
	if err := c.ShouldBind(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	folder, err := s.driveSvc.CreateFolder(c.Request.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		AbortWithError(c, remoteFailure("create_error", err))
		return
	}

	s.recordAudit(c, auditdomain.Entry{
		Action:     auditdomain.ActionFolderCreated,
		TargetType: auditTargetFile,
		TargetID:   folder.ID,
		Metadata:   map[string]any{"name": folder.Name},
	})
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"folder":  folder,
		"message": "Folder created successfully",
	})
}

func (s *Server) DisconnectDrive(c *gin.Context) {
	if err := s.tokenSvc.Revoke(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Entry{Action: auditdomain.ActionDriveDisconnect, TargetType: auditTargetDrive})
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Successfully disconnected from Google Drive",
	})
}
