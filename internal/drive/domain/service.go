package domain

import "context"

// Service calls the Drive API with the connected account's token. Each call
// fails with the token manager's ErrUnauthenticated when no usable token
// exists.
type Service interface {
	ListFiles(ctx context.Context, req ListFilesRequest) (*FileList, error)
	UploadFile(ctx context.Context, req UploadRequest) (*File, error)
	DownloadLink(ctx context.Context, fileID string) (*DownloadLink, error)
	CreateFolder(ctx context.Context, name string) (*File, error)
}
