package domain

import "context"

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks

// Service drives the posts scan state machine:
// idle -> running -> completed, and completed -> running on restart.
type Service interface {
	StartScan(ctx context.Context, postTypes []string) (ScanProgress, error)
	// ProcessBatch stamps one page of posts and advances the cursor. The
	// cursor only moves once every marker in the page is written.
	ProcessBatch(ctx context.Context, req BatchRequest) (BatchResult, error)
	GetProgress(ctx context.Context) (ScanProgress, error)
}
