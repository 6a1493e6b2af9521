package domain

const (
	DefaultPageSize = 20
	DefaultQuery    = "trashed=false"
	FolderMimeType  = "application/vnd.google-apps.folder"

	// ListFields is the response projection requested on every listing.
	ListFields = "nextPageToken,files(id,name,mimeType,size,modifiedTime,webViewLink)"
)

// File is the Drive file resource as returned by the API. Size is a decimal
// string on the wire.
type File struct {
	Kind         string `json:"kind,omitempty"`
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	Size         string `json:"size,omitempty"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	WebViewLink  string `json:"webViewLink,omitempty"`
}

type ListFilesRequest struct {
	PageSize  int
	PageToken string
	Query     string
}

// Normalize applies the listing defaults. A page size below one is raised
// to one.
func (r ListFilesRequest) Normalize() ListFilesRequest {
	if r.PageSize < 1 {
		r.PageSize = 1
	}
	if r.Query == "" {
		r.Query = DefaultQuery
	}
	return r
}

type FileList struct {
	Files         []File `json:"files"`
	NextPageToken string `json:"nextPageToken"`
}

type UploadRequest struct {
	Name     string
	MimeType string
	Content  []byte
}

type DownloadLink struct {
	URL string `json:"download_url"`
}
