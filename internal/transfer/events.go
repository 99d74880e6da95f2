package transfer

import "mediaferry/internal/media"

// Event names exchanged over the connection.
const (
	EventDownloadInit = "download_init"
	EventDownload     = "download"
	EventDownloadEnd  = "download_end"
	EventUploadInit   = "upload_init"
	EventUpload       = "upload"
	EventUploadEnd    = "upload_end"
	EventBadRequest   = "bad_request"
	EventException    = "exception"
)

// DownloadInitRequest asks for the primary files of one or more sources.
type DownloadInitRequest struct {
	Cookie  string            `json:"cookie"`
	Targets []media.SourceRef `json:"targets"`
}

// UploadInitRequest announces an upload into one source.
type UploadInitRequest struct {
	Cookie   string           `json:"cookie"`
	Target   *media.SourceRef `json:"target"`
	Hash     string           `json:"hash" validate:"required,md5"`
	Filename string           `json:"filename,omitempty"`
}

// DownloadHeader precedes the chunks of each downloaded file. TotalSize is
// the number of download chunks that follow.
type DownloadHeader struct {
	File      string `json:"file"`
	FileSize  int    `json:"fileSize"`
	TotalSize int    `json:"totalSize"`
	Hash      string `json:"hash"`
}

// Message carries the text of bad_request and exception events.
type Message struct {
	Message string `json:"message"`
}
