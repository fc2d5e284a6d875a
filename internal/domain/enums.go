package domain

// FileType represents the allowed file types for upload.
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeJPG  FileType = "jpg"
	FileTypePNG  FileType = "png"
	FileTypeTIFF FileType = "tiff"
	FileTypeHEIC FileType = "heic"
)

// AllowedExtensions maps file extensions (without dot) to FileType.
var AllowedExtensions = map[string]FileType{
	"pdf":  FileTypePDF,
	"jpg":  FileTypeJPG,
	"jpeg": FileTypeJPG,
	"png":  FileTypePNG,
	"tif":  FileTypeTIFF,
	"tiff": FileTypeTIFF,
	"heic": FileTypeHEIC,
	"heif": FileTypeHEIC,
}

// ContentTypes maps FileType to the MIME type used when archiving an upload.
var ContentTypes = map[FileType]string{
	FileTypePDF:  "application/pdf",
	FileTypeJPG:  "image/jpeg",
	FileTypePNG:  "image/png",
	FileTypeTIFF: "image/tiff",
	FileTypeHEIC: "image/heic",
}

// ProcessingStatus represents the outcome of one ingestion attempt.
type ProcessingStatus string

const (
	StatusPending      ProcessingStatus = "pending"
	StatusProcessed    ProcessingStatus = "processed"
	StatusFailed       ProcessingStatus = "failed"
	StatusFailedDBSave ProcessingStatus = "failed_db_save"
)

// Valid reports whether s is one of the known statuses.
func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessed, StatusFailed, StatusFailedDBSave:
		return true
	}
	return false
}
