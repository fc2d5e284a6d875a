package domain

import "errors"

var (
	ErrNotFound            = errors.New("resource not found")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrInputUnreadable     = errors.New("input could not be read")
	ErrPersistenceFailed   = errors.New("document could not be persisted")
	ErrArchiveDisabled     = errors.New("original file archiving is disabled")
	ErrInvalidStatus       = errors.New("invalid processing status")
)
