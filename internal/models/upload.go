package models

import "time"

// Accepted upload content types.
const (
	MimePDF  = "application/pdf"
	MimePPT  = "application/vnd.ms-powerpoint"
	MimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

// MaxUploadBytes is the largest document accepted with a submission.
const MaxUploadBytes int64 = 30 << 20

// AllowedUploadType reports whether contentType may be attached to a submission.
func AllowedUploadType(contentType string) bool {
	switch contentType {
	case MimePDF, MimePPT, MimePPTX:
		return true
	}
	return false
}

// UploadLog records one attempt to store the document attached to a
// submission. When Success is true FileURL equals the submission's PDFFileURL.
type UploadLog struct {
	Success   bool      `bson:"success" json:"success"`
	FileName  string    `bson:"fileName" json:"fileName"`
	FileSize  int64     `bson:"fileSize" json:"fileSize"`
	FileType  string    `bson:"fileType" json:"fileType"`
	StartTime time.Time `bson:"startTime" json:"startTime"`
	EndTime   time.Time `bson:"endTime" json:"endTime"`
	Duration  int64     `bson:"duration" json:"duration"` // milliseconds
	Error     string    `bson:"error,omitempty" json:"error,omitempty"`
	FileURL   string    `bson:"fileUrl,omitempty" json:"fileUrl,omitempty"`
}

// Finish stamps the end of the attempt. A non-empty url marks success.
func (l *UploadLog) Finish(end time.Time, url string, err error) {
	l.EndTime = end
	l.Duration = end.Sub(l.StartTime).Milliseconds()
	if err != nil {
		l.Success = false
		l.Error = err.Error()
		l.FileURL = ""
		return
	}
	l.Success = true
	l.Error = ""
	l.FileURL = url
}
