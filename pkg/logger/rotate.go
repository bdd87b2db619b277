package logger

import (
	"fmt"
	"io"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
)

// NewRotatingWriter returns an io.Writer that appends to path with
// daily rotation and 30-day retention. The bare path is maintained as
// a symlink to the current segment.
func NewRotatingWriter(path string) (io.Writer, error) {
	writer, err := rotatelogs.New(
		path+".%Y%m%d",
		rotatelogs.WithLinkName(path),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithMaxAge(30*24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("open rotating log %s: %w", path, err)
	}
	return writer, nil
}
