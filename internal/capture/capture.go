package capture

import (
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// Frame is one decoded image sample from a video source. Index counts every
// frame read from the source, including frames later dropped by decimation.
type Frame struct {
	Image     image.Image
	Index     int64
	Timestamp time.Time
}

// FrameSource reads decoded frames from a video source. Read blocks until a
// frame or an error is available.
type FrameSource interface {
	Read() (image.Image, error)
	Close() error
}

// SourceOpener opens a FrameSource for a source URL. The pipeline uses it for
// the initial open and for the single reconnect attempt.
type SourceOpener func(sourceURL string) (FrameSource, error)

type VideoSource struct {
	sourceURL string
	cap       *gocv.VideoCapture
	mat       gocv.Mat
}

// OpenVideo opens an RTSP URL, device index or file path via OpenCV.
func OpenVideo(sourceURL string) (FrameSource, error) {
	cap, err := gocv.OpenVideoCapture(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open video capture: %w", err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("video capture is not opened: %s", sourceURL)
	}
	return &VideoSource{
		sourceURL: sourceURL,
		cap:       cap,
		mat:       gocv.NewMat(),
	}, nil
}

func (s *VideoSource) Read() (image.Image, error) {
	if !s.cap.Read(&s.mat) {
		return nil, fmt.Errorf("failed to read frame from %s", s.sourceURL)
	}
	if s.mat.Empty() {
		return nil, fmt.Errorf("empty frame from %s", s.sourceURL)
	}
	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	return img, nil
}

func (s *VideoSource) Close() error {
	s.mat.Close()
	return s.cap.Close()
}
