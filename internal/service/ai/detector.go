package ai

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"
	"os"
	"sync"

	"imagetag/internal/config"
	"imagetag/internal/dto"
	"imagetag/internal/logger"

	"gocv.io/x/gocv"
)

// ErrNetworkNotReady is returned when the model files could not be loaded at startup.
var ErrNetworkNotReady = errors.New("detection network not initialized")

// DetectorService runs the SSD MobileNet COCO network and draws its detections.
type DetectorService struct {
	net        gocv.Net
	ready      bool
	mutex      sync.Mutex
	modelPath  string
	configPath string
	logger     *logger.Logger
}

// NewDetectorService creates a detector with model/config paths and a logger.
// A network that fails to load is reported and leaves the service in a not-ready state.
func NewDetectorService(config *config.Config, logger *logger.Logger) *DetectorService {
	service := &DetectorService{
		modelPath:  config.ModelPath,
		configPath: config.ConfigPath,
		logger:     logger,
	}

	if err := service.initializeNet(); err != nil {
		service.logger.Warning("Could not initialize detection network: %v", err)
	}

	return service
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}

	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.ready = true
	s.logger.Info("Detection network initialized successfully")
	return nil
}

// Ready reports whether the network was loaded.
func (s *DetectorService) Ready() bool {
	return s.ready
}

// Close releases the network.
func (s *DetectorService) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.ready {
		return nil
	}
	s.ready = false
	return s.net.Close()
}

// Detect runs one forward pass and returns every raw detection with its pixel box.
func (s *DetectorService) Detect(img []byte) (*dto.Inference, error) {
	mat, err := decode(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	// Create blob with parameters that fit ssd coco net input
	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	s.mutex.Lock()
	if !s.ready {
		s.mutex.Unlock()
		return nil, ErrNetworkNotReady
	}
	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	s.mutex.Unlock()
	defer output.Close()

	width, height := mat.Cols(), mat.Rows()
	inference := &dto.Inference{Width: width, Height: height}

	// Rows of [batch_id, class_id, confidence, x1, y1, x2, y2], coordinates normalized
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()
	for i := 0; i < rows.Rows(); i++ {
		x1 := int(rows.GetFloatAt(i, 3) * float32(width))
		y1 := int(rows.GetFloatAt(i, 4) * float32(height))
		x2 := int(rows.GetFloatAt(i, 5) * float32(width))
		y2 := int(rows.GetFloatAt(i, 6) * float32(height))

		inference.Detections = append(inference.Detections, dto.RawDetection{
			ClassID:    int(rows.GetFloatAt(i, 1)),
			Confidence: float64(rows.GetFloatAt(i, 2)),
			Box:        image.Rect(x1, y1, x2, y2),
		})
	}

	return inference, nil
}

// Annotate draws each detection's box and label on a copy of img and returns it as JPEG.
func (s *DetectorService) Annotate(img []byte, detections []dto.DetectionResult, thickness int) ([]byte, error) {
	mat, err := decode(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	fontScale := float64(thickness) / 3
	for _, detection := range detections {
		c := randomColor()

		if err := gocv.Rectangle(&mat, detection.Box, c, thickness); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %w", err)
		}

		size := gocv.GetTextSize(detection.Label, gocv.FontHersheySimplex, fontScale, thickness)
		origin := detection.Box.Min
		background := image.Rect(origin.X, origin.Y-size.Y-3, origin.X+size.X, origin.Y)
		if err := gocv.Rectangle(&mat, background, c, -1); err != nil {
			return nil, fmt.Errorf("failed to draw label box: %w", err)
		}

		white := color.RGBA{R: 255, G: 255, B: 255, A: 0}
		if err := gocv.PutText(&mat, detection.Label, image.Pt(origin.X, origin.Y-2), gocv.FontHersheySimplex, fontScale, white, thickness); err != nil {
			return nil, fmt.Errorf("failed to draw text: %w", err)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	annotated := make([]byte, len(buf.GetBytes()))
	copy(annotated, buf.GetBytes())
	return annotated, nil
}

func decode(img []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return mat, fmt.Errorf("failed to decode image: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return mat, fmt.Errorf("decoded image is empty")
	}
	return mat, nil
}

func randomColor() color.RGBA {
	return color.RGBA{R: uint8(rand.IntN(256)), G: uint8(rand.IntN(256)), B: uint8(rand.IntN(256)), A: 0}
}
