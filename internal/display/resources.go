package display

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"

	"github.com/kozaktomas/absen-kiosk/internal/constants"
	"github.com/kozaktomas/absen-kiosk/internal/fingerprint"
)

const (
	backgroundFile = "background.png"
	modesDir       = "Modes"
	modeCount      = 4
)

var (
	defaultBackground = color.RGBA{R: 236, G: 236, B: 236, A: 255}
	defaultPanels     = [modeCount]color.RGBA{
		{R: 250, G: 250, B: 250, A: 255}, // scanning
		{R: 214, G: 232, B: 255, A: 255}, // recognized
		{R: 214, G: 245, B: 220, A: 255}, // success
		{R: 255, G: 218, B: 218, A: 255}, // failure
	}
	defaultPanelCaptions = [modeCount]string{"SCANNING", "RECOGNIZED", "SUCCESS", "FAILED"}
)

// Resources are the static images the kiosk screen is built from.
type Resources struct {
	Background *image.RGBA
	Modes      [modeCount]*image.RGBA
}

// LoadResources reads background.png and the Modes/ panels from dir. Panels
// are taken in file name order, the first four map to scanning, recognized,
// success and failure. Missing files are replaced by plain generated images.
func LoadResources(dir string, face font.Face, logger *slog.Logger) (*Resources, error) {
	if logger == nil {
		logger = slog.Default()
	}
	res := &Resources{}

	bg, err := loadImage(filepath.Join(dir, backgroundFile))
	switch {
	case err == nil:
		res.Background = fit(bg, constants.CanvasWidth, constants.CanvasHeight)
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("display: background not found, using a plain one", "dir", dir)
		res.Background = filled(constants.CanvasWidth, constants.CanvasHeight, defaultBackground)
	default:
		return nil, err
	}

	panels, err := modePanelFiles(filepath.Join(dir, modesDir))
	if err != nil {
		return nil, err
	}
	if len(panels) < modeCount {
		logger.Warn("display: mode panels missing, generating defaults", "found", len(panels), "want", modeCount)
	}
	for i := range modeCount {
		if i < len(panels) {
			img, err := loadImage(panels[i])
			if err != nil {
				return nil, err
			}
			res.Modes[i] = fit(img, constants.PanelWidth, constants.PanelHeight)
			continue
		}
		panel := filled(constants.PanelWidth, constants.PanelHeight, defaultPanels[i])
		if face != nil {
			drawText(panel, face, defaultPanelCaptions[i], image.Pt(40, 60))
		}
		res.Modes[i] = panel
	}
	return res, nil
}

func modePanelFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read mode panels: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func loadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path) //nolint:gosec // resource paths come from config
	if err != nil {
		return nil, err
	}
	img, err := fingerprint.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("could not decode %s: %w", path, err)
	}
	return img, nil
}

// fit returns img as an RGBA of exactly width x height, scaling when needed.
func fit(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func filled(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}
