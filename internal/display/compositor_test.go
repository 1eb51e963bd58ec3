package display

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/absen-kiosk/internal/constants"
	"github.com/kozaktomas/absen-kiosk/internal/facematch"
	"github.com/kozaktomas/absen-kiosk/internal/kiosk"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func solid(w, h int, c color.Color) *image.RGBA {
	return filled(w, h, c)
}

func savePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func sameColor(a, b color.Color) bool {
	r1, g1, b1, a1 := a.RGBA()
	r2, g2, b2, a2 := b.RGBA()
	return r1 == r2 && g1 == g2 && b1 == b2 && a1 == a2
}

var (
	red   = color.RGBA{R: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
	black = color.RGBA{A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// testCompositor uses distinct solid panels and no font so pixels are predictable.
func testCompositor() *Compositor {
	res := &Resources{Background: solid(constants.CanvasWidth, constants.CanvasHeight, white)}
	colors := [modeCount]color.RGBA{
		{R: 10, A: 255}, {R: 20, A: 255}, {R: 30, A: 255}, {R: 40, A: 255},
	}
	for i, c := range colors {
		res.Modes[i] = solid(constants.PanelWidth, constants.PanelHeight, c)
	}
	return NewCompositor(res, nil)
}

func TestLoadResources_Defaults(t *testing.T) {
	face, err := NewFace()
	if err != nil {
		t.Fatalf("NewFace: %v", err)
	}

	res, err := LoadResources(t.TempDir(), face, discardLogger())
	if err != nil {
		t.Fatalf("LoadResources: %v", err)
	}
	if got := res.Background.Bounds(); got.Dx() != constants.CanvasWidth || got.Dy() != constants.CanvasHeight {
		t.Errorf("background bounds = %v", got)
	}
	for i, m := range res.Modes {
		if m == nil {
			t.Fatalf("panel %d missing", i)
		}
		if m.Bounds().Dx() != constants.PanelWidth || m.Bounds().Dy() != constants.PanelHeight {
			t.Errorf("panel %d bounds = %v", i, m.Bounds())
		}
	}
}

func TestLoadResources_FromDisk(t *testing.T) {
	dir := t.TempDir()
	// smaller than the canvas, must be scaled up
	savePNG(t, filepath.Join(dir, backgroundFile), solid(192, 108, blue))
	savePNG(t, filepath.Join(dir, modesDir, "2.png"), solid(62, 95, color.RGBA{G: 2, A: 255}))
	savePNG(t, filepath.Join(dir, modesDir, "0.png"), solid(62, 95, color.RGBA{G: 0, A: 255}))
	savePNG(t, filepath.Join(dir, modesDir, "1.png"), solid(62, 95, color.RGBA{G: 1, A: 255}))
	savePNG(t, filepath.Join(dir, modesDir, "3.png"), solid(62, 95, color.RGBA{G: 3, A: 255}))

	res, err := LoadResources(dir, nil, discardLogger())
	if err != nil {
		t.Fatalf("LoadResources: %v", err)
	}
	if !sameColor(res.Background.At(1000, 500), blue) {
		t.Errorf("background not loaded, got %v", res.Background.At(1000, 500))
	}
	for i, m := range res.Modes {
		want := color.RGBA{G: uint8(i), A: 255}
		if !sameColor(m.At(300, 400), want) {
			t.Errorf("panel %d = %v, want %v", i, m.At(300, 400), want)
		}
	}
}

func TestLoadResources_CorruptBackground(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, backgroundFile), []byte("nope"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadResources(dir, nil, discardLogger()); err == nil {
		t.Error("expected an error for a corrupt background")
	}
}

func TestRender_PanelFollowsMode(t *testing.T) {
	c := testCompositor()
	frame := solid(640, 480, black)

	tests := []struct {
		mode kiosk.Mode
		want color.RGBA
	}{
		{kiosk.Scanning, color.RGBA{R: 10, A: 255}},
		{kiosk.RecognizedFlash, color.RGBA{R: 20, A: 255}},
		{kiosk.Success, color.RGBA{R: 30, A: 255}},
		{kiosk.Failure, color.RGBA{R: 40, A: 255}},
		{kiosk.Mode(9), color.RGBA{R: 10, A: 255}},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			screen := c.Render(kiosk.View{Mode: tt.mode}, frame)
			got := screen.At(constants.PanelX+5, constants.PanelY+5)
			if !sameColor(got, tt.want) {
				t.Errorf("panel pixel = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRender_FeedAndFaceBox(t *testing.T) {
	c := testCompositor()
	frame := solid(480, 360, blue)
	// half-size frame: the box doubles on the 960x720 feed
	box := facematch.Box{X1: 100, Y1: 50, X2: 200, Y2: 150}

	screen := c.Render(kiosk.View{Face: &box}, frame)

	if !sameColor(screen.At(constants.FeedX+480, constants.FeedY+600), blue) {
		t.Error("feed should show the camera frame")
	}
	if !sameColor(screen.At(constants.FeedX-1, constants.FeedY), white) {
		t.Error("feed must stay inside its rectangle")
	}
	if !sameColor(screen.At(constants.FeedX+200, constants.FeedY+100), faceBoxColor) {
		t.Errorf("expected the face box corner, got %v", screen.At(constants.FeedX+200, constants.FeedY+100))
	}
	if !sameColor(screen.At(constants.FeedX+300, constants.FeedY+200), blue) {
		t.Error("the box interior must not be filled")
	}
}

func TestRender_DoesNotMutateBackground(t *testing.T) {
	c := testCompositor()
	box := facematch.Box{X1: 0, Y1: 0, X2: 100, Y2: 100}

	_ = c.Render(kiosk.View{Face: &box, Mode: kiosk.Success}, solid(960, 720, red))

	if !sameColor(c.res.Background.At(constants.FeedX+10, constants.FeedY+10), white) {
		t.Error("background was modified by Render")
	}
}

func TestRender_StudentOnlyWithResult(t *testing.T) {
	c := testCompositor()
	frame := solid(640, 480, black)
	portrait := solid(100, 100, red)
	card := &kiosk.StudentCard{ID: "1001", Name: "Siti", Class: "XII IPA 1"}
	inside := image.Pt(constants.PortraitX+185, constants.PortraitY+185)

	tests := []struct {
		name     string
		view     kiosk.View
		portrait bool
	}{
		{"success", kiosk.View{Mode: kiosk.Success, Student: card, Portrait: portrait}, true},
		{"failure", kiosk.View{Mode: kiosk.Failure, Student: card, Portrait: portrait}, true},
		{"scanning", kiosk.View{Mode: kiosk.Scanning, Student: card, Portrait: portrait}, false},
		{"no portrait", kiosk.View{Mode: kiosk.Success, Student: card}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			screen := c.Render(tt.view, frame)
			got := sameColor(screen.At(inside.X, inside.Y), red)
			if got != tt.portrait {
				t.Errorf("portrait drawn = %v, want %v", got, tt.portrait)
			}
		})
	}
}

func TestRender_NilFrame(t *testing.T) {
	c := testCompositor()
	screen := c.Render(kiosk.View{}, nil)
	if screen.Bounds().Dx() != constants.CanvasWidth {
		t.Errorf("unexpected screen bounds %v", screen.Bounds())
	}
}

func TestDrawText(t *testing.T) {
	face, err := NewFace()
	if err != nil {
		t.Fatal(err)
	}
	img := solid(400, 80, white)
	drawText(img, face, "Jiří Novák", image.Pt(5, 5))

	inked := false
	for y := 0; y < 80 && !inked; y++ {
		for x := 0; x < 400; x++ {
			if !sameColor(img.At(x, y), white) {
				inked = true
				break
			}
		}
	}
	if !inked {
		t.Error("expected text pixels")
	}
}

func TestFeedBox(t *testing.T) {
	frame := image.Rect(0, 0, 640, 480)
	feed := image.Rect(80, 242, 1040, 962)

	tests := []struct {
		name string
		box  facematch.Box
		want image.Rectangle
	}{
		{"scaled", facematch.Box{X1: 64, Y1: 48, X2: 128, Y2: 96}, image.Rect(176, 314, 272, 386)},
		{"clipped", facematch.Box{X1: -10, Y1: -10, X2: 700, Y2: 500}, feed},
		{"outside", facematch.Box{X1: 700, Y1: 500, X2: 800, Y2: 600}, image.Rectangle{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := feedBox(tt.box, frame, feed)
			if !got.Eq(tt.want) {
				t.Errorf("feedBox = %v, want %v", got, tt.want)
			}
		})
	}
}
