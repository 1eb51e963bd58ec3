// Package display builds the 1920x1080 kiosk screen from the static resources,
// the live camera frame and the current kiosk view.
package display

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/kozaktomas/absen-kiosk/internal/constants"
	"github.com/kozaktomas/absen-kiosk/internal/facematch"
	"github.com/kozaktomas/absen-kiosk/internal/kiosk"
)

const (
	textSize     = 35
	faceBoxWidth = 2
)

var (
	textColor    = color.RGBA{R: 65, G: 65, B: 65, A: 255}
	faceBoxColor = color.RGBA{G: 255, A: 255}
	titleOrigin  = image.Pt(20, 35)
)

// NewFace returns the bold face used for every text on the screen.
func NewFace() (font.Face, error) {
	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("could not parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    textSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create font face: %w", err)
	}
	return face, nil
}

// Compositor renders kiosk screens. Rendering never modifies the resources.
type Compositor struct {
	res  *Resources
	face font.Face
}

func NewCompositor(res *Resources, face font.Face) *Compositor {
	return &Compositor{res: res, face: face}
}

// Render composes one screen: background, mode panel, live feed with the face
// box, title and, while a result is shown, the student details and portrait.
func (c *Compositor) Render(view kiosk.View, frame image.Image) image.Image {
	screen := image.NewRGBA(c.res.Background.Bounds())
	draw.Draw(screen, screen.Bounds(), c.res.Background, image.Point{}, draw.Src)

	panel := c.res.Modes[panelIndex(view.Mode)]
	panelRect := image.Rect(constants.PanelX, constants.PanelY,
		constants.PanelX+constants.PanelWidth, constants.PanelY+constants.PanelHeight)
	draw.Draw(screen, panelRect, panel, image.Point{}, draw.Src)

	feedRect := image.Rect(constants.FeedX, constants.FeedY,
		constants.FeedX+constants.FeedWidth, constants.FeedY+constants.FeedHeight)
	if frame != nil {
		draw.ApproxBiLinear.Scale(screen, feedRect, frame, frame.Bounds(), draw.Src, nil)
		if view.Face != nil {
			box := feedBox(*view.Face, frame.Bounds(), feedRect)
			strokeRect(screen, box, faceBoxColor, faceBoxWidth)
		}
	}

	if c.face != nil && view.Title != "" {
		drawText(screen, c.face, view.Title, titleOrigin)
	}

	if (view.Mode == kiosk.Success || view.Mode == kiosk.Failure) && view.Student != nil && view.Portrait != nil {
		c.drawStudent(screen, view)
	}
	return screen
}

func (c *Compositor) drawStudent(screen *image.RGBA, view kiosk.View) {
	if c.face != nil {
		drawText(screen, c.face, view.Student.ID, image.Pt(constants.StudentIDX, constants.StudentIDY))
		drawText(screen, c.face, view.Student.Name, image.Pt(constants.StudentNameX, constants.StudentNameY))
		drawText(screen, c.face, view.Student.Class, image.Pt(constants.StudentClassX, constants.StudentClassY))
	}
	portraitRect := image.Rect(constants.PortraitX, constants.PortraitY,
		constants.PortraitX+constants.PortraitSize, constants.PortraitY+constants.PortraitSize)
	draw.BiLinear.Scale(screen, portraitRect, view.Portrait, view.Portrait.Bounds(), draw.Src, nil)
}

func panelIndex(m kiosk.Mode) int {
	if m < 0 || int(m) >= modeCount {
		return int(kiosk.Scanning)
	}
	return int(m)
}

// feedBox maps a face box in frame coordinates onto the scaled feed.
func feedBox(b facematch.Box, frame, feed image.Rectangle) image.Rectangle {
	sx := float64(feed.Dx()) / float64(frame.Dx())
	sy := float64(feed.Dy()) / float64(frame.Dy())
	r := image.Rect(
		feed.Min.X+int((b.X1-float64(frame.Min.X))*sx),
		feed.Min.Y+int((b.Y1-float64(frame.Min.Y))*sy),
		feed.Min.X+int((b.X2-float64(frame.Min.X))*sx),
		feed.Min.Y+int((b.Y2-float64(frame.Min.Y))*sy),
	)
	return r.Intersect(feed)
}

// strokeRect draws the outline of r, width pixels thick, inside r.
func strokeRect(dst draw.Image, r image.Rectangle, c color.Color, width int) {
	if r.Empty() {
		return
	}
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Over)
	}
}

// drawText draws s with its top-left corner at origin.
func drawText(dst draw.Image, face font.Face, s string, origin image.Point) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(textColor),
		Face: face,
	}
	ascent := face.Metrics().Ascent
	d.Dot = fixed.Point26_6{X: fixed.I(origin.X), Y: fixed.I(origin.Y) + ascent}
	d.DrawString(facematch.DisplayText(s))
}
