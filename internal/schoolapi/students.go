package schoolapi

import (
	"context"
	"fmt"
	"image"
	"net/url"

	"github.com/kozaktomas/absen-kiosk/internal/fingerprint"
)

// Student looks up a student by the identity label produced by the
// recognizer. A missing student is reported as a 404 error, see IsNotFoundError.
func (c *Client) Student(ctx context.Context, identity string) (*Student, error) {
	student, err := doGetJSON[Student](ctx, c, "api/siswa/"+url.PathEscape(identity))
	if err != nil {
		return nil, fmt.Errorf("could not look up student %s: %w", identity, err)
	}
	return student, nil
}

// PortraitURL returns the location of a student's portrait.
func (c *Client) PortraitURL(identity string) string {
	return c.resolveURL("api/siswa/profile/" + url.PathEscape(identity))
}

// Portrait downloads and decodes a student's portrait.
func (c *Client) Portrait(ctx context.Context, identity string) (image.Image, error) {
	data, err := doGetBytes(ctx, c, c.PortraitURL(identity))
	if err != nil {
		return nil, fmt.Errorf("could not fetch portrait of %s: %w", identity, err)
	}
	img, err := fingerprint.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("could not decode portrait of %s: %w", identity, err)
	}
	return img, nil
}
