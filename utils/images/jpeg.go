package images

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// artworkDPI is density recorded in JFIF segment of re-encoded artwork.
const artworkDPI = 300

var errNotJPEG = errors.New("not a jpeg stream")

// jfifSegment returns APP0 segment: "JFIF\0", version 1.2, density in pixels
// per inch, no thumbnail.
func jfifSegment(dpi uint16) []byte {
	seg := make([]byte, 0, 18)
	seg = append(seg, 0xFF, 0xE0, 0x00, 0x10)
	seg = append(seg, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x02)
	seg = append(seg, 0x01) // dots per inch
	seg = binary.BigEndian.AppendUint16(seg, dpi)
	seg = binary.BigEndian.AppendUint16(seg, dpi)
	seg = append(seg, 0x00, 0x00)
	return seg
}

// withJFIF inserts JFIF segment right after SOI unless stream already starts
// with APP0. Go encoder never writes one and some readers reject such images.
func withJFIF(data []byte, dpi uint16) ([]byte, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, errNotJPEG
	}
	if data[2] == 0xFF && data[3] == 0xE0 {
		return data, nil
	}
	seg := jfifSegment(dpi)
	out := make([]byte, 0, len(data)+len(seg))
	out = append(out, data[:2]...)
	out = append(out, seg...)
	return append(out, data[2:]...), nil
}

// EncodeJPEG encodes image with requested quality, result always carries JFIF
// segment.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return withJFIF(buf.Bytes(), artworkDPI)
}
