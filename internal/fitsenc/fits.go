// Package fitsenc assembles FITS images from raw camera pixel buffers.
//
// It owns three concerns that the camera server needs on every exposure:
// software binning with per-source-pixel saturation detection, the EGAIN
// electrons-per-ADU curve for the header, and streaming FITS encode/decode
// using astrogo/fitsio. None of it talks to hardware; callers hand it a flat
// pixel buffer and a list of header cards.
package fitsenc

import (
	"bytes"
	"io"

	"github.com/astrogo/fitsio"
	"github.com/pkg/errors"
)

// PixelFormat selects the on-disk sample type for a binned frame.
type PixelFormat int

const (
	// U16 clamps binned sums to 65535.
	U16 PixelFormat = iota
	// U32 keeps the full binned sum; a bin with any source pixel above
	// overflowADU reports saturatedADU*bh*bv.
	U32
	// F32 applies the U32 saturation logic and stores the sum as a float.
	F32
)

// ErrEmptyFrame is returned when BinFrame is asked to bin a zero-length buffer.
var ErrEmptyFrame = errors.New("fitsenc: empty frame buffer")

// overflowADU is the per-source-pixel level above which a sensor well is
// considered saturated, regardless of what the binned sum comes to.
const overflowADU = 65530

// saturatedADU is the value a saturated U16 output pixel reports; U32/F32
// output scales it by the number of source pixels summed into one bin.
const saturatedADU = 65535

// BinFrame sums adjacent bh x bv input pixels (raw 16-bit ADU samples) into
// one output pixel. width/height describe the unbinned input dimensions;
// both must be exactly divisible by bh/bv. Saturation is decided per source
// pixel, not on the binned sum: if any contributor exceeds overflowADU, the
// output pixel reports saturatedADU (U16) or saturatedADU*bh*bv (U32/F32).
// numSaturated counts how many output pixels saturated this way.
func BinFrame(raw []uint16, width, height, bh, bv int, format PixelFormat) (pixels []uint32, outWidth, outHeight, numSaturated int, err error) {
	if len(raw) == 0 {
		return nil, 0, 0, 0, ErrEmptyFrame
	}
	if width*height != len(raw) {
		return nil, 0, 0, 0, errors.Errorf("fitsenc: buffer length %d does not match %dx%d", len(raw), width, height)
	}
	if bh < 1 || bv < 1 {
		return nil, 0, 0, 0, errors.New("fitsenc: bin factors must be >= 1")
	}
	if width%bh != 0 || height%bv != 0 {
		return nil, 0, 0, 0, errors.Errorf("fitsenc: %dx%d not evenly divisible by bin %dx%d", width, height, bh, bv)
	}
	ow, oh := width/bh, height/bv
	out := make([]uint32, ow*oh)
	var saturatedCount int
	for oy := 0; oy < oh; oy++ {
		for ox := 0; ox < ow; ox++ {
			var sum uint32
			overflow := false
			for dy := 0; dy < bv; dy++ {
				row := (oy*bv + dy) * width
				for dx := 0; dx < bh; dx++ {
					v := raw[row+ox*bh+dx]
					if v > overflowADU {
						overflow = true
					}
					sum += uint32(v)
				}
			}
			switch format {
			case U16:
				if overflow || sum > saturatedADU {
					sum = saturatedADU
					saturatedCount++
				}
			default: // U32, F32
				if overflow {
					sum = uint32(saturatedADU * bh * bv)
					saturatedCount++
				}
			}
			out[oy*ow+ox] = sum
		}
	}
	return out, ow, oh, saturatedCount, nil
}

// EGain returns electrons/ADU for a given camera readout mode and analog
// gain setting, evaluating the piecewise-linear curve fit for each mode.
// Modes outside 0-3 return 1.0 (no conversion).
func EGain(mode int, gain float64) float64 {
	switch mode {
	case 0:
		switch {
		case gain < 30:
			return 1.58 - 0.03667*gain
		case gain < 65:
			return 0.8658 - 0.01286*gain
		default:
			return 0.06705 - 0.00057*gain
		}
	case 1:
		return 1.002 - 0.0098*gain
	case 2:
		return 1.543 - 0.0143*gain
	case 3:
		return 1.628 - 0.0153*gain
	default:
		return 1.0
	}
}

// Frame is a fully-assembled image plane plus the header cards describing it.
type Frame struct {
	Width, Height int
	Format        PixelFormat
	Pixels        []uint32 // unsigned ADU sums, as produced by BinFrame
	Cards         []fitsio.Card
}

// Write streams metadata and pixel data for one or more Frames as a FITS
// primary HDU. U16 frames use the BZERO=32768/BSCALE=1.0 offset-binary
// encoding so unsigned 16-bit data round-trips through FITS's signed
// BITPIX=16 convention; U32 frames use the equivalent BITPIX=32 offset
// (BZERO=2147483648) since their sums can exceed 65535, and F32 frames are
// written as BITPIX=-32 floats with BZERO=0. Frames sharing
// identical Width/Height are written as one NAXIS3 cube; Write returns an
// error if dimensions or formats differ across frames.
func Write(w io.Writer, frames []Frame) error {
	if len(frames) == 0 {
		return errors.New("fitsenc: no frames to write")
	}
	width, height, format := frames[0].Width, frames[0].Height, frames[0].Format
	for _, f := range frames[1:] {
		if f.Width != width || f.Height != height {
			return errors.New("fitsenc: all frames in a cube must share dimensions")
		}
		if f.Format != format {
			return errors.New("fitsenc: all frames in a cube must share a pixel format")
		}
	}

	bitpix := 16
	bzero := 32768.0
	if format != U16 {
		bitpix = 32
		bzero = 2147483648.0
	}
	if format == F32 {
		bitpix, bzero = -32, 0
	}

	cards := append([]fitsio.Card{}, frames[0].Cards...)
	cards = append(cards, fitsio.Card{Name: "BZERO", Value: bzero}, fitsio.Card{Name: "BSCALE", Value: 1.0})

	fits, err := fitsio.Create(w)
	if err != nil {
		return errors.Wrap(err, "fitsenc: create")
	}
	defer fits.Close()

	dims := []int{width, height}
	if len(frames) > 1 {
		dims = append(dims, len(frames))
	}
	im := fitsio.NewImage(bitpix, dims)
	defer im.Close()
	if err := im.Header().Append(cards...); err != nil {
		return errors.Wrap(err, "fitsenc: header append")
	}

	for _, f := range frames {
		if bitpix == 16 {
			ints := make([]int16, len(f.Pixels))
			for i, v := range f.Pixels {
				if v > 65535 {
					v = 65535
				}
				ints[i] = int16(int32(v) - 32768)
			}
			if err := im.Write(ints); err != nil {
				return errors.Wrap(err, "fitsenc: write plane")
			}
			continue
		}
		if bitpix == -32 {
			fl := make([]float32, len(f.Pixels))
			for i, v := range f.Pixels {
				fl[i] = float32(v)
			}
			if err := im.Write(fl); err != nil {
				return errors.Wrap(err, "fitsenc: write plane")
			}
			continue
		}
		ints := make([]int32, len(f.Pixels))
		for i, v := range f.Pixels {
			ints[i] = int32(int64(v) - 2147483648)
		}
		if err := im.Write(ints); err != nil {
			return errors.Wrap(err, "fitsenc: write plane")
		}
	}
	return fits.Write(im)
}

// WriteBuffer is a convenience wrapper for the in-memory "IMAGE=-" output
// path: the camera server streams directly into a bytes.Buffer rather than
// through a scratch file, since astrogo/fitsio's writer needs no seekable
// backing store.
func WriteBuffer(frames []Frame) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	if err := Write(buf, frames); err != nil {
		return nil, err
	}
	return buf, nil
}
