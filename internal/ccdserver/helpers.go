package ccdserver

import (
	"os"
	"strconv"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/pkg/errors"

	"github.com/munkacsymj/astrosystem/internal/exposure"
	"github.com/munkacsymj/astrosystem/internal/filterwheel"
	"github.com/munkacsymj/astrosystem/internal/fitsenc"
	"github.com/munkacsymj/astrosystem/internal/message"
)

func itoa(n int) string { return strconv.Itoa(n) }

func createFile(path string) (*os.File, error) {
	return os.Create(path)
}

// recordFromKeywords builds an exposure.Record from the wire-protocol
// command's keyword/value body.
func recordFromKeywords(kv message.KeywordSet, table filterwheel.Table, optics OpticalConfig) (*exposure.Record, error) {
	rec := &exposure.Record{RequestedAt: time.Now(), StatusKeywords: map[string]string{}}

	filt, _ := kv.Get("FILTER")
	rec.Filter = filt
	if filt != "" {
		if _, ok := table.SlotFor(filt); !ok {
			return nil, errors.Errorf("ccdserver: unknown filter %q", filt)
		}
		rec.NeedsFilterChange = true
	}

	durStr, ok := kv.Get("DURATION")
	if !ok {
		return nil, errors.New("ccdserver: missing DURATION")
	}
	dur, err := strconv.ParseFloat(durStr, 64)
	if err != nil {
		return nil, errors.Wrap(err, "ccdserver: parse DURATION")
	}
	rec.DurationSeconds = dur

	rec.Bin.H, rec.Bin.V = 1, 1
	if b, ok := kv.Get("BIN"); ok {
		n, err := strconv.Atoi(b)
		if err == nil && n > 0 {
			rec.Bin.H, rec.Bin.V = n, n
		}
	}

	rec.OutputPath, _ = kv.Get("IMAGE")

	// Subframe corners are 0-origin, inclusive, measured from the sensor's
	// bottom-left. All-zero (or entirely absent) selects the default full
	// frame: sensor width minus overscan, height limited to the optic-black
	// edge. Out-of-range requests are clamped rather than rejected.
	left, lok := kv.Get("LEFT")
	right, rok := kv.Get("RIGHT")
	top, tok := kv.Get("TOP")
	bottom, bok := kv.Get("BOTTOM")
	l, _ := strconv.Atoi(left)
	r, _ := strconv.Atoi(right)
	tp, _ := strconv.Atoi(top)
	bt, _ := strconv.Atoi(bottom)

	if (!lok && !rok && !tok && !bok) || (l == 0 && r == 0 && tp == 0 && bt == 0) {
		rec.AOI = exposure.AOI{Left: 0, Top: 0, Width: optics.DefaultWidth(), Height: optics.DefaultHeight()}
	} else {
		rec.AOI = exposure.AOI{Left: l, Top: bt, Width: r - l + 1, Height: tp - bt + 1}
	}
	if rec.AOI.Left < 0 {
		rec.AOI.Left = 0
	}
	if rec.AOI.Top < 0 {
		rec.AOI.Top = 0
	}
	if maxW := optics.DefaultWidth(); rec.AOI.Left+rec.AOI.Width > maxW {
		rec.AOI.Width = maxW - rec.AOI.Left
	}
	if maxH := optics.DefaultHeight(); rec.AOI.Top+rec.AOI.Height > maxH {
		rec.AOI.Height = maxH - rec.AOI.Top
	}

	if g, ok := kv.Get("GAIN"); ok {
		rec.GainState, _ = strconv.Atoi(g)
	}
	if o, ok := kv.Get("OFFSET"); ok {
		rec.Offset, _ = strconv.Atoi(o)
	}
	if md, ok := kv.Get("MODE"); ok {
		rec.Mode, _ = strconv.Atoi(md)
	}

	return rec, nil
}

// headerCards assembles the FITS header contract for one exposure record.
func headerCards(rec *exposure.Record, optics OpticalConfig) []fitsio.Card {
	binArea := rec.Bin.H * rec.Bin.V
	// 65530 is the per-source-pixel overflow level fitsenc.BinFrame uses.
	dataMax := 65530.0
	if rec.Format != fitsenc.U16 {
		dataMax *= float64(binArea)
	}

	cards := []fitsio.Card{
		{Name: "EXPOSURE", Value: rec.DurationSeconds, Comment: "[Sec] Shutter open time"},
		{Name: "DATAMAX", Value: dataMax, Comment: "[ADU] Largest linear ADU value"},
		{Name: "FILTER", Value: rec.Filter, Comment: "filter name"},
		{Name: "DATE-OBS", Value: rec.IntegrationStarted.UTC().Format(time.RFC3339), Comment: "UTC start of integration"},
		{Name: "XBINNING", Value: rec.Bin.H, Comment: "horizontal binning factor"},
		{Name: "YBINNING", Value: rec.Bin.V, Comment: "vertical binning factor"},
		{Name: "BINNING", Value: rec.Bin.H, Comment: "binning factor"},
		{Name: "CDELT1", Value: optics.ArcsecPerPixel * float64(rec.Bin.H), Comment: "[arcsec/pixel] X axis pixel size"},
		{Name: "CDELT2", Value: optics.ArcsecPerPixel * float64(rec.Bin.V), Comment: "[arcsec/pixel] Y axis pixel size"},
		{Name: "CAMGAIN", Value: rec.GainState, Comment: "camera analog gain setting"},
		{Name: "READMODE", Value: rec.Mode, Comment: "camera readout mode"},
		{Name: "OFFSET", Value: rec.Offset, Comment: "camera analog offset setting"},
		{Name: "EGAIN", Value: fitsenc.EGain(rec.Mode, float64(rec.GainState)), Comment: "[e-/ADU] electrons per ADU"},
		{Name: "FRAMEX", Value: rec.AOI.Left, Comment: "subframe left edge"},
		{Name: "FRAMEY", Value: rec.AOI.Top, Comment: "subframe bottom edge"},
		{Name: "FOCALLEN", Value: optics.FocalLengthMM, Comment: "[mm] focal length"},
		{Name: "CAMERA", Value: optics.Camera, Comment: "camera model"},
		{Name: "TELESCOP", Value: optics.Telescope, Comment: "telescope name"},
	}

	if !rec.IntegrationStarted.IsZero() && !rec.ShutterClosedAt.IsZero() {
		cards = append(cards, fitsio.Card{
			Name:    "EXP_T1",
			Value:   rec.ShutterClosedAt.Sub(rec.IntegrationStarted).Seconds(),
			Comment: "[Sec] measured shutter-open interval",
		})
	}

	return cards
}
