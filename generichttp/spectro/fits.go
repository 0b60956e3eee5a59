package spectro

import (
	"io"

	"github.com/astrogo/fitsio"
	"github.com/kmoncr/horibactl/spectrometer"
)

// WriteFits streams a spectrum to w as a two-row FITS image, wavelengths
// in row zero and intensities in row one, with the acquisition settings
// recorded in the header
func WriteFits(w io.Writer, req spectrometer.AcquisitionRequest, res spectrometer.AcquisitionResult) error {
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()

	n := len(res.Wavelengths)
	im := fitsio.NewImage(-64, []int{n, 2})
	defer im.Close()

	cards := []fitsio.Card{
		{Name: "EXPTIME", Value: req.ExposureSec, Comment: "integration time, seconds"},
		{Name: "CENWAVE", Value: req.CenterWavelengthNm, Comment: "mono center wavelength, nm"},
		{Name: "GRATING", Value: int(req.Grating), Comment: "turret grating position"},
		{Name: "SLITMM", Value: req.SlitWidthMm, Comment: "entrance slit width, mm"},
		{Name: "GAIN", Value: req.Gain, Comment: "detector gain token"},
		{Name: "SPEED", Value: req.Speed, Comment: "detector readout speed token"},
	}
	if req.HasRotation {
		cards = append(cards, fitsio.Card{Name: "ANGLE", Value: req.RotationAngleDeg, Comment: "sample rotation, degrees"})
	}
	if req.ExcitationNm > 0 {
		cards = append(cards, fitsio.Card{Name: "EXCITNM", Value: req.ExcitationNm, Comment: "excitation line, nm"})
	}
	if err := im.Header().Append(cards...); err != nil {
		return err
	}

	buf := make([]float64, 0, 2*n)
	buf = append(buf, res.Wavelengths...)
	buf = append(buf, res.Intensities...)
	if err := im.Write(buf); err != nil {
		return err
	}
	return fits.Write(im)
}
