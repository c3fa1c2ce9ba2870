package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"

	"golang.org/x/net/html/charset"

	rga "github.com/524D/rgadiag/internal/spectrum"
)

// Read reads mzML file from an io.Reader
func Read(reader io.Reader) (MzML, error) {
	var mzML MzML

	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel

	// Skip over indexedmzML and everything else outside <mzML>
	for {
		t, tokenErr := d.Token()
		if tokenErr != nil {
			if tokenErr == io.EOF {
				break
			}
			return mzML, tokenErr
		}
		if t, ok := t.(xml.StartElement); ok && t.Name.Local == "mzML" {
			if err := d.DecodeElement(&mzML.content, &t); err != nil {
				return mzML, err
			}
		}
	}

	err := mzML.traverseScan()
	return mzML, err
}

// binaryDataPars decodes the CV terms in a mzML binarydata section
//
// CV Terms for binary data compression
// MS:1000574 zlib compression
// MS:1000576 No Compression
// MS:1002312 .. MS:1002314, MS:1002746 .. MS:1002748 MS-Numpress variants
//
// CV Terms for binary data array types
// MS:1000514 m/z array
// MS:1000515 intensity array
//
// CV Terms for binary-data-type
// MS:1000521 32-bit float
// MS:1000523 64-bit float
func binaryDataPars(binaryDataArray *binaryDataArray) (
	zlibCompression, bits64, mzArray, intensityArray bool, err error) {
	for _, cvParam := range binaryDataArray.CvPar {
		switch cvParam.Accession {
		case `MS:1000574`:
			zlibCompression = true
		case `MS:1000514`:
			mzArray = true
		case `MS:1000515`:
			intensityArray = true
		case `MS:1000523`:
			bits64 = true
		case `MS:1002312`, `MS:1002313`, `MS:1002314`,
			`MS:1002746`, `MS:1002747`, `MS:1002748`:
			err = fmt.Errorf("%w: CV term %s", ErrUnsupportedCompression, cvParam.Accession)
		}
	}
	return
}

func fillScan(p []Peak, binaryDataArray *binaryDataArray) ([]Peak, error) {
	zlibCompression, bits64, mzArray, intensityArray, err :=
		binaryDataPars(binaryDataArray)
	if err != nil {
		return nil, err
	}
	// Only m/z and current are of interest
	if !mzArray && !intensityArray {
		return p, nil
	}
	data, err := base64.StdEncoding.DecodeString(binaryDataArray.Binary)
	if err != nil {
		return nil, err
	}
	if zlibCompression {
		z, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer z.Close()
		if data, err = io.ReadAll(z); err != nil {
			return nil, err
		}
	}
	size := 4
	if bits64 {
		size = 8
	}
	cnt := len(data) / size
	if cnt > len(p) {
		// defaultArrayLength too small, trust the data
		p = append(p, make([]Peak, cnt-len(p))...)
	}
	for i := 0; i < cnt; i++ {
		var v float64
		if bits64 {
			v = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		} else {
			v = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
		if mzArray {
			p[i].Mz = v
		} else {
			p[i].Intens = v
		}
	}
	return p, nil
}

// NumSpecs returns the number of spectra
func (f *MzML) NumSpecs() int {
	return len(f.content.Run.SpectrumList.Spectrum)
}

// ReadScan reads a single scan
// n is the sequence number of the scan in the mzML file,
// This is not the same as the scan id that is specified
// in the mzML file! To read a scan using the mzML id,
// use ReadScan(f, ScanIndex(f, scanID))
func (f *MzML) ReadScan(scanIndex int) ([]Peak, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return nil, ErrInvalidScanIndex
	}
	spec := &f.content.Run.SpectrumList.Spectrum[scanIndex]
	p := make([]Peak, spec.DefaultArrayLength)
	var err error
	for i := range spec.BinaryDataArrayList.BinaryDataArray {
		p, err = fillScan(p, &spec.BinaryDataArrayList.BinaryDataArray[i])
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Centroid returns true is the spectrum contains centroid peaks
func (f *MzML) Centroid(scanIndex int) (bool, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return false, ErrInvalidScanIndex
	}
	for _, cvParam := range f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar {
		if cvParam.Accession == "MS:1000127" { // centroid spectrum
			return true, nil
		}
	}
	return false, nil
}

// Spectrum converts one scan to integer mass channels. Centroided peaks
// are summed per channel; profile data keeps the channel maximum.
func (f *MzML) Spectrum(scanIndex int) (rga.Spectrum, error) {
	peaks, err := f.ReadScan(scanIndex)
	if err != nil {
		return nil, err
	}
	centroid, _ := f.Centroid(scanIndex)
	return rga.FromMap(channels(peaks, centroid)), nil
}

// MeanSpectrum averages all scans of the file channel by channel, as
// recorded by repeated RGA sweeps
func (f *MzML) MeanSpectrum() (rga.Spectrum, error) {
	n := f.NumSpecs()
	if n == 0 {
		return nil, ErrNoScans
	}
	sum := make(map[int]float64)
	for i := 0; i < n; i++ {
		peaks, err := f.ReadScan(i)
		if err != nil {
			id, _ := f.ScanID(i)
			return nil, fmt.Errorf("scan %q: %w", id, err)
		}
		centroid, _ := f.Centroid(i)
		for m, v := range channels(peaks, centroid) {
			sum[m] += v
		}
	}
	for m := range sum {
		sum[m] /= float64(n)
	}
	return rga.FromMap(sum), nil
}

func channels(peaks []Peak, centroid bool) map[int]float64 {
	ch := make(map[int]float64)
	for _, p := range peaks {
		m := int(math.Round(p.Mz))
		if m <= 0 || math.IsNaN(p.Intens) {
			continue
		}
		if centroid {
			ch[m] += p.Intens
		} else if v, ok := ch[m]; !ok || p.Intens > v {
			ch[m] = p.Intens
		}
	}
	return ch
}

// traverseScan fills f.index2id and f.id2Index to make scans accessible
func (f *MzML) traverseScan() error {
	f.index2id = make([]string, f.NumSpecs())
	f.id2Index = make(map[string]int, f.NumSpecs())
	for i, spec := range f.content.Run.SpectrumList.Spectrum {
		if i != spec.Index {
			return ErrInvalidScanIndex
		}
		f.index2id[i] = spec.ID
		f.id2Index[spec.ID] = i
	}
	return nil
}

// ScanIndex converts a scan identifier (the string used in the mzML file)
// into an index that is used to access the scans
func (f *MzML) ScanIndex(scanID string) (int, error) {
	if index, ok := f.id2Index[scanID]; ok {
		return index, nil
	}
	return 0, ErrInvalidScanID
}

// ScanID converts a scan index (used to access the scan data) into a scan id
// (used in the mzML file)
func (f *MzML) ScanID(scanIndex int) (string, error) {
	if scanIndex >= 0 && scanIndex < f.NumSpecs() {
		return f.index2id[scanIndex], nil
	}
	return "", ErrInvalidScanIndex
}
