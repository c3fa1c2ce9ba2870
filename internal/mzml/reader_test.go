package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	rga "github.com/524D/rgadiag/internal/spectrum"
)

func encode64(v []float64, compress bool) string {
	var raw bytes.Buffer
	for _, f := range v {
		binary.Write(&raw, binary.LittleEndian, math.Float64bits(f))
	}
	data := raw.Bytes()
	if compress {
		var z bytes.Buffer
		w := zlib.NewWriter(&z)
		w.Write(data)
		w.Close()
		data = z.Bytes()
	}
	return base64.StdEncoding.EncodeToString(data)
}

func encode32(v []float64) string {
	var raw bytes.Buffer
	for _, f := range v {
		binary.Write(&raw, binary.LittleEndian, math.Float32bits(float32(f)))
	}
	return base64.StdEncoding.EncodeToString(raw.Bytes())
}

const arrayTmpl = `<binaryDataArray>
 <cvParam accession="%s" name="compression"/>
 <cvParam accession="%s" name="binary type"/>
 <cvParam accession="%s" name="array"/>
 <binary>%s</binary>
</binaryDataArray>`

func array(compression, bits, kind, data string) string {
	return fmt.Sprintf(arrayTmpl, compression, bits, kind, data)
}

func spectrumXML(index int, id string, centroid bool, arrays ...string) string {
	mode := `<cvParam accession="MS:1000128" name="profile spectrum"/>`
	if centroid {
		mode = `<cvParam accession="MS:1000127" name="centroid spectrum"/>`
	}
	return fmt.Sprintf(`<spectrum index="%d" id="%s" defaultArrayLength="0">
%s
<cvParam accession="MS:1000285" name="total ion current" value="1.5e-9"/>
<binaryDataArrayList count="%d">%s</binaryDataArrayList>
</spectrum>`, index, id, mode, len(arrays), strings.Join(arrays, "\n"))
}

func document(encoding string, spectra ...string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="%s"?>
<indexedmzML xmlns="http://psi.hupo.org/ms/mzml">
<mzML xmlns="http://psi.hupo.org/ms/mzml" version="1.1.0">
<run id="sweep">
<spectrumList count="%d">%s</spectrumList>
</run>
</mzML>
<indexListOffset>0</indexListOffset>
</indexedmzML>`, encoding, len(spectra), strings.Join(spectra, "\n"))
}

// Scan 0 is a zlib compressed 64 bit profile sweep, scan 1 an
// uncompressed 32 bit centroid list.
func fixture() string {
	profile := spectrumXML(0, "scan=1", false,
		array("MS:1000574", "MS:1000523", "MS:1000514",
			encode64([]float64{1.9, 2.0, 2.1, 17.9, 18.0, 18.2}, true)),
		array("MS:1000574", "MS:1000523", "MS:1000515",
			encode64([]float64{1, 3, 2, 0.5, 4, 1}, true)))
	centroid := spectrumXML(1, "scan=2", true,
		array("MS:1000576", "MS:1000521", "MS:1000514",
			encode32([]float64{2, 18, 18.25, 28})),
		array("MS:1000576", "MS:1000521", "MS:1000515",
			encode32([]float64{0.5, 1, 1, 2})))
	return document("UTF-8", profile, centroid)
}

func read(t *testing.T, doc string) MzML {
	t.Helper()
	f, err := Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return f
}

func TestReadScan(t *testing.T) {
	f := read(t, fixture())
	if f.NumSpecs() != 2 {
		t.Fatalf("NumSpecs = %d, want 2", f.NumSpecs())
	}
	p, err := f.ReadScan(1)
	if err != nil {
		t.Fatalf("ReadScan: %v", err)
	}
	want := []Peak{{2, 0.5}, {18, 1}, {18.25, 1}, {28, 2}}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("ReadScan mismatch (-want +got):\n%s", diff)
	}
	if _, err := f.ReadScan(2); !errors.Is(err, ErrInvalidScanIndex) {
		t.Errorf("Expected ErrInvalidScanIndex, got %v", err)
	}
}

func TestSpectrum(t *testing.T) {
	f := read(t, fixture())

	// profile: channel maximum
	s, err := f.Spectrum(0)
	if err != nil {
		t.Fatalf("Spectrum(0): %v", err)
	}
	want := rga.Spectrum{{Mass: 2, Current: 3}, {Mass: 18, Current: 4}}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Profile spectrum mismatch (-want +got):\n%s", diff)
	}

	// centroid: channel sum
	s, err = f.Spectrum(1)
	if err != nil {
		t.Fatalf("Spectrum(1): %v", err)
	}
	want = rga.Spectrum{{Mass: 2, Current: 0.5}, {Mass: 18, Current: 2}, {Mass: 28, Current: 2}}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("Centroid spectrum mismatch (-want +got):\n%s", diff)
	}
}

func TestMeanSpectrum(t *testing.T) {
	f := read(t, fixture())
	s, err := f.MeanSpectrum()
	if err != nil {
		t.Fatalf("MeanSpectrum: %v", err)
	}
	want := rga.Spectrum{{Mass: 2, Current: 1.75}, {Mass: 18, Current: 3}, {Mass: 28, Current: 1}}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("MeanSpectrum mismatch (-want +got):\n%s", diff)
	}

	empty := read(t, document("UTF-8"))
	if _, err := empty.MeanSpectrum(); !errors.Is(err, ErrNoScans) {
		t.Errorf("Expected ErrNoScans, got %v", err)
	}
}

func TestScanIDs(t *testing.T) {
	f := read(t, fixture())
	i, err := f.ScanIndex("scan=2")
	if err != nil || i != 1 {
		t.Errorf("ScanIndex = %d, %v", i, err)
	}
	if _, err := f.ScanIndex("scan=9"); !errors.Is(err, ErrInvalidScanID) {
		t.Errorf("Expected ErrInvalidScanID, got %v", err)
	}
	id, err := f.ScanID(0)
	if err != nil || id != "scan=1" {
		t.Errorf("ScanID = %q, %v", id, err)
	}
	if _, err := f.ScanID(-1); !errors.Is(err, ErrInvalidScanIndex) {
		t.Errorf("Expected ErrInvalidScanIndex, got %v", err)
	}
}

func TestCentroid(t *testing.T) {
	f := read(t, fixture())
	c0, _ := f.Centroid(0)
	c1, _ := f.Centroid(1)
	if c0 || !c1 {
		t.Errorf("Centroid = %v, %v; want false, true", c0, c1)
	}
}

func TestNumpressRejected(t *testing.T) {
	doc := document("UTF-8", spectrumXML(0, "scan=1", false,
		array("MS:1002312", "MS:1000523", "MS:1000514", encode64([]float64{2}, false))))
	f := read(t, doc)
	if _, err := f.ReadScan(0); !errors.Is(err, ErrUnsupportedCompression) {
		t.Errorf("Expected ErrUnsupportedCompression, got %v", err)
	}
}

func TestLatin1Document(t *testing.T) {
	doc := document("ISO-8859-1", spectrumXML(0, "scan=\xb5", true,
		array("MS:1000576", "MS:1000523", "MS:1000514", encode64([]float64{4}, false)),
		array("MS:1000576", "MS:1000523", "MS:1000515", encode64([]float64{1e-12}, false))))
	f := read(t, doc)
	if _, err := f.ScanIndex("scan=µ"); err != nil {
		t.Errorf("Latin-1 id not decoded: %v", err)
	}
}

func TestScanIndexOutOfOrder(t *testing.T) {
	doc := document("UTF-8", spectrumXML(1, "scan=1", true))
	if _, err := Read(strings.NewReader(doc)); !errors.Is(err, ErrInvalidScanIndex) {
		t.Errorf("Expected ErrInvalidScanIndex, got %v", err)
	}
}
