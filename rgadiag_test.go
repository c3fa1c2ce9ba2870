package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leakCSV = `mass,current
2,1e-11
5,1e-14
14,1e-11
17,1.1e-11
18,5e-11
28,1e-9
32,2.7e-10
40,7.3e-11
44,1e-11
`

// execute runs the command line and returns stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--quiet"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// mzmlScan renders one uncompressed 64 bit centroid scan
func mzmlScan(index int, id string, masses, currents []float64) string {
	enc := func(v []float64) string {
		b := make([]byte, 8*len(v))
		for i, f := range v {
			binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(f))
		}
		return base64.StdEncoding.EncodeToString(b)
	}
	arr := func(kind, data string) string {
		return fmt.Sprintf(`<binaryDataArray><cvParam accession="MS:1000576"/><cvParam accession="MS:1000523"/><cvParam accession="%s"/><binary>%s</binary></binaryDataArray>`, kind, data)
	}
	return fmt.Sprintf(`<spectrum index="%d" id="%s" defaultArrayLength="%d"><cvParam accession="MS:1000127"/><binaryDataArrayList count="2">%s%s</binaryDataArrayList></spectrum>`,
		index, id, len(masses), arr("MS:1000514", enc(masses)), arr("MS:1000515", enc(currents)))
}

func mzmlDoc(scans ...string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<mzML xmlns="http://psi.hupo.org/ms/mzml" version="1.1.0"><run id="r"><spectrumList count="%d">%s</spectrumList></run></mzML>`,
		len(scans), strings.Join(scans, ""))
}

type reportHead struct {
	Identifier string `json:"identifier"`
	Summary    struct {
		TopDiagnosis string `json:"topDiagnosis"`
		Grade        string `json:"grade"`
	} `json:"summary"`
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "rgadiag version")
}

func TestCompare(t *testing.T) {
	out, err := execute(t, "compare", "--value", "1", "--uncertainty", "0.1", "--limit", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "clearly_below")

	out, err = execute(t, "compare", "--value", "2.25", "--uncertainty", "0.1", "--limit", "2", "--json")
	require.NoError(t, err)
	var c struct {
		Conclusion string  `json:"conclusion"`
		Margin     float64 `json:"margin"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, "probably_above", c.Conclusion)
	assert.InDelta(t, -2.5, c.Margin, 1e-9)
}

func TestCompareInvalidUncertainty(t *testing.T) {
	_, err := execute(t, "compare", "--value", "1", "--uncertainty", "0", "--limit", "2")
	var uerr usageError
	assert.ErrorAs(t, err, &uerr)
}

func TestCompareNonFinite(t *testing.T) {
	out, err := execute(t, "compare", "--value", "NaN", "--uncertainty", "0.1", "--limit", "2", "--json")
	var uerr usageError
	assert.ErrorAs(t, err, &uerr)
	assert.Empty(t, out)
}

func TestAnalyzeCSV(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "leaktest_1e-6mbar_1200V.csv", leakCSV)

	out, err := execute(t, "analyze", path)
	require.NoError(t, err)
	var rep reportHead
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "leaktest_1e-6mbar_1200V.csv", rep.Identifier)
	assert.Equal(t, "air_leak", rep.Summary.TopDiagnosis)
	assert.NotEmpty(t, rep.Summary.Grade)
}

func TestAnalyzeOutputFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scan.csv", leakCSV)
	report := filepath.Join(dir, "report.json")

	out, err := execute(t, "analyze", "--quick", "-o", report, path)
	require.NoError(t, err)
	assert.Empty(t, out)
	data, err := os.ReadFile(report)
	require.NoError(t, err)
	var rep reportHead
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, "scan.csv", rep.Identifier)
}

func TestAnalyzeBatchWithFailure(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.csv", leakCSV)
	bad := writeFile(t, dir, "bad.csv", "mass,current\n18,0\n28,0\n44,0\n")
	missing := filepath.Join(dir, "missing.csv")

	out, err := execute(t, "analyze", "--workers", "2", good, bad, missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 analyses failed")

	var results []struct {
		Identifier string          `json:"identifier"`
		Error      string          `json:"error"`
		Report     json.RawMessage `json:"report"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 3)
	assert.Empty(t, results[0].Error)
	assert.NotEmpty(t, results[0].Report)
	assert.NotEmpty(t, results[1].Error)
	assert.NotEmpty(t, results[2].Error)
}

func TestAnalyzeMzMLScan(t *testing.T) {
	dir := t.TempDir()
	// scan=1 is a clean vacuum, scan=2 the leak spectrum
	clean := mzmlScan(0, "scan=1", []float64{2, 18, 28}, []float64{1e-10, 1e-11, 1e-12})
	leak := mzmlScan(1, "scan=2",
		[]float64{2, 5, 14, 17, 18, 28, 32, 40, 44},
		[]float64{1e-11, 1e-14, 1e-11, 1.1e-11, 5e-11, 1e-9, 2.7e-10, 7.3e-11, 1e-11})
	path := writeFile(t, dir, "sweep.mzML", mzmlDoc(clean, leak))

	out, err := execute(t, "analyze", "--scan", "scan=2", path)
	require.NoError(t, err)
	var rep reportHead
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "sweep.mzML", rep.Identifier)
	assert.Equal(t, "air_leak", rep.Summary.TopDiagnosis)

	_, err = execute(t, "analyze", "--scan", "scan=9", path)
	assert.ErrorContains(t, err, `scan "scan=9"`)

	csv := writeFile(t, dir, "scan.csv", leakCSV)
	_, err = execute(t, "analyze", "--scan", "scan=2", csv)
	var uerr usageError
	assert.ErrorAs(t, err, &uerr)
}

func TestAnalyzeBadFlags(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scan.csv", leakCSV)
	var uerr usageError

	_, err := execute(t, "analyze", "--level", "extreme", path)
	assert.ErrorAs(t, err, &uerr)
	_, err = execute(t, "analyze", "--unit", "psi", path)
	assert.ErrorAs(t, err, &uerr)
	_, err = execute(t, "analyze", "--min-confidence", "2", path)
	assert.ErrorAs(t, err, &uerr)
}

func TestSEMHistoryPersists(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RGADIAG_SEM_STORE", "badger")
	t.Setenv("RGADIAG_BADGER_PATH", filepath.Join(dir, "sem"))

	for _, name := range []string{"run1_1200V.csv", "run2_1250V.csv"} {
		_, err := execute(t, "analyze", writeFile(t, dir, name, leakCSV))
		require.NoError(t, err)
	}

	out, err := execute(t, "sem", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "1200")
	assert.Contains(t, out, "1250")

	out, err = execute(t, "sem", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "not enough SEM history")
}

func TestInvalidConfig(t *testing.T) {
	cfg := writeFile(t, t.TempDir(), "rgadiag.yaml", "workers: 0\n")
	_, err := execute(t, "--config", cfg, "compare", "--value", "1", "--uncertainty", "1", "--limit", "2")
	assert.Error(t, err)
}
