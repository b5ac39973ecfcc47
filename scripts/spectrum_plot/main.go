/*spectrum_plot renders one or more .spectrum records to a png.

	spectrum_plot out/forward.spectrum plots/forward.png
*/
package main

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"

	plt "github.com/phil-mansfield/pyplot"

	"github.com/mittens-cad/fieldsim/io"
)

var colors = []string{
	"DarkSlateBlue", "DarkTurquoise", "DeepPink", "DimGray",
}

func main() {
	if len(os.Args) < 3 {
		log.Fatalf("Usage: $ %s spectrum_file [...] plot_file", os.Args[0])
	}
	specFiles := os.Args[1 : len(os.Args)-1]
	plotFile := os.Args[len(os.Args)-1]

	plt.Reset()
	plt.Figure()

	for i, fname := range specFiles {
		freqs, mags, err := readSpectrum(fname)
		if err != nil {
			log.Fatal(err.Error())
		}

		ghz := make([]float64, len(freqs))
		for j, f := range freqs {
			ghz[j] = f / 1e9
		}
		plt.Plot(ghz, mags, plt.LW(2), plt.C(colors[i%len(colors)]))
	}

	plt.XLabel(`$f$ [GHz]`, plt.FontSize(16))
	plt.YLabel(`$|E(f)|$`, plt.FontSize(16))
	plt.YScale("log")
	plt.Grid(plt.Axis("x"))
	plt.SaveFig(plotFile)
	plt.Execute()
}

// readSpectrum decodes one binary spectrum record written by
// io.WriteSpectrum.
func readSpectrum(fname string) (freqs, mags []float64, err error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	end := binary.LittleEndian
	var hd io.RecordHeader
	if err := binary.Read(f, end, &hd); err != nil {
		return nil, nil, err
	}
	if hd.Endianness != -1 {
		return nil, nil, fmt.Errorf("%s is not little endian", fname)
	}
	if hd.RecordType != int64(io.SpectrumRecord) {
		return nil, nil, fmt.Errorf("%s is not a spectrum record", fname)
	}

	var info io.SpectrumInfo
	if err := binary.Read(f, end, &info); err != nil {
		return nil, nil, err
	}

	freqs = make([]float64, hd.Count)
	mags = make([]float64, hd.Count)
	if err := binary.Read(f, end, freqs); err != nil {
		return nil, nil, err
	}
	if err := binary.Read(f, end, mags); err != nil {
		return nil, nil, err
	}
	return freqs, mags, nil
}
