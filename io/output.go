package io

import (
	"encoding/binary"
	"io"
	"unsafe"

	"github.com/mittens-cad/fieldsim/fdtd"
	"github.com/mittens-cad/fieldsim/spectrum"
)

var end = binary.LittleEndian

// RecordFlag identifies the payload following a RecordHeader.
type RecordFlag int64

const (
	SeriesRecord RecordFlag = iota
	SpectrumRecord
	SliceRecord
	ReflectionRecord
)

// RecordHeader leads every binary record. Endianness is -1 for little
// endian so misread files fail loudly instead of decoding garbage.
type RecordHeader struct {
	Endianness int64
	HeaderSize int64
	RecordType int64
	// Count is the number of samples, bins, or cells in the payload.
	Count int64
}

// SeriesInfo follows the header of a probe time-series record.
type SeriesInfo struct {
	Dt        float64
	Component int64
	Complete  int64
}

// SpectrumInfo follows the header of a spectrum or reflection record.
type SpectrumInfo struct {
	Df float64
}

// SliceInfo follows the header of a 2D field-slice record.
type SliceInfo struct {
	Plane     int64
	Index     int64
	Nu, Nv    int64
	Component int64
	Time      float64
}

func writeHeader(wr io.Writer, flag RecordFlag, count int, info interface{}) error {
	hd := RecordHeader{
		Endianness: -1,
		HeaderSize: int64(unsafe.Sizeof(RecordHeader{})),
		RecordType: int64(flag),
		Count:      int64(count),
	}
	if err := binary.Write(wr, end, &hd); err != nil {
		return err
	}
	return binary.Write(wr, end, info)
}

// WriteSeries writes a probe's accumulated time series.
func WriteSeries(p *fdtd.Probe, wr io.Writer) error {
	complete := int64(0)
	if p.Complete() {
		complete = 1
	}
	info := SeriesInfo{
		Dt:        p.Dt(),
		Component: int64(p.Comp),
		Complete:  complete,
	}
	if err := writeHeader(wr, SeriesRecord, len(p.Samples()), &info); err != nil {
		return err
	}
	return binary.Write(wr, end, p.Samples())
}

// WriteSpectrum writes frequency, magnitude, and phase arrays back to back.
func WriteSpectrum(s *spectrum.Spectrum, wr io.Writer) error {
	info := SpectrumInfo{Df: s.Df}
	if err := writeHeader(wr, SpectrumRecord, len(s.Freqs), &info); err != nil {
		return err
	}
	for _, xs := range [][]float64{s.Freqs, s.Mag, s.Phase} {
		if err := binary.Write(wr, end, xs); err != nil {
			return err
		}
	}
	return nil
}

// WriteReflection writes an S11 sweep: frequency, dB, and phase arrays.
// NaN bins outside the excitation band are written as-is; readers must
// treat them as gaps.
func WriteReflection(r *spectrum.Reflection, wr io.Writer) error {
	info := SpectrumInfo{Df: r.Df}
	if err := writeHeader(wr, ReflectionRecord, len(r.Freqs), &info); err != nil {
		return err
	}
	for _, xs := range [][]float64{r.Freqs, r.DB, r.Phase} {
		if err := binary.Write(wr, end, xs); err != nil {
			return err
		}
	}
	return nil
}

// WriteSlice writes one 2D field snapshot as float32 to halve the payload
// carried to visualization clients.
func WriteSlice(fs *fdtd.FieldSlice, wr io.Writer) error {
	info := SliceInfo{
		Plane:     int64(fs.Plane),
		Index:     int64(fs.Index),
		Nu:        int64(fs.Nu),
		Nv:        int64(fs.Nv),
		Component: int64(fs.Comp),
		Time:      fs.Time,
	}
	if err := writeHeader(wr, SliceRecord, len(fs.Data), &info); err != nil {
		return err
	}

	xs := make([]float32, len(fs.Data))
	for i, v := range fs.Data {
		xs[i] = float32(v)
	}
	return binary.Write(wr, end, xs)
}
