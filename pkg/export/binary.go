package export

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/codeGROOVE-dev/snooze/pkg/sleep"
)

// RecordSize is the length of one binary session record.
//
// Layout, little-endian:
//
//	0  int64   bedtime, Unix milliseconds
//	8  int64   wake time, Unix milliseconds (0 if absent)
//	16 float32 duration, seconds
//	20 uint8   confidence level
//	21 uint8   flags, bit 0 manually confirmed
//	22 float64 quality score
//	30 float64 pattern match score
//	38 uint16  interruption count
const RecordSize = 40

const flagManual = 1 << 0

var (
	// ErrInvalidResult is returned for results that are not finished sleep periods.
	ErrInvalidResult = errors.New("invalid sleep result")
	// ErrShortBuffer is returned when decoding fewer than RecordSize bytes.
	ErrShortBuffer = errors.New("short buffer")
)

// MarshalBinary encodes a valid result as a fixed size record.
// Interruption details are not kept, only their count.
func MarshalBinary(r sleep.Result) ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("marshal: %w", ErrInvalidResult)
	}
	buf := make([]byte, RecordSize)
	le := binary.LittleEndian
	le.PutUint64(buf[0:], uint64(r.Bedtime.UnixMilli()))
	le.PutUint64(buf[8:], uint64(r.WakeTime.UnixMilli()))
	le.PutUint32(buf[16:], math.Float32bits(float32(r.DurationHours*3600)))
	buf[20] = uint8(r.Confidence)
	if r.ManuallyConfirmed {
		buf[21] |= flagManual
	}
	le.PutUint64(buf[22:], math.Float64bits(r.QualityScore))
	le.PutUint64(buf[30:], math.Float64bits(r.PatternMatchScore))
	le.PutUint16(buf[38:], uint16(min(len(r.Interruptions), math.MaxUint16)))
	return buf, nil
}

// UnmarshalBinary decodes a record written by MarshalBinary. The result carries
// no interruption details; see InterruptionCount.
func UnmarshalBinary(data []byte) (sleep.Result, error) {
	if len(data) < RecordSize {
		return sleep.Result{}, fmt.Errorf("unmarshal %d bytes: %w", len(data), ErrShortBuffer)
	}
	le := binary.LittleEndian
	bed := time.UnixMilli(int64(le.Uint64(data[0:]))).UTC()
	r := sleep.Result{
		Bedtime:           &bed,
		DurationHours:     float64(math.Float32frombits(le.Uint32(data[16:]))) / 3600,
		Confidence:        sleep.Confidence(data[20]),
		ManuallyConfirmed: data[21]&flagManual != 0,
		QualityScore:      math.Float64frombits(le.Uint64(data[22:])),
		PatternMatchScore: math.Float64frombits(le.Uint64(data[30:])),
	}
	if ms := int64(le.Uint64(data[8:])); ms != 0 {
		wake := time.UnixMilli(ms).UTC()
		r.WakeTime = &wake
	}
	if r.Confidence > sleep.VeryHigh {
		return sleep.Result{}, fmt.Errorf("confidence level %d: %w", data[20], ErrInvalidResult)
	}
	return r, nil
}

// InterruptionCount reads the interruption count from a record.
func InterruptionCount(data []byte) (int, error) {
	if len(data) < RecordSize {
		return 0, fmt.Errorf("read count from %d bytes: %w", len(data), ErrShortBuffer)
	}
	return int(binary.LittleEndian.Uint16(data[38:])), nil
}
