package nmea

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/corvid-aero/groundstation/internal/units"
)

// Sentence type tokens returned by ClassifySentence.
const (
	SentenceGGA     = "gga"
	SentenceRMC     = "rmc"
	SentenceUnknown = "unknown"
)

var (
	// ErrChecksum indicates the sentence checksum did not match its payload.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrTruncated indicates a sentence too short to carry its fields.
	ErrTruncated = errors.New("truncated sentence")
)

// ClassifySentence identifies the sentence type from its address field. The
// GP (GPS-only) and GN (multi-constellation) talkers are recognized.
func ClassifySentence(line string) string {
	switch {
	case strings.HasPrefix(line, "$GPGGA"), strings.HasPrefix(line, "$GNGGA"):
		return SentenceGGA
	case strings.HasPrefix(line, "$GPRMC"), strings.HasPrefix(line, "$GNRMC"):
		return SentenceRMC
	default:
		return SentenceUnknown
	}
}

// checksum XORs the payload bytes between '$' and '*'.
func checksum(payload string) byte {
	var sum byte
	for i := 0; i < len(payload); i++ {
		sum ^= payload[i]
	}
	return sum
}

// VerifyChecksum checks the trailing *XX field against the payload.
func VerifyChecksum(line string) error {
	if !strings.HasPrefix(line, "$") {
		return fmt.Errorf("%w: missing '$'", ErrTruncated)
	}
	star := strings.LastIndexByte(line, '*')
	if star < 0 {
		return fmt.Errorf("%w: no checksum field", ErrTruncated)
	}
	want := strings.TrimSpace(line[star+1:])
	if len(want) != 2 {
		return fmt.Errorf("%w: malformed checksum %q", ErrTruncated, want)
	}
	got := fmt.Sprintf("%02X", checksum(line[1:star]))
	if !strings.EqualFold(got, want) {
		return fmt.Errorf("%w: computed %s, sentence has %s", ErrChecksum, got, want)
	}
	return nil
}

// FormatCommand frames a bare payload as a checksummed sentence, so
// "PMTK220,100" becomes "$PMTK220,100*2F".
func FormatCommand(payload string) string {
	return fmt.Sprintf("$%s*%02X", payload, checksum(payload))
}

// GGA is a global positioning fix sentence.
type GGA struct {
	Time       string
	Lat        float64
	Lon        float64
	Quality    int
	Satellites int
	HDOP       float64
	AltitudeM  float64
	// HasFix is set when the sentence carried a usable position. Satellite
	// counts and HDOP are reported even while the receiver is acquiring.
	HasFix bool
}

// ParseGGA parses a GGA sentence, verifying the checksum first.
func ParseGGA(line string) (GGA, error) {
	if err := VerifyChecksum(line); err != nil {
		return GGA{}, err
	}
	star := strings.LastIndexByte(line, '*')
	parts := strings.Split(line[:star], ",")
	if len(parts) < 15 {
		return GGA{}, fmt.Errorf("%w: gga has %d fields", ErrTruncated, len(parts))
	}

	g := GGA{Time: parts[1]}
	var err error
	if parts[6] != "" {
		if g.Quality, err = strconv.Atoi(parts[6]); err != nil {
			return GGA{}, fmt.Errorf("fix quality %q: %w", parts[6], err)
		}
	}
	if parts[7] != "" {
		if g.Satellites, err = strconv.Atoi(parts[7]); err != nil {
			return GGA{}, fmt.Errorf("satellite count %q: %w", parts[7], err)
		}
	}
	if parts[8] != "" {
		if g.HDOP, err = strconv.ParseFloat(parts[8], 64); err != nil {
			return GGA{}, fmt.Errorf("hdop %q: %w", parts[8], err)
		}
	}
	if parts[9] != "" {
		if g.AltitudeM, err = strconv.ParseFloat(parts[9], 64); err != nil {
			return GGA{}, fmt.Errorf("altitude %q: %w", parts[9], err)
		}
	}

	if g.Quality == 0 || parts[2] == "" || parts[4] == "" {
		// Still acquiring. Counts are usable, position is not.
		return g, nil
	}
	if g.Lat, err = parseCoordinate(parts[2], parts[3]); err != nil {
		return GGA{}, err
	}
	if g.Lon, err = parseCoordinate(parts[4], parts[5]); err != nil {
		return GGA{}, err
	}
	g.HasFix = true
	return g, nil
}

// RMC is a recommended-minimum sentence carrying speed over ground.
type RMC struct {
	Valid      bool
	Lat        float64
	Lon        float64
	SpeedKnots float64
	CourseDeg  float64
}

// SpeedMS returns the speed over ground in meters per second.
func (r RMC) SpeedMS() float64 {
	return units.KnotsToMetersPerSecond(r.SpeedKnots)
}

// ParseRMC parses an RMC sentence, verifying the checksum first. A sentence
// whose status field is not "A" parses cleanly but is marked invalid.
func ParseRMC(line string) (RMC, error) {
	if err := VerifyChecksum(line); err != nil {
		return RMC{}, err
	}
	star := strings.LastIndexByte(line, '*')
	parts := strings.Split(line[:star], ",")
	if len(parts) < 12 {
		return RMC{}, fmt.Errorf("%w: rmc has %d fields", ErrTruncated, len(parts))
	}

	var m RMC
	var err error
	if parts[7] != "" {
		if m.SpeedKnots, err = strconv.ParseFloat(parts[7], 64); err != nil {
			return RMC{}, fmt.Errorf("speed %q: %w", parts[7], err)
		}
	}
	if parts[8] != "" {
		if m.CourseDeg, err = strconv.ParseFloat(parts[8], 64); err != nil {
			return RMC{}, fmt.Errorf("course %q: %w", parts[8], err)
		}
	}

	if parts[2] != "A" || parts[3] == "" || parts[5] == "" {
		return m, nil
	}
	if m.Lat, err = parseCoordinate(parts[3], parts[4]); err != nil {
		return RMC{}, err
	}
	if m.Lon, err = parseCoordinate(parts[5], parts[6]); err != nil {
		return RMC{}, err
	}
	m.Valid = true
	return m, nil
}

// parseCoordinate converts ddmm.mmmm (dddmm.mmmm for longitude) plus a
// hemisphere letter into signed decimal degrees.
func parseCoordinate(raw, hemisphere string) (float64, error) {
	dot := strings.IndexByte(raw, '.')
	if dot < 3 {
		return 0, fmt.Errorf("malformed coordinate %q", raw)
	}
	degrees, err := strconv.Atoi(raw[:dot-2])
	if err != nil {
		return 0, fmt.Errorf("malformed coordinate %q: %w", raw, err)
	}
	minutes, err := strconv.ParseFloat(raw[dot-2:], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed coordinate %q: %w", raw, err)
	}
	decimal := float64(degrees) + minutes/60
	switch hemisphere {
	case "S", "W":
		decimal = -decimal
	case "N", "E":
	default:
		return 0, fmt.Errorf("unknown hemisphere %q", hemisphere)
	}
	return decimal, nil
}
