// Package nmea turns the replayed position of one tracked object into an
// NMEA-0183 stream, so chart plotters and moving-map software can follow
// the replay like a live GPS.
package nmea

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const knotsPerMeterPerSecond = 1.943844

// Fix is one position report.
type Fix struct {
	Time   time.Time
	Lat    float64 // degrees
	Lon    float64 // degrees
	Alt    float64 // meters above mean sea level
	Speed  float64 // knots over ground
	Course float64 // degrees true
	Valid  bool
}

// Checksum calculates the NMEA checksum for a sentence
func Checksum(sentence string) string {
	var checksum byte
	for i := 1; i < len(sentence); i++ { // Skip the '$' character
		checksum ^= sentence[i]
	}
	return fmt.Sprintf("%02X", checksum)
}

// Format formats a complete NMEA sentence with checksum
func Format(sentence string) string {
	return fmt.Sprintf("%s*%s\r\n", sentence, Checksum(sentence))
}

// latitude returns ddmm.mmmm and the hemisphere.
func latitude(lat float64) (string, string) {
	deg := int(math.Abs(lat))
	mins := (math.Abs(lat) - float64(deg)) * 60
	hem := "N"
	if lat < 0 {
		hem = "S"
	}
	return fmt.Sprintf("%02d%07.4f", deg, mins), hem
}

// longitude returns dddmm.mmmm and the hemisphere.
func longitude(lon float64) (string, string) {
	deg := int(math.Abs(lon))
	mins := (math.Abs(lon) - float64(deg)) * 60
	hem := "E"
	if lon < 0 {
		hem = "W"
	}
	return fmt.Sprintf("%03d%07.4f", deg, mins), hem
}

func hhmmss(t time.Time) string {
	return t.UTC().Format("150405")
}

// hhmmssss is HHMMSS.SS.
func hhmmssss(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%02d%02d%02d.%02d", u.Hour(), u.Minute(), u.Second(), u.Nanosecond()/10000000)
}

// GGA generates a GGA (Global Positioning System Fix Data) sentence
func GGA(f Fix, satellites int) string {
	if !f.Valid {
		return Format(fmt.Sprintf("$GPGGA,%s,,,,,0,00,,,,,,,,,", hhmmss(f.Time)))
	}
	lat, latHem := latitude(f.Lat)
	lon, lonHem := longitude(f.Lon)

	sentence := fmt.Sprintf("$GPGGA,%s,%s,%s,%s,%s,1,%02d,1.2,%.1f,M,0.0,M,,",
		hhmmss(f.Time),
		lat, latHem,
		lon, lonHem,
		satellites,
		f.Alt)
	return Format(sentence)
}

// RMC generates an RMC (Recommended Minimum) sentence
func RMC(f Fix) string {
	date := f.Time.UTC().Format("020106") // DDMMYY
	if !f.Valid {
		return Format(fmt.Sprintf("$GPRMC,%s,V,,,,,,,,%s,,,N", hhmmss(f.Time), date))
	}
	lat, latHem := latitude(f.Lat)
	lon, lonHem := longitude(f.Lon)

	sentence := fmt.Sprintf("$GPRMC,%s,A,%s,%s,%s,%s,%.1f,%.1f,%s,,,A",
		hhmmss(f.Time),
		lat, latHem,
		lon, lonHem,
		f.Speed, f.Course, date)
	return Format(sentence)
}

// GLL generates a GLL (Geographic Position - Latitude/Longitude) sentence
func GLL(f Fix) string {
	if !f.Valid {
		return Format(fmt.Sprintf("$GPGLL,,,,,%s,V,N", hhmmssss(f.Time)))
	}
	lat, latHem := latitude(f.Lat)
	lon, lonHem := longitude(f.Lon)
	return Format(fmt.Sprintf("$GPGLL,%s,%s,%s,%s,%s,A,A", lat, latHem, lon, lonHem, hhmmssss(f.Time)))
}

// VTG generates a VTG (Track Made Good and Ground Speed) sentence
func VTG(f Fix) string {
	if !f.Valid {
		return Format("$GPVTG,,,,,,,,,N")
	}
	// 1 knot = 1.852 km/h
	return Format(fmt.Sprintf("$GPVTG,%.1f,T,,M,%.1f,N,%.1f,K,A", f.Course, f.Speed, f.Speed*1.852))
}

// GSA generates a GSA (DOP and active satellites) sentence listing the
// first satellites PRNs 1..n, at most 12.
func GSA(satellites int) string {
	ids := make([]string, 12)
	for i := 0; i < min(satellites, 12); i++ {
		ids[i] = fmt.Sprintf("%02d", i+1)
	}
	return Format(fmt.Sprintf("$GPGSA,A,3,%s,2.1,1.2,1.8", strings.Join(ids, ",")))
}

// ZDA generates a ZDA (UTC Date and Time) sentence
func ZDA(t time.Time) string {
	u := t.UTC()
	return Format(fmt.Sprintf("$GPZDA,%s,%02d,%02d,%04d,00,00", hhmmssss(u), u.Day(), int(u.Month()), u.Year()))
}
