package telemetry

import (
	"strconv"

	"openenterprise/paxcounter/version"
)

// jsonWriter appends JSON to a caller-owned buffer so the MQTT mirror can
// reuse one static array per report.
type jsonWriter struct {
	buf []byte
}

func (w *jsonWriter) writeRaw(s string) {
	w.buf = append(w.buf, s...)
}

func (w *jsonWriter) writeByte(b byte) {
	w.buf = append(w.buf, b)
}

// writeString writes a JSON string value (with quotes). Non-printable and
// non-ASCII bytes are dropped.
func (w *jsonWriter) writeString(s string) {
	w.writeByte('"')
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch b {
		case '"':
			w.writeRaw("\\\"")
		case '\\':
			w.writeRaw("\\\\")
		case '\n':
			w.writeRaw("\\n")
		case '\r':
			w.writeRaw("\\r")
		case '\t':
			w.writeRaw("\\t")
		default:
			if b >= 32 && b < 127 {
				w.writeByte(b)
			}
		}
	}
	w.writeByte('"')
}

func (w *jsonWriter) writeUint(n uint64) {
	w.buf = strconv.AppendUint(w.buf, n, 10)
}

func (w *jsonWriter) key(k string, first bool) {
	if !first {
		w.writeByte(',')
	}
	w.writeString(k)
	w.writeByte(':')
}

// AppendJSON appends r as a JSON object using the form field names, plus
// the firmware version, and returns the extended buffer.
func AppendJSON(dst []byte, r Report) []byte {
	w := jsonWriter{buf: dst}
	w.writeByte('{')
	w.key(FieldDevice, true)
	w.writeString(r.Device)
	w.key(FieldSSID, false)
	w.writeString(r.SSID)
	w.key(FieldBSSID, false)
	w.writeString(r.BSSID)
	w.key(FieldPrivate, false)
	w.writeString(FormatAddr(r.PrivateAddr))
	w.key(FieldPublic, false)
	w.writeString(FormatAddr(r.PublicAddr))
	w.key(FieldWiFi, false)
	w.writeUint(uint64(r.WiFi))
	w.key(FieldBLE, false)
	w.writeUint(uint64(r.BLE))
	w.key("version", false)
	w.writeString(version.Version)
	w.writeByte('}')
	return w.buf
}
