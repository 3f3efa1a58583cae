package logs

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"time"
)

// WriteJSON writes entries as an indented JSON array.
func WriteJSON(w io.Writer, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// WriteCSV writes entries with a timestamp,level,message,data header. Every
// field is double-quoted and embedded quotes are doubled.
func WriteCSV(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	writeRow(bw, "timestamp", "level", "message", "data")
	for _, e := range entries {
		writeRow(bw, e.Timestamp.Format(time.RFC3339Nano), string(e.Level), e.Message, e.Data)
	}
	return bw.Flush()
}

func writeRow(w *bufio.Writer, fields ...string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteString("\r\n")
}
