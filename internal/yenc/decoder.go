// Package yenc decodes yEnc-encoded Usenet article bodies. It never
// returns an error for well-formed input; for input with no =ybegin line
// the whole body is translated raw and the header is left empty, matching
// real-world decoders that would rather hand back bytes than throw.
package yenc

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
)

// Header carries the =ybegin/=ypart fields callers care about.
type Header struct {
	Name   string
	Size   int64
	Part   int
	Total  int
	Begin  int64
	End    int64
	CRC32  string
	PCRC32 string
}

// Decode reads one article body (everything from =ybegin through =yend)
// and returns the decoded bytes plus the parsed header fields. If no
// =ybegin marker is found, the entire input is translated as body bytes
// with a zero-value Header.
func Decode(r io.Reader) ([]byte, Header, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Header{}, err
	}
	return DecodeBytes(data)
}

// DecodeBytes is the byte-slice entry point; Decode is a thin io.Reader
// wrapper around it.
func DecodeBytes(raw []byte) ([]byte, Header, error) {
	beginIdx := bytes.Index(raw, []byte("=ybegin "))
	if beginIdx == -1 {
		return translate(stripNewlines(raw)), Header{}, nil
	}

	lineEnd := indexLineEnd(raw, beginIdx)
	hdr := parseKeyValues(string(raw[beginIdx+len("=ybegin "):lineEnd]))

	bodyStart := lineEnd
	var partBegin, partEnd int64
	// Optional =ypart line immediately follows =ybegin.
	rest := bytes.TrimLeft(raw[lineEnd:], "\r\n")
	if bytes.HasPrefix(rest, []byte("=ypart ")) {
		partLineEnd := indexLineEnd(raw, lineEnd+(len(raw[lineEnd:])-len(rest)))
		partFields := parseKeyValues(string(rest[len("=ypart "):]))
		if v, ok := partFields["begin"]; ok {
			n, _ := strconv.ParseInt(v, 10, 64)
			partBegin = n - 1 // yEnc offsets are 1-based
		}
		if v, ok := partFields["end"]; ok {
			partEnd, _ = strconv.ParseInt(v, 10, 64)
		}
		bodyStart = partLineEnd
	}

	endIdx := bytes.Index(raw[bodyStart:], []byte("=yend"))
	var body, footer []byte
	if endIdx == -1 {
		body = raw[bodyStart:]
	} else {
		body = raw[bodyStart : bodyStart+endIdx]
		footer = raw[bodyStart+endIdx:]
	}

	h := parseHeaderFields(hdr)
	h.Begin, h.End = partBegin, partEnd
	if footer != nil {
		fEnd := indexLineEnd(footer, 0)
		footerFields := parseKeyValues(string(footer[len("=yend"):fEnd]))
		if v, ok := footerFields["crc32"]; ok {
			h.CRC32 = v
		}
		if v, ok := footerFields["pcrc32"]; ok {
			h.PCRC32 = v
		}
	}

	return translate(stripNewlines(body)), h, nil
}

func parseHeaderFields(kv map[string]string) Header {
	var h Header
	h.Name = kv["name"]
	if v, ok := kv["size"]; ok {
		h.Size, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := kv["part"]; ok {
		h.Part, _ = strconv.Atoi(v)
	}
	if v, ok := kv["total"]; ok {
		h.Total, _ = strconv.Atoi(v)
	}
	return h
}

// parseKeyValues parses "KEY=value KEY2=value2 name=rest of line" where
// the name field, if present, swallows everything to line end since
// filenames may contain spaces.
func parseKeyValues(line string) map[string]string {
	out := make(map[string]string)
	fields := strings.Fields(line)
	for i, f := range fields {
		eq := strings.IndexByte(f, '=')
		if eq == -1 {
			continue
		}
		key := f[:eq]
		if key == "name" {
			out["name"] = strings.Join(fields[i:], " ")[len("name="):]
			break
		}
		out[key] = f[eq+1:]
	}
	return out
}

func indexLineEnd(b []byte, from int) int {
	idx := bytes.IndexByte(b[from:], '\n')
	if idx == -1 {
		return len(b)
	}
	return from + idx + 1
}

func stripNewlines(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c == '\r' || c == '\n' {
			continue
		}
		out = append(out, c)
	}
	return out
}

// translate applies the yEnc byte translation: t[b] = (b - 42) mod 256,
// with escaped bytes (preceded by '=') further shifted by -64.
func translate(b []byte) []byte {
	out := make([]byte, 0, len(b))
	escaped := false
	for _, c := range b {
		if c == '=' && !escaped {
			escaped = true
			continue
		}
		var decoded byte
		if escaped {
			decoded = c - 64 - 42
			escaped = false
		} else {
			decoded = c - 42
		}
		out = append(out, decoded)
	}
	return out
}

// StreamDecoder offers an incremental bufio.Reader-based decode for large
// articles where buffering the whole body is wasteful — grounded on the
// teacher's io.Reader-based YencDecoder.
type StreamDecoder struct {
	src     *bufio.Reader
	header  Header
	done    bool
	escaped bool
}

// NewStreamDecoder wraps r and leaves the caller to call DiscardHeader
// before Read.
func NewStreamDecoder(r io.Reader) *StreamDecoder {
	return &StreamDecoder{src: bufio.NewReaderSize(r, 64*1024)}
}

// DiscardHeader consumes bytes up to and including the =ybegin (and
// optional =ypart) line(s), populating Header().
func (d *StreamDecoder) DiscardHeader() error {
	for {
		line, err := d.src.ReadString('\n')
		if err != nil {
			return err
		}
		if strings.HasPrefix(line, "=ybegin") {
			d.header = parseHeaderFields(parseKeyValues(strings.TrimPrefix(line, "=ybegin ")))
			return d.maybeConsumePartLine()
		}
	}
}

func (d *StreamDecoder) maybeConsumePartLine() error {
	peek, err := d.src.Peek(7)
	if err != nil {
		return nil
	}
	if !strings.HasPrefix(string(peek), "=ypart ") {
		return nil
	}
	line, err := d.src.ReadString('\n')
	if err != nil {
		return err
	}
	fields := parseKeyValues(strings.TrimPrefix(line, "=ypart "))
	if v, ok := fields["begin"]; ok {
		n, _ := strconv.ParseInt(v, 10, 64)
		d.header.Begin = n - 1 // yEnc offsets are 1-based
	}
	if v, ok := fields["end"]; ok {
		d.header.End, _ = strconv.ParseInt(v, 10, 64)
	}
	return nil
}

func (d *StreamDecoder) Header() Header { return d.header }

// Read implements io.Reader, returning io.EOF once =yend is reached.
func (d *StreamDecoder) Read(p []byte) (int, error) {
	if d.done {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) {
		b, err := d.src.ReadByte()
		if err != nil {
			return n, err
		}
		if b == '=' && !d.escaped {
			peek, perr := d.src.Peek(4)
			if perr == nil && string(peek) == "yend" {
				d.done = true
				return n, io.EOF
			}
			d.escaped = true
			continue
		}
		if (b == '\r' || b == '\n') && !d.escaped {
			continue
		}
		if d.escaped {
			p[n] = b - 64 - 42
			d.escaped = false
		} else {
			p[n] = b - 42
		}
		n++
	}
	return n, nil
}
