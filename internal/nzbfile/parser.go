package nzbfile

import (
	"encoding/xml"
	"io"
	"strconv"

	"github.com/datallboy/gonzb/internal/errs"
)

// rawNZB/rawFile/rawSegment mirror the wire shape with string attributes
// so that a malformed integer can be skipped rather than aborting the
// whole decode — encoding/xml's typed-attribute unmarshal has no such
// "skip and continue" mode, so the raw-then-convert shape is load-bearing,
// not decoration.
type rawNZB struct {
	XMLName xml.Name  `xml:"nzb"`
	Files   []rawFile `xml:"file"`
}

type rawFile struct {
	Subject  string   `xml:"subject,attr"`
	Poster   string   `xml:"poster,attr"`
	Date     string   `xml:"date,attr"`
	Groups   []string `xml:"groups>group"`
	Segments []rawSeg `xml:"segments>segment"`
}

type rawSeg struct {
	Number    string `xml:"number,attr"`
	Bytes     string `xml:"bytes,attr"`
	MessageID string `xml:",chardata"`
}

// Parse decodes an NZB document, accepting the document with or without
// the default Newznab namespace declaration (Go's xml decoder matches on
// local element names, so no special-casing of xmlns is needed). Malformed
// top-level XML is a fatal *errs.ParseError. A document with no <file>
// elements decodes successfully to an NZB with an empty Files slice —
// validating that is the caller's job.
func Parse(r io.Reader) (*NZB, error) {
	var raw rawNZB
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, errs.NewParseError("nzb", err)
	}

	nzb := &NZB{Files: make([]File, 0, len(raw.Files))}
	for _, rf := range raw.Files {
		f := File{
			Subject: rf.Subject,
			Poster:  rf.Poster,
			Groups:  rf.Groups,
		}
		if d, err := strconv.ParseInt(rf.Date, 10, 64); err == nil {
			f.Date = d
		}

		segs := make([]Segment, 0, len(rf.Segments))
		for _, rs := range rf.Segments {
			number, errN := strconv.Atoi(rs.Number)
			bytesN, errB := strconv.ParseInt(rs.Bytes, 10, 64)
			if errN != nil || errB != nil {
				// Malformed segment: skip silently, per §4.1.
				continue
			}
			segs = append(segs, Segment{
				Number:    number,
				Bytes:     bytesN,
				MessageID: trimAngleBrackets(rs.MessageID),
			})
		}
		sortSegments(segs)
		f.Segments = segs

		nzb.Files = append(nzb.Files, f)
	}

	return nzb, nil
}

func trimAngleBrackets(id string) string {
	if len(id) >= 2 && id[0] == '<' && id[len(id)-1] == '>' {
		return id[1 : len(id)-1]
	}
	return id
}
