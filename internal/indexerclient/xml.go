package indexerclient

import (
	"encoding/xml"
	"strconv"
	"time"
)

// rssResponse mirrors the teacher's newsnab.RSSResponse shape, extended
// with the enclosure/attr fallbacks §4.8 requires for nzb_url/size_bytes.
type rssResponse struct {
	XMLName xml.Name   `xml:"rss"`
	Channel xmlChannel `xml:"channel"`
}

type xmlChannel struct {
	Items []xmlItem `xml:"item"`
}

type xmlItem struct {
	Title      string       `xml:"title"`
	Link       string       `xml:"link"`
	PubDate    string       `xml:"pubDate"`
	Enclosure  xmlEnclosure `xml:"enclosure"`
	Attributes []xmlAttr    `xml:"attr"`
}

type xmlEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
}

type xmlAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func (i xmlItem) attribute(name string) (string, bool) {
	for _, a := range i.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// toCandidate implements §4.8's field-precedence rules: nzb_url is the
// first non-empty of enclosure @url, then item link; size_bytes is the
// enclosure length when positive, else newznab:attr[name=size].value.
// A <size> child element of the item is not read.
func (i xmlItem) toCandidate() Candidate {
	url := i.Enclosure.URL
	if url == "" {
		url = i.Link
	}

	var size int64
	if i.Enclosure.Length > 0 {
		size = i.Enclosure.Length
	} else if v, ok := i.attribute("size"); ok {
		size, _ = strconv.ParseInt(v, 10, 64)
	}

	published, _ := time.Parse(time.RFC1123Z, i.PubDate)

	return Candidate{
		Title:       i.Title,
		NZBURL:      url,
		SizeBytes:   size,
		PublishedAt: published,
	}
}

func parseXML(body []byte) ([]Candidate, error) {
	var parsed rssResponse
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(parsed.Channel.Items))
	for _, item := range parsed.Channel.Items {
		out = append(out, item.toCandidate())
	}
	return out, nil
}
