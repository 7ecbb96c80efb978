package indexerclient

import (
	"encoding/json"
	"strconv"
)

// jsonResponse accepts both shapes Newznab JSON responses are seen in
// the wild: a nested {"channel":{"item":...}} envelope, or a flat
// {"items":[...]}. "item"/"items" may be a single object or an array,
// so both are decoded through itemList's custom unmarshaler.
type jsonResponse struct {
	Channel struct {
		Item itemList `json:"item"`
	} `json:"channel"`
	Items itemList `json:"items"`
}

type itemList []jsonItem

func (l *itemList) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '[' {
		var arr []jsonItem
		if err := json.Unmarshal(data, &arr); err != nil {
			return err
		}
		*l = arr
		return nil
	}
	var single jsonItem
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*l = itemList{single}
	return nil
}

type jsonItem struct {
	Title     string          `json:"title"`
	Link      string          `json:"link"`
	PubDate   string          `json:"pubDate"`
	Size      json.RawMessage `json:"size"`
	Enclosure struct {
		Attrs jsonEnclosureAttrs `json:"@attributes"`
	} `json:"enclosure"`
}

type jsonEnclosureAttrs struct {
	URL    string `json:"url"`
	Length string `json:"length"`
}

func (i jsonItem) toCandidate() Candidate {
	url := i.Enclosure.Attrs.URL
	if url == "" {
		url = i.Link
	}

	var size int64
	if len(i.Size) > 0 {
		_ = json.Unmarshal(i.Size, &size)
		if size == 0 {
			var s string
			if json.Unmarshal(i.Size, &s) == nil {
				size, _ = strconv.ParseInt(s, 10, 64)
			}
		}
	}
	if size == 0 && i.Enclosure.Attrs.Length != "" {
		size, _ = strconv.ParseInt(i.Enclosure.Attrs.Length, 10, 64)
	}

	return Candidate{
		Title:     i.Title,
		NZBURL:    url,
		SizeBytes: size,
	}
}

func parseJSON(body []byte) ([]Candidate, error) {
	var parsed jsonResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	items := parsed.Channel.Item
	if len(items) == 0 {
		items = parsed.Items
	}
	out := make([]Candidate, 0, len(items))
	for _, item := range items {
		out = append(out, item.toCandidate())
	}
	return out, nil
}
