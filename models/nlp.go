package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NLP holds the precomputed annotations attached to a post
type NLP struct {
	Sentiment      *string    `json:"sentiment,omitempty"`
	SentimentScore *float64   `json:"sentiment_score,omitempty"`
	Keywords       []string   `json:"keywords,omitempty"`
	Entities       []Entity   `json:"entities,omitempty"`
	Categories     []Category `json:"categories,omitempty"`
	Toxicity       Toxicity   `json:"toxicity,omitempty"`
}

type Entity struct {
	Type  string   `json:"type,omitempty"`
	Text  string   `json:"text"`
	Score *float64 `json:"score,omitempty"`
}

type Category struct {
	Name  string   `json:"name,omitempty"`
	Score *float64 `json:"score,omitempty"`
}

type ToxicityScore struct {
	Label string
	Value float64
}

// Toxicity keeps the label order of the upstream object. Values that are
// not numbers decode as 0.
type Toxicity []ToxicityScore

func (t *Toxicity) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		*t = nil
		return nil
	}

	out := Toxicity{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("toxicity: unexpected key %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		out = append(out, ToxicityScore{Label: key, Value: looseNumber(raw)})
	}
	*t = out
	return nil
}

func (t Toxicity) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(s.Value, 'g', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func looseNumber(raw json.RawMessage) float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
		return 0
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil && b {
		return 1
	}
	return 0
}
