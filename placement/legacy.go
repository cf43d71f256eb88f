package placement

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/firmadoc/pdfmerge/images"
)

// The signatures store accumulated three shapes over time:
//
//  1. a flat record: {"id": ..., "page": ..., "dataUrl": ..., "position": {...}}
//  2. a wrapper: {"signatures": [ ...flat records... ]}
//  3. a doubly nested wrapper: {"signature_data": {"signatures": [...]}}
//
// DecodeRecords accepts any of them (or a bare JSON array of flat records)
// and normalizes to []Placement. Decoding an image is deferred per record
// so one bad capture does not sink the batch; records whose image cannot be
// decoded carry the failure in ImageErr and are later skipped by the
// merger under that cause.

type legacyEnvelope struct {
	Signatures    []json.RawMessage `json:"signatures"`
	SignatureData *legacyEnvelope   `json:"signature_data"`
}

type legacyPosition struct {
	RelativeX      *float64 `json:"relativeX"`
	RelativeY      *float64 `json:"relativeY"`
	RelativeWidth  *float64 `json:"relativeWidth"`
	RelativeHeight *float64 `json:"relativeHeight"`
}

type legacyRecord struct {
	ID       string          `json:"id"`
	Page     int             `json:"page"`
	DataURL  string          `json:"dataUrl,omitempty"`
	Text     string          `json:"text,omitempty"`
	FontSize float64         `json:"fontSize,omitempty"`
	Source   string          `json:"source,omitempty"`
	Time     string          `json:"timestamp,omitempty"`
	Position *legacyPosition `json:"position,omitempty"`

	// Flat variants found alongside the nested position object.
	RelativeX      *float64 `json:"relativeX,omitempty"`
	RelativeY      *float64 `json:"relativeY,omitempty"`
	RelativeWidth  *float64 `json:"relativeWidth,omitempty"`
	RelativeHeight *float64 `json:"relativeHeight,omitempty"`
}

// DecodeRecords normalizes any of the legacy signature-storage shapes into
// canonical placements.
func DecodeRecords(data []byte) ([]Placement, error) {
	raws, err := collectRaw(data)
	if err != nil {
		return nil, err
	}

	placements := make([]Placement, 0, len(raws))
	for i, raw := range raws {
		var rec legacyRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		placements = append(placements, rec.toPlacement())
	}
	return placements, nil
}

func collectRaw(data []byte) ([]json.RawMessage, error) {
	// Bare array of records.
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err == nil {
		return raws, nil
	}

	var env legacyEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unrecognized signature record shape: %w", err)
	}
	if env.SignatureData != nil {
		env = *env.SignatureData
	}
	if env.Signatures != nil {
		return env.Signatures, nil
	}

	// A single flat record.
	return []json.RawMessage{data}, nil
}

func (rec legacyRecord) toPlacement() Placement {
	p := Placement{
		ID:        rec.ID,
		Page:      rec.Page,
		Source:    ParseSource(rec.Source),
		Text:      rec.Text,
		FontSize:  rec.FontSize,
		RelX:      deref(rec.RelativeX),
		RelY:      deref(rec.RelativeY),
		RelWidth:  deref(rec.RelativeWidth),
		RelHeight: deref(rec.RelativeHeight),
	}

	// A nested position object wins over flat fields.
	if pos := rec.Position; pos != nil {
		p.RelX = deref(pos.RelativeX)
		p.RelY = deref(pos.RelativeY)
		p.RelWidth = deref(pos.RelativeWidth)
		p.RelHeight = deref(pos.RelativeHeight)
	}

	if rec.Time != "" {
		if t, err := time.Parse(time.RFC3339, rec.Time); err == nil {
			p.SignedAt = t
		}
	}

	if rec.DataURL != "" {
		img, err := images.FromDataURL(rec.DataURL)
		if err != nil {
			p.ImageErr = err
		} else {
			p.Image = img
		}
	}
	return p
}

func deref(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// MarshalJSON writes the canonical storage shape: a flat record with the
// coordinates nested under neither wrapper. Absent coordinates are omitted
// rather than written as NaN, so the output always round-trips through
// DecodeRecords.
func (p Placement) MarshalJSON() ([]byte, error) {
	rec := legacyRecord{
		ID:             p.ID,
		Page:           p.Page,
		Text:           p.Text,
		FontSize:       p.FontSize,
		Source:         p.Source.String(),
		RelativeX:      ref(p.RelX),
		RelativeY:      ref(p.RelY),
		RelativeWidth:  ref(p.RelWidth),
		RelativeHeight: ref(p.RelHeight),
	}
	if !p.SignedAt.IsZero() {
		rec.Time = p.SignedAt.Format(time.RFC3339)
	}
	if p.Image != nil {
		rec.DataURL = p.Image.DataURL()
	}
	return json.Marshal(rec)
}

// UnmarshalJSON accepts a single record in any legacy shape.
func (p *Placement) UnmarshalJSON(data []byte) error {
	var rec legacyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*p = rec.toPlacement()
	return nil
}

func ref(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
