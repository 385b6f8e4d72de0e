package block

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// envelope is the flat wire form of a block. One struct covers every variant
// so both JSON and BSON (de)serialization go through a single tagged shape.
type envelope struct {
	Type Type   `json:"type" bson:"type"`
	ID   string `json:"id" bson:"id"`

	// text
	HTML     string `json:"html,omitempty" bson:"html,omitempty"`
	Align    string `json:"align,omitempty" bson:"align,omitempty"`
	FontSize int    `json:"fontSize,omitempty" bson:"fontSize,omitempty"`
	Fallback bool   `json:"fallback,omitempty" bson:"fallback,omitempty"`

	// image
	Src     string `json:"src,omitempty" bson:"src,omitempty"`
	Alt     string `json:"alt,omitempty" bson:"alt,omitempty"`
	Caption string `json:"caption,omitempty" bson:"caption,omitempty"`
	Width   int    `json:"width,omitempty" bson:"width,omitempty"`

	// divider / spacer
	Style string `json:"style,omitempty" bson:"style,omitempty"`
	Size  string `json:"size,omitempty" bson:"size,omitempty"`

	// signature
	Role        string `json:"role,omitempty" bson:"role,omitempty"`
	Required    bool   `json:"required,omitempty" bson:"required,omitempty"`
	CaptureMode string `json:"captureMode,omitempty" bson:"captureMode,omitempty"`

	// pricing table
	Items    []LineItem `json:"items,omitempty" bson:"items,omitempty"`
	Currency string     `json:"currency,omitempty" bson:"currency,omitempty"`
	TaxRate  float64    `json:"taxRate,omitempty" bson:"taxRate,omitempty"`
	Discount *Discount  `json:"discount,omitempty" bson:"discount,omitempty"`

	// video
	URL      string `json:"url,omitempty" bson:"url,omitempty"`
	Provider string `json:"provider,omitempty" bson:"provider,omitempty"`
}

func toEnvelope(b Block) envelope {
	e := envelope{Type: b.Type(), ID: b.ID()}
	switch v := b.(type) {
	case *Text:
		e.HTML, e.Align, e.FontSize, e.Fallback = v.HTML, v.Align, v.FontSize, v.Fallback
	case *Image:
		e.Src, e.Alt, e.Caption, e.Width = v.Src, v.Alt, v.Caption, v.Width
	case *Divider:
		e.Style = v.Style
	case *Spacer:
		e.Size = v.Size
	case *Signature:
		e.Role, e.Required, e.CaptureMode = v.Role, v.Required, v.CaptureMode
	case *PricingTable:
		e.Items, e.Currency, e.TaxRate, e.Discount = v.Items, v.Currency, v.TaxRate, v.Discount
	case *Video:
		e.URL, e.Provider = v.URL, v.Provider
	}
	return e
}

func (e envelope) block() (Block, error) {
	// clients may omit ids on freshly authored blocks
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	b := base{BlockID: e.ID}
	switch e.Type {
	case TypeText:
		return &Text{base: b, HTML: e.HTML, Align: e.Align, FontSize: e.FontSize, Fallback: e.Fallback}, nil
	case TypeImage:
		return &Image{base: b, Src: e.Src, Alt: e.Alt, Caption: e.Caption, Width: e.Width}, nil
	case TypeDivider:
		return &Divider{base: b, Style: e.Style}, nil
	case TypeSpacer:
		return &Spacer{base: b, Size: e.Size}, nil
	case TypeSignature:
		return &Signature{base: b, Role: e.Role, Required: e.Required, CaptureMode: e.CaptureMode}, nil
	case TypePricingTable:
		return &PricingTable{base: b, Items: e.Items, Currency: e.Currency, TaxRate: e.TaxRate, Discount: e.Discount}, nil
	case TypeVideo:
		return &Video{base: b, URL: e.URL, Provider: e.Provider}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
}

// Marshal encodes a single block with its type tag.
func Marshal(b Block) ([]byte, error) {
	return json.Marshal(toEnvelope(b))
}

// Unmarshal decodes a single tagged block. Unknown type tags are an error;
// lenient handling of foreign content belongs to the import mapper, not here.
func Unmarshal(data []byte) (Block, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return e.block()
}

func (l List) envelopes() []envelope {
	out := make([]envelope, len(l))
	for i, b := range l {
		out[i] = toEnvelope(b)
	}
	return out
}

func fromEnvelopes(envs []envelope) (List, error) {
	out := make(List, len(envs))
	for i, e := range envs {
		b, err := e.block()
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}

// Clone deep-copies the list through the envelope form, preserving ids.
func (l List) Clone() List {
	out, _ := fromEnvelopes(l.envelopes())
	return out
}

func (l List) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.envelopes())
}

func (l *List) UnmarshalJSON(data []byte) error {
	var envs []envelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return err
	}
	out, err := fromEnvelopes(envs)
	if err != nil {
		return err
	}
	*l = out
	return nil
}

// MarshalBSONValue stores the list as an array of tagged envelopes so Mongo
// documents round-trip through the same shape as the JSON API.
func (l List) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(l.envelopes())
}

func (l *List) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	var envs []envelope
	if err := raw.Unmarshal(&envs); err != nil {
		return err
	}
	out, err := fromEnvelopes(envs)
	if err != nil {
		return err
	}
	*l = out
	return nil
}
