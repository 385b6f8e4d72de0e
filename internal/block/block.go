package block

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Type tags the closed set of block variants a document may contain.
type Type string

const (
	TypeText         Type = "text"
	TypeImage        Type = "image"
	TypeDivider      Type = "divider"
	TypeSpacer       Type = "spacer"
	TypeSignature    Type = "signature"
	TypePricingTable Type = "pricing-table"
	TypeVideo        Type = "video"
)

var (
	ErrInvalid     = errors.New("invalid block")
	ErrUnknownType = errors.New("unknown block type")
)

// Block is the canonical content unit of a document. The set of
// implementations is closed: consumers switch exhaustively on the concrete
// type and a new variant is a compile-time visible addition.
type Block interface {
	ID() string
	Type() Type
	Validate() error

	sealed()
}

// base carries the stable identity shared by every variant. The id survives
// content replacement and is what ordering and diffing key on.
type base struct {
	BlockID string `json:"id" bson:"id"`
}

func newBase() base           { return base{BlockID: uuid.NewString()} }
func (b base) ID() string     { return b.BlockID }
func (base) sealed()          {}

// Alignment values accepted by text blocks.
const (
	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"
)

// Text holds sanitized HTML content.
type Text struct {
	base     `bson:",inline"`
	HTML     string `json:"html" bson:"html"`
	Align    string `json:"align,omitempty" bson:"align,omitempty"`
	FontSize int    `json:"fontSize,omitempty" bson:"fontSize,omitempty"`
	// Fallback marks provisional content produced by the import text-guess
	// heuristic so senders can review it before finalizing the document.
	Fallback bool `json:"fallback,omitempty" bson:"fallback,omitempty"`
}

func NewText(html string) *Text {
	return &Text{base: newBase(), HTML: html, Align: AlignLeft}
}

func (*Text) Type() Type { return TypeText }

func (t *Text) Validate() error {
	switch t.Align {
	case "", AlignLeft, AlignCenter, AlignRight:
	default:
		return fmt.Errorf("%w: text align %q", ErrInvalid, t.Align)
	}
	if t.FontSize < 0 {
		return fmt.Errorf("%w: negative font size", ErrInvalid)
	}
	return nil
}

// Image width is a percentage of the document width, clamped to [10,100].
const (
	MinImageWidth = 10
	MaxImageWidth = 100
)

type Image struct {
	base    `bson:",inline"`
	Src     string `json:"src" bson:"src"`
	Alt     string `json:"alt,omitempty" bson:"alt,omitempty"`
	Caption string `json:"caption,omitempty" bson:"caption,omitempty"`
	Width   int    `json:"width" bson:"width"`
}

// NewImage clamps width into the allowed range rather than rejecting it;
// provider imports routinely carry 0 or out-of-range widths.
func NewImage(src string, width int) *Image {
	return &Image{base: newBase(), Src: src, Width: ClampWidth(width)}
}

func ClampWidth(w int) int {
	if w < MinImageWidth {
		return MinImageWidth
	}
	if w > MaxImageWidth {
		return MaxImageWidth
	}
	return w
}

func (*Image) Type() Type { return TypeImage }

func (i *Image) Validate() error {
	if i.Src == "" {
		return fmt.Errorf("%w: image src required", ErrInvalid)
	}
	if i.Width < MinImageWidth || i.Width > MaxImageWidth {
		return fmt.Errorf("%w: image width %d outside [%d,%d]", ErrInvalid, i.Width, MinImageWidth, MaxImageWidth)
	}
	return nil
}

// Divider styles.
const (
	DividerSolid  = "solid"
	DividerDashed = "dashed"
	DividerDotted = "dotted"
)

type Divider struct {
	base  `bson:",inline"`
	Style string `json:"style,omitempty" bson:"style,omitempty"`
}

func NewDivider() *Divider { return &Divider{base: newBase(), Style: DividerSolid} }

func (*Divider) Type() Type { return TypeDivider }

func (d *Divider) Validate() error {
	switch d.Style {
	case "", DividerSolid, DividerDashed, DividerDotted:
		return nil
	}
	return fmt.Errorf("%w: divider style %q", ErrInvalid, d.Style)
}

// Spacer sizes.
const (
	SpacerSmall  = "small"
	SpacerMedium = "medium"
	SpacerLarge  = "large"
)

type Spacer struct {
	base `bson:",inline"`
	Size string `json:"size" bson:"size"`
}

func NewSpacer(size string) *Spacer { return &Spacer{base: newBase(), Size: size} }

func (*Spacer) Type() Type { return TypeSpacer }

func (s *Spacer) Validate() error {
	switch s.Size {
	case SpacerSmall, SpacerMedium, SpacerLarge:
		return nil
	}
	return fmt.Errorf("%w: spacer size %q", ErrInvalid, s.Size)
}

// Signature capture modes.
const (
	CaptureDraw  = "draw"
	CaptureType  = "type"
	CaptureImage = "image"
)

// Signature marks where a given signer role signs. It carries no ordering
// semantics beyond its position in the document content.
type Signature struct {
	base        `bson:",inline"`
	Role        string `json:"role" bson:"role"`
	Required    bool   `json:"required" bson:"required"`
	CaptureMode string `json:"captureMode,omitempty" bson:"captureMode,omitempty"`
}

func NewSignature(role string) *Signature {
	return &Signature{base: newBase(), Role: role, Required: true, CaptureMode: CaptureDraw}
}

func (*Signature) Type() Type { return TypeSignature }

func (s *Signature) Validate() error {
	if s.Role == "" {
		return fmt.Errorf("%w: signature role required", ErrInvalid)
	}
	switch s.CaptureMode {
	case "", CaptureDraw, CaptureType, CaptureImage:
		return nil
	}
	return fmt.Errorf("%w: signature capture mode %q", ErrInvalid, s.CaptureMode)
}

type Video struct {
	base     `bson:",inline"`
	URL      string `json:"url" bson:"url"`
	Provider string `json:"provider" bson:"provider"`
}

// NewVideo derives the provider tag from the URL pattern.
func NewVideo(url string) *Video {
	return &Video{base: newBase(), URL: url, Provider: DetectVideoProvider(url)}
}

func (*Video) Type() Type { return TypeVideo }

func (v *Video) Validate() error {
	if v.URL == "" {
		return fmt.Errorf("%w: video url required", ErrInvalid)
	}
	return nil
}

// List is a document's ordered block sequence. Order is significant.
type List []Block

// Validate checks every block in order and reports the first failure.
func (l List) Validate() error {
	for i, b := range l {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("block %d (%s): %w", i, b.Type(), err)
		}
	}
	return nil
}

// ReplaceAt swaps the content at index i with nb while preserving the
// original block's id. Identity is by id, so edits never mint a new one.
func (l List) ReplaceAt(i int, nb Block) error {
	if i < 0 || i >= len(l) {
		return fmt.Errorf("%w: index %d out of range", ErrInvalid, i)
	}
	if err := nb.Validate(); err != nil {
		return err
	}
	setID(nb, l[i].ID())
	l[i] = nb
	return nil
}

// IndexOf returns the position of the block with the given id, or -1.
func (l List) IndexOf(id string) int {
	for i, b := range l {
		if b.ID() == id {
			return i
		}
	}
	return -1
}

func setID(b Block, id string) {
	switch v := b.(type) {
	case *Text:
		v.BlockID = id
	case *Image:
		v.BlockID = id
	case *Divider:
		v.BlockID = id
	case *Spacer:
		v.BlockID = id
	case *Signature:
		v.BlockID = id
	case *PricingTable:
		v.BlockID = id
	case *Video:
		v.BlockID = id
	}
}
