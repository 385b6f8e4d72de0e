package importer

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/draftdeck/draftdeck/internal/block"
	"github.com/draftdeck/draftdeck/internal/document"
	"github.com/draftdeck/draftdeck/pkg/logger"
)

// MapOptions tune how a provider envelope is translated.
type MapOptions struct {
	// IncludeSignatures controls whether signature fields (and the
	// synthesized per-signer blocks) are carried over.
	IncludeSignatures bool
	// PreserveVariables keeps provider fields/tokens as document variables.
	PreserveVariables bool
}

// MapResult is the canonical form of one imported provider item.
type MapResult struct {
	Title     string
	Blocks    block.List
	Variables map[string]string
	Settings  document.Settings
}

// fallbackFields is the fixed priority list the text-guess heuristic scans
// on content items whose type we do not model.
var fallbackFields = []string{"text", "content", "value", "html", "title", "name", "description"}

// MapEnvelope converts one provider template or envelope into the canonical
// block schema. Unknown content types go through the fallback heuristic;
// items it cannot salvage are dropped, which is lossy but never an error.
func MapEnvelope(env *Envelope, opts MapOptions) *MapResult {
	res := &MapResult{
		Title:     env.Name,
		Variables: map[string]string{},
		Settings:  document.Settings{SigningOrder: document.OrderParallel},
	}
	if res.Title == "" {
		res.Title = "Imported document"
	}

	for i := range env.Content {
		b := convertItem(&env.Content[i])
		if b == nil {
			continue
		}
		if _, ok := b.(*block.Signature); ok && !opts.IncludeSignatures {
			continue
		}
		res.Blocks = append(res.Blocks, b)
	}

	if opts.IncludeSignatures {
		appendSignatureFields(res, env)
		synthesizeSignerBlocks(res, env)
	}

	if opts.PreserveVariables {
		collectVariables(res, env)
	} else {
		res.Variables = nil
	}

	if days := expirationDays(env.ExpiresAt, time.Now().UTC()); days > 0 {
		res.Settings.ExpirationDays = days
	}
	return res
}

func convertItem(item *ContentItem) block.Block {
	switch normalizeType(item.Type) {
	case "text", "rich-text":
		return convertText(item, 0)
	case "heading":
		return convertText(item, 24)
	case "paragraph":
		return convertText(item, 0)
	case "image":
		return convertImage(item)
	case "signature":
		return convertSignature(item)
	case "pricing", "pricing-table":
		return convertPricing(item)
	case "video":
		src := item.URL
		if src == "" {
			src = item.Src
		}
		if src == "" {
			return nil
		}
		return block.NewVideo(src)
	case "divider", "line":
		d := block.NewDivider()
		if item.Style != "" {
			d.Style = item.Style
		}
		return d
	case "spacer", "page-break":
		return block.NewSpacer(normalizeSpacerSize(item.Size))
	case "table":
		return convertTable(item)
	case "list":
		return convertList(item)
	case "checkbox", "checklist":
		return convertChecklist(item)
	case "date-field", "input-field":
		return convertInputField(item)
	default:
		return fallbackText(item)
	}
}

func normalizeType(t string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(t)), "_", "-")
}

func normalizeSpacerSize(s string) string {
	switch strings.ToLower(s) {
	case block.SpacerSmall, "s", "sm":
		return block.SpacerSmall
	case block.SpacerLarge, "l", "lg", "xl":
		return block.SpacerLarge
	default:
		return block.SpacerMedium
	}
}

func convertText(item *ContentItem, fontSize int) block.Block {
	content := item.HTML
	if content == "" {
		content = item.Text
	}
	if content == "" {
		content = item.Content
	}
	if content == "" {
		return nil
	}
	t := block.NewText(SanitizeHTML(content))
	if fontSize > 0 {
		t.FontSize = fontSize
	}
	switch strings.ToLower(item.Alignment) {
	case block.AlignCenter:
		t.Align = block.AlignCenter
	case block.AlignRight:
		t.Align = block.AlignRight
	}
	return t
}

func convertImage(item *ContentItem) block.Block {
	src := item.Src
	if src == "" {
		src = item.URL
	}
	if src == "" {
		return nil
	}
	img := block.NewImage(src, item.Width)
	img.Alt = item.Alt
	img.Caption = item.Caption
	return img
}

func convertSignature(item *ContentItem) block.Block {
	role := item.Role
	if role == "" {
		role = item.Name
	}
	if role == "" {
		role = "Signer"
	}
	sig := block.NewSignature(role)
	if item.Required != nil {
		sig.Required = *item.Required
	}
	return sig
}

// convertPricing maps every provider row to a line item, preserving row
// order and the optional/selected/quantity-editable flags, and derives tax
// and discount from the provider's option shapes.
func convertPricing(item *ContentItem) block.Block {
	items := make([]block.LineItem, 0, len(item.Rows))
	for _, row := range item.Rows {
		selected := !row.Optional
		if row.Selected != nil {
			selected = *row.Selected
		}
		items = append(items, block.LineItem{
			Name:        row.Name,
			Description: row.Description,
			Quantity:    row.Qty,
			UnitPrice:   row.Price,
			Optional:    row.Optional,
			Selected:    selected,
			QtyEditable: row.QtyEditable,
		})
	}
	pt := block.NewPricingTable(item.Currency, items)
	pt.TaxRate = optionNumber(item.Options, "tax", "rate", "value")
	pt.Discount = optionDiscount(item.Options)
	return pt
}

// optionNumber digs a numeric value out of a provider option that is either
// a bare number or an object keyed by one of the given field names.
func optionNumber(opts map[string]any, key string, fields ...string) float64 {
	v, ok := opts[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case map[string]any:
		for _, f := range fields {
			if x, ok := n[f].(float64); ok {
				return x
			}
		}
	}
	return 0
}

// optionDiscount derives percentage-vs-fixed from the option shape: a bare
// number is a percentage; an object carries an explicit type.
func optionDiscount(opts map[string]any) *block.Discount {
	v, ok := opts["discount"]
	if !ok {
		return nil
	}
	switch d := v.(type) {
	case float64:
		if d <= 0 {
			return nil
		}
		return &block.Discount{Kind: block.DiscountPercent, Value: d}
	case map[string]any:
		val, _ := d["value"].(float64)
		if val == 0 {
			val, _ = d["amount"].(float64)
		}
		if val <= 0 {
			return nil
		}
		kind := block.DiscountPercent
		switch t, _ := d["type"].(string); strings.ToLower(t) {
		case "absolute", "fixed", "flat":
			kind = block.DiscountFixed
		}
		return &block.Discount{Kind: kind, Value: val}
	}
	return nil
}

func convertTable(item *ContentItem) block.Block {
	if len(item.Cells) == 0 && len(item.Columns) == 0 {
		return fallbackText(item)
	}
	var sb strings.Builder
	sb.WriteString("<table>")
	if len(item.Columns) > 0 {
		sb.WriteString("<tr>")
		for _, col := range item.Columns {
			fmt.Fprintf(&sb, "<th>%s</th>", html.EscapeString(col))
		}
		sb.WriteString("</tr>")
	}
	for _, row := range item.Cells {
		sb.WriteString("<tr>")
		for _, cell := range row {
			fmt.Fprintf(&sb, "<td>%s</td>", html.EscapeString(cell))
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</table>")
	return block.NewText(sb.String())
}

func convertList(item *ContentItem) block.Block {
	if len(item.Items) == 0 {
		return fallbackText(item)
	}
	var sb strings.Builder
	sb.WriteString("<ul>")
	for _, li := range item.Items {
		fmt.Fprintf(&sb, "<li>%s</li>", html.EscapeString(li))
	}
	sb.WriteString("</ul>")
	return block.NewText(sb.String())
}

func convertChecklist(item *ContentItem) block.Block {
	if len(item.Items) == 0 {
		return fallbackText(item)
	}
	var sb strings.Builder
	for i, li := range item.Items {
		mark := "&#9744;"
		if item.Checked[li] {
			mark = "&#9745;"
		}
		if i > 0 {
			sb.WriteString("<br/>")
		}
		fmt.Fprintf(&sb, "%s %s", mark, html.EscapeString(li))
	}
	return block.NewText(sb.String())
}

func convertInputField(item *ContentItem) block.Block {
	label := item.Name
	if label == "" {
		label = item.Title
	}
	if label == "" {
		return fallbackText(item)
	}
	value := item.Value
	if value == "" {
		value = "____________"
	}
	return block.NewText(fmt.Sprintf("<p><strong>%s:</strong> %s</p>",
		html.EscapeString(label), html.EscapeString(value)))
}

// fallbackText is the explicit, lossy last resort for unmodeled content
// types: it scans a fixed priority list of candidate fields and wraps the
// first non-empty string as a flagged text block. Items with nothing usable
// are dropped.
func fallbackText(item *ContentItem) block.Block {
	for _, f := range fallbackFields {
		if s := item.RawString(f); s != "" {
			t := block.NewText(SanitizeHTML(s))
			t.Fallback = true
			return t
		}
	}
	logger.Debugf("import: dropping content item of type %q, no salvageable text", item.Type)
	return nil
}

// appendSignatureFields turns provider signature fields into signature
// blocks, one per distinct assigned role.
func appendSignatureFields(res *MapResult, env *Envelope) {
	seen := map[string]bool{}
	for _, b := range res.Blocks {
		if sig, ok := b.(*block.Signature); ok {
			seen[sig.Role] = true
		}
	}
	for _, f := range env.Fields {
		if normalizeType(f.Type) != "signature" {
			continue
		}
		role := f.Role
		if role == "" {
			role = f.AssignedTo
		}
		if role == "" || seen[role] {
			continue
		}
		seen[role] = true
		res.Blocks = append(res.Blocks, block.NewSignature(role))
	}
}

// synthesizeSignerBlocks guarantees that a document with human signers has
// at least one signature block: when the provider declared signer
// recipients but no signature fields, one block per signer is appended
// after a divider.
func synthesizeSignerBlocks(res *MapResult, env *Envelope) {
	for _, b := range res.Blocks {
		if _, ok := b.(*block.Signature); ok {
			return
		}
	}
	var signers []ProviderRecipient
	for _, r := range env.Recipients {
		if strings.EqualFold(r.Role, "signer") {
			signers = append(signers, r)
		}
	}
	if len(signers) == 0 {
		return
	}
	res.Blocks = append(res.Blocks, block.NewDivider())
	for _, s := range signers {
		role := s.Name
		if role == "" {
			role = s.Email
		}
		res.Blocks = append(res.Blocks, block.NewSignature(role))
	}
}

// collectVariables flattens custom fields and tokens into the variables
// map, keyed by declared name. Fields with no value are omitted.
func collectVariables(res *MapResult, env *Envelope) {
	for _, f := range env.Fields {
		if normalizeType(f.Type) == "signature" {
			continue
		}
		if f.Name != "" && f.Value != "" {
			res.Variables[f.Name] = f.Value
		}
	}
	for _, t := range env.Tokens {
		if t.Name != "" && t.Value != "" {
			res.Variables[t.Name] = t.Value
		}
	}
}

// expirationDays converts an absolute provider expiration date into a
// relative days-from-now value, rounded up, set only when positive.
func expirationDays(expiresAt *time.Time, now time.Time) int {
	if expiresAt == nil {
		return 0
	}
	d := expiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Hours() / 24))
}
