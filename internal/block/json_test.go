package block

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListJSONRoundTrip(t *testing.T) {
	pt := NewPricingTable("USD", []LineItem{{Name: "Seat", Quantity: 3, UnitPrice: 99, Selected: true}})
	pt.TaxRate = 7.5
	l := List{
		NewText("<p>intro</p>"),
		NewImage("https://cdn.example.com/logo.png", 60),
		NewDivider(),
		NewSignature("Client"),
		pt,
		NewVideo("https://vimeo.com/42"),
	}

	data, err := json.Marshal(l)
	require.NoError(t, err)

	var got List
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, len(l))
	for i := range l {
		require.Equal(t, l[i].Type(), got[i].Type(), "index %d", i)
		require.Equal(t, l[i].ID(), got[i].ID(), "index %d", i)
	}

	gotPT, ok := got[4].(*PricingTable)
	require.True(t, ok)
	require.InDelta(t, 297.0, gotPT.Subtotal(), 0.001)
	require.Equal(t, 7.5, gotPT.TaxRate)
}

func TestUnmarshalRejectsUnknownType(t *testing.T) {
	_, err := Unmarshal([]byte(`{"type":"hologram","id":"x"}`))
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestMarshalCarriesTypeTag(t *testing.T) {
	data, err := Marshal(NewSpacer(SpacerSmall))
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	require.Equal(t, "spacer", m["type"])
	require.NotEmpty(t, m["id"])
}
