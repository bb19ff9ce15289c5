package feed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeItem(t *testing.T, raw string) *ItemPayload {
	t.Helper()
	var p ItemPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return &p
}

func TestNormalizeIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0012", "12"},
		{"12", "12"},
		{"0007", "7"},
		{"0", "0"},
		{"000", "0"},
		{" 42 ", "42"},
		{"+42", "42"},
		{"-0042", "-42"},
		{"12345678901234567890123", "12345678901234567890123"},
	}
	for _, tc := range cases {
		got, err := NormalizeIdentifier(tc.in)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, got, tc.in)

		// normalizing twice must be a fixed point
		again, err := NormalizeIdentifier(got)
		require.NoError(t, err)
		require.Equal(t, got, again)
	}
}

func TestNormalizeIdentifierRejectsNonIntegers(t *testing.T) {
	for _, in := range []string{"", "abc", "12a", "1.5", "1e3", "--1", "+"} {
		_, err := NormalizeIdentifier(in)
		require.ErrorIs(t, err, ErrInvalidIdentifier, in)
	}
}

func TestAsciiFold(t *testing.T) {
	require.Equal(t, "Geflugel", asciiFold("Geflügel"))
	require.Equal(t, "Creme fraiche", asciiFold("Crème fraîche"))
	require.Equal(t, "plain", asciiFold("plain"))
	require.Equal(t, "", asciiFold(""))
}

func TestBuildItemInputCoercesCode(t *testing.T) {
	verrs := NewValidationError()
	in := buildItemInput(decodeItem(t, `{"code":"0007"}`), "item.", verrs)
	require.True(t, verrs.Empty())
	require.Equal(t, "7", in.Code)
}

func TestBuildItemInputAcceptsNumericCode(t *testing.T) {
	verrs := NewValidationError()
	in := buildItemInput(decodeItem(t, `{"code":10121}`), "item.", verrs)
	require.True(t, verrs.Empty())
	require.Equal(t, "10121", in.Code)
}

func TestBuildItemInputInvalidCode(t *testing.T) {
	verrs := NewValidationError()
	buildItemInput(decodeItem(t, `{"code":"7a"}`), "item.", verrs)
	require.Contains(t, verrs.Fields, "item.code")
}

func TestBuildItemInputTypePresence(t *testing.T) {
	verrs := NewValidationError()

	// absent key means NULL
	in := buildItemInput(decodeItem(t, `{"code":"1"}`), "", verrs)
	require.Nil(t, in.Type)

	// present null also means NULL
	in = buildItemInput(decodeItem(t, `{"code":"1","type":null}`), "", verrs)
	require.Nil(t, in.Type)

	// present empty string is a distinct identity
	in = buildItemInput(decodeItem(t, `{"code":"1","type":""}`), "", verrs)
	require.NotNil(t, in.Type)
	require.Equal(t, "", *in.Type)

	// values are folded to ASCII
	in = buildItemInput(decodeItem(t, `{"code":"1","type":"Käse"}`), "", verrs)
	require.NotNil(t, in.Type)
	require.Equal(t, "Kase", *in.Type)

	require.True(t, verrs.Empty())
}

func TestBuildItemInputNotesFolded(t *testing.T) {
	verrs := NewValidationError()
	in := buildItemInput(decodeItem(t, `{"code":"1","notes":"gekühlt"}`), "", verrs)
	require.Equal(t, "gekuhlt", in.Notes)
}

func TestBuildItemInputLegacyDescriptorAlias(t *testing.T) {
	verrs := NewValidationError()
	in := buildItemInput(decodeItem(t, `{"code":"1","trade_item_descriptor":"CASE","trade_item_unit_descriptor":"PALLET"}`), "", verrs)
	require.Equal(t, "CASE", in.TradeItemUnitDescriptor)
}

func TestBuildItemInputCategorySwap(t *testing.T) {
	verrs := NewValidationError()
	in := buildItemInput(decodeItem(t, `{"code":"1","category":"FLEISCH","category_id":"77"}`), "", verrs)
	require.True(t, verrs.Empty())
	require.Equal(t, "FLEISCH", in.CategoryID)
	require.NotNil(t, in.CategID)
	require.Equal(t, int64(77), *in.CategID)
}

func TestBuildItemInputCategorySwapWithoutCategoryKey(t *testing.T) {
	verrs := NewValidationError()
	in := buildItemInput(decodeItem(t, `{"code":"1","category_id":"77","categ_id":5}`), "", verrs)
	require.Equal(t, "77", in.CategoryID)
	require.NotNil(t, in.CategID)
	require.Equal(t, int64(5), *in.CategID)
}

func TestBuildItemInputEdekaCoercion(t *testing.T) {
	verrs := NewValidationError()

	// absent stays NULL
	in := buildItemInput(decodeItem(t, `{"code":"1"}`), "", verrs)
	require.Nil(t, in.EdekaArticleNumber)

	// present falsy values become the empty string, never null
	for _, raw := range []string{`false`, `null`, `""`, `0`} {
		in = buildItemInput(decodeItem(t, `{"code":"1","edeka_article_number":`+raw+`}`), "", verrs)
		require.NotNil(t, in.EdekaArticleNumber, raw)
		require.Equal(t, "", *in.EdekaArticleNumber, raw)
	}

	// real values pass through
	in = buildItemInput(decodeItem(t, `{"code":"1","edeka_article_number":"E123"}`), "", verrs)
	require.NotNil(t, in.EdekaArticleNumber)
	require.Equal(t, "E123", *in.EdekaArticleNumber)

	require.True(t, verrs.Empty())
}

func TestBuildItemInputRelatedGTINs(t *testing.T) {
	verrs := NewValidationError()
	in := buildItemInput(decodeItem(t, `{"code":"1","related_products":[{"gtin":"0099","trade_item_unit_descriptor":"CASE"},{"gtin":4011100000001,"trade_item_unit_descriptor":"PALLET"}]}`), "item.", verrs)
	require.True(t, verrs.Empty())
	require.Len(t, in.Related, 2)
	require.Equal(t, "99", in.Related[0].GTIN)
	require.Equal(t, "4011100000001", in.Related[1].GTIN)
}

func TestBuildItemInputInvalidGTIN(t *testing.T) {
	verrs := NewValidationError()
	buildItemInput(decodeItem(t, `{"code":"1","related_products":[{"gtin":"x1","trade_item_unit_descriptor":"CASE"}]}`), "item.", verrs)
	require.Contains(t, verrs.Fields, "item.related_products.0.gtin")
}

func TestTruthyJSON(t *testing.T) {
	for _, raw := range []string{`null`, `false`, `""`, `0`, `{}`, `[]`, ``} {
		require.False(t, truthyJSON(json.RawMessage(raw)), raw)
	}
	for _, raw := range []string{`true`, `"x"`, `1`, `{"value":900}`, `[1]`} {
		require.True(t, truthyJSON(json.RawMessage(raw)), raw)
	}
}

func TestMergeItemPartialUpdateLaw(t *testing.T) {
	typ := "MEAT"
	existing := Item{
		ID:    3,
		Code:  "7",
		Type:  &typ,
		Brand: "oldbrand",
		Notes: "old notes",
	}

	verrs := NewValidationError()
	in := buildItemInput(decodeItem(t, `{"code":"7","type":"MEAT","brand":"newbrand","packaging":"crate","notes":""}`), "", verrs)
	require.True(t, verrs.Empty())

	merged := mergeItem(existing, in)
	require.Equal(t, int64(3), merged.ID)
	require.Equal(t, "newbrand", merged.Brand)
	require.Equal(t, "crate", merged.Packaging)
	// empty incoming notes must not clobber the stored value
	require.Equal(t, "old notes", merged.Notes)
}

func TestMergeItemKeepsWeightWhenIncomingEmpty(t *testing.T) {
	existing := Item{NetWeight: json.RawMessage(`{"value":500,"unit":"GRM"}`)}
	in := ItemInput{NetWeight: json.RawMessage(`null`)}
	merged := mergeItem(existing, in)
	require.JSONEq(t, `{"value":500,"unit":"GRM"}`, string(merged.NetWeight))

	in = ItemInput{NetWeight: json.RawMessage(`{"value":750,"unit":"GRM"}`)}
	merged = mergeItem(existing, in)
	require.JSONEq(t, `{"value":750,"unit":"GRM"}`, string(merged.NetWeight))
}

func TestItemKeyDistinguishesNullFromEmpty(t *testing.T) {
	empty := ""
	require.NotEqual(t, ItemKey("7", nil), ItemKey("7", &empty))
	require.Equal(t, ItemKey("7", nil), ItemKey("7", nil))
}
