package results

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/docucore/internal/payload"
	"github.com/kartikbazzad/docucore/internal/tags"
	"github.com/kartikbazzad/docucore/internal/variant"
)

func buildPersonNamespace() *Namespace {
	pt := payload.NewTypeBuilder("person").
		AddScalar("id", variant.KindInt64, false, 8).
		AddScalar("age", variant.KindInt, false, 8).
		AddScalar("name", variant.KindString, false, 8).
		Build()
	return &Namespace{Name: "person", Type: pt, Matcher: tags.New()}
}

func buildPersonItem(ns *Namespace, id int64, age int, name string) *Item {
	val := payload.New(0, nil, 0)
	acc := payload.NewAccessor(ns.Type, val)
	_ = acc.SetNumeric(0, variant.Int64(id))
	_ = acc.SetNumeric(1, variant.Int(age))
	_ = acc.SetString(2, name)
	return NewItem(ns, val)
}

func TestEncodeCJSONRoundTrip(t *testing.T) {
	ns := buildPersonNamespace()
	item := buildPersonItem(ns, 7, 30, "Ada")

	body, err := EncodeCJSON(item)
	require.NoError(t, err)

	fields, err := DecodeCJSON(body, ns.Matcher)
	require.NoError(t, err)
	require.Equal(t, int64(7), fields["id"].AsInt64())
	require.Equal(t, 30, fields["age"].AsInt())
	require.Equal(t, "Ada", fields["name"].AsString())
}

func TestDecodeCJSONUnknownTagIsTagsMismatch(t *testing.T) {
	ns := buildPersonNamespace()
	item := buildPersonItem(ns, 1, 1, "x")
	body, err := EncodeCJSON(item)
	require.NoError(t, err)

	freshMatcher := tags.New()
	_, err = DecodeCJSON(body, freshMatcher)
	require.Error(t, err)
}

func TestEncodeJSONAndMsgPackProduceReadableBodies(t *testing.T) {
	ns := buildPersonNamespace()
	item := buildPersonItem(ns, 2, 25, "Grace")

	js, err := EncodeJSON(item)
	require.NoError(t, err)
	require.Contains(t, string(js), "Grace")

	mp, err := EncodeMsgPack(item)
	require.NoError(t, err)
	require.NotEmpty(t, mp)
}

func TestResultSerializerFrameRoundTrip(t *testing.T) {
	flags := FlagWithItemID | FlagNeedOutputRank | FlagCJSON | FlagWithHeaderLen
	ns := buildPersonNamespace()
	item := buildPersonItem(ns, 3, 40, "Lin")
	body, err := EncodeCJSON(item)
	require.NoError(t, err)

	frame := ResultSerializer{}.WriteItem(flags, ItemParams{ID: 3, LSN: 99, Rank: 0.5}, body)

	frames, err := SplitFrames(frame)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	params, rest, err := ResultSerializer{}.ReadItem(frames[0], flags)
	require.NoError(t, err)
	require.EqualValues(t, 3, params.ID)
	require.EqualValues(t, 99, params.LSN)
	require.InDelta(t, 0.5, params.Rank, 1e-9)
	require.Equal(t, body, rest)
}

// stubFetcher hands out one more frame the first time it's called, then
// reports no further data.
type stubFetcher struct {
	frame   []byte
	fetched bool
}

func (f *stubFetcher) FetchMore(ctx context.Context, queryID, offset, amount int) ([]byte, bool, error) {
	if f.fetched {
		return nil, false, nil
	}
	f.fetched = true
	return f.frame, false, nil
}

func TestIteratorFetchesMoreLazily(t *testing.T) {
	flags := FlagWithItemID | FlagCJSON | FlagWithHeaderLen
	ns := buildPersonNamespace()
	first := buildPersonItem(ns, 1, 20, "A")
	second := buildPersonItem(ns, 2, 21, "B")

	firstBody, err := EncodeCJSON(first)
	require.NoError(t, err)
	secondBody, err := EncodeCJSON(second)
	require.NoError(t, err)

	firstFrame := ResultSerializer{}.WriteItem(flags, ItemParams{ID: 1}, firstBody)
	secondFrame := ResultSerializer{}.WriteItem(flags, ItemParams{ID: 2}, secondBody)

	qr := New(flags)
	fetcher := &stubFetcher{frame: secondFrame}
	require.NoError(t, qr.Bind(ns, fetcher, firstFrame, 42, 1, 0))
	qr.hasMore = true

	it := qr.Begin()
	ctx := context.Background()

	ok, err := it.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, it.params.ID)

	ok, err = it.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok, "iterator should have fetched a second batch")
	require.EqualValues(t, 2, it.params.ID)

	item, err := it.GetItem()
	require.NoError(t, err)
	name, err := item.Get("name")
	require.NoError(t, err)
	require.Equal(t, "B", name.AsString())

	ok, err = it.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetOptsFlagsCompose(t *testing.T) {
	// pool exhaustion is tested in internal/respool; here we just check
	// that Flags/SetOpts compose without surprises.
	opts := SetOpts{Flags: FlagJSON | FlagWithItemID, Limit: 10, Offset: 5}
	require.True(t, opts.Flags.Has(FlagJSON))
	require.True(t, opts.Flags.Has(FlagWithItemID))
	require.False(t, opts.Flags.Has(FlagMsgPack))
}
