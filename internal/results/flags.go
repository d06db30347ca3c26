package results

// Flags is the bitset controlling QueryResults' record layout.
type Flags uint32

const (
	FlagWithItemID Flags = 1 << iota
	FlagWithRank
	FlagNeedOutputRank
	FlagWithPayloadTypes
	FlagJSON
	FlagCJSON
	FlagMsgPack
	FlagWithHeaderLen
	FlagPtrs
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// SetOpts configures one Select's result layout: which flags apply, the
// payload-type versions to report per namespace (when
// FlagWithPayloadTypes is set), and the offset/limit/withNsId knobs that
// shape how many records the cursor exposes.
type SetOpts struct {
	Flags      Flags
	PTVersions []int
	Offset     int
	Limit      int
	WithNsID   bool
}
