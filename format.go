package msgpack

// MessagePack format codes, per the spec (github.com/msgpack/msgpack/blob/master/spec.md).
// Named and grouped the way other_examples' go-codec encoder lays out its
// format-byte table (mpPosFixNumMin..mpMap, one named const per code).
const (
	fixIntPositiveMax = 0x7f // 0xxxxxxx
	fixIntNegativeMin = -32  // 111xxxxx, values -32..-1

	fixMapMask  = 0x80 // 1000xxxx
	fixMapMax   = 0x8f
	fixArrMask  = 0x90 // 1001xxxx
	fixArrMax   = 0x9f
	fixStrMask  = 0xa0 // 101xxxxx
	fixStrMax   = 0xbf

	mpNil      = 0xc0
	mpFalse    = 0xc2
	mpTrue     = 0xc3
	mpBin8     = 0xc4
	mpBin16    = 0xc5
	mpBin32    = 0xc6
	mpExt8     = 0xc7
	mpExt16    = 0xc8
	mpExt32    = 0xc9
	mpFloat32  = 0xca
	mpFloat64  = 0xcb
	mpUint8    = 0xcc
	mpUint16   = 0xcd
	mpUint32   = 0xce
	mpUint64   = 0xcf
	mpInt8     = 0xd0
	mpInt16    = 0xd1
	mpInt32    = 0xd2
	mpInt64    = 0xd3
	mpFixExt1  = 0xd4
	mpFixExt2  = 0xd5
	mpFixExt4  = 0xd6
	mpFixExt8  = 0xd7
	mpFixExt16 = 0xd8
	mpStr8     = 0xd9
	mpStr16    = 0xda
	mpStr32    = 0xdb
	mpArr16    = 0xdc
	mpArr32    = 0xdd
	mpMap16    = 0xde
	mpMap32    = 0xdf
)

// extReference is the single reserved extension type code for reference
// preservation tokens (spec.md §6.3). Fixed across versions by contract.
const extReference int8 = 0

// extTime/extDuration/extUUID/extBigInt are this module's own extension
// type codes for the built-in types the spec lists as "extension-typed"
// (date/time, time-span, GUID) and big integer.
const (
	extTime     int8 = 1
	extDuration int8 = 2
	extUUID     int8 = 3
	extBigInt   int8 = 4
)

func isFixInt(b byte) bool {
	return b <= fixIntPositiveMax || b >= 0xe0
}

func isFixMap(b byte) bool { return b >= fixMapMask && b <= fixMapMax }
func isFixArr(b byte) bool { return b >= fixArrMask && b <= fixArrMax }
func isFixStr(b byte) bool { return b >= fixStrMask && b <= fixStrMax }
