package common

import "math"

/*

Archives are a single linear stream, all integers little-endian and unsigned:

	Archive := Header Entry*
	Header  := file_count:u16
	Entry   := name_length:u8 name:u8[name_length] content_length:u64 content:u8[content_length]

There is no magic, padding, index or checksum. Entries appear in the order
the files were given to the writer.

*/

const (
	HeaderLength             = 2
	EntryNameLengthSize      = 1
	EntryContentLengthSize   = 8
	MaxFileCount             = math.MaxUint16
	MaxFilenameLength        = math.MaxUint8
	DefaultChunkSize         = 32 * 1024
	DefaultArchiveFileMode   = 0644
	DefaultExtractedFileMode = 0644
	DefaultExtractedDirMode  = 0755
)
