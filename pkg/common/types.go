package common

type StorageMode string

const (
	StorageModeStream StorageMode = "stream"
	StorageModeLocal  StorageMode = "local"
	StorageModeS3     StorageMode = "s3"
)

// S3StorageInfo locates an archive stored as a single S3 object.
type S3StorageInfo struct {
	Bucket         string
	Region         string
	Key            string
	Endpoint       string
	ForcePathStyle bool
}

func (ssi S3StorageInfo) Type() string {
	return string(StorageModeS3)
}

// EntryInfo describes one archive entry as it is written or extracted.
type EntryInfo struct {
	Index int
	Name  string
	Size  uint64
}
