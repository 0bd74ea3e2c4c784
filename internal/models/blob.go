package models

import "time"

// Blob is one deduplicated content object. Blobs are immutable once written
// and are never deleted: historical patches must stay resolvable.
type Blob struct {
	Checksum         uint64    `json:"checksum"`
	UncompressedSize int64     `json:"uncompressed_size"`
	StorageKey       string    `json:"storage_key"`
	CreatedAt        time.Time `json:"created_at"`
}

// BlobRef is a non-owning reference into the blob store.
type BlobRef struct {
	Checksum         uint64 `json:"checksum"`
	UncompressedSize int64  `json:"uncompressed_size"`
	StorageKey       string `json:"storage_key"`
}

// Ref returns the reference for a stored blob.
func (b Blob) Ref() BlobRef {
	return BlobRef{
		Checksum:         b.Checksum,
		UncompressedSize: b.UncompressedSize,
		StorageKey:       b.StorageKey,
	}
}
