package interfaces

// RecordSpan returns the number of bytes the record at offset occupies on
// base, including its own length header: a 4-byte little-endian count of
// the bytes that follow. A plain record's length field and a key/value
// record's total-inner-length field share this same "header then that
// many bytes" shape, so anything that needs a record's extent without
// caring which layout produced it (the in-memory index's comparator
// tiebreak, a k-way merger comparing two fronts) can recover it
// generically from the page bytes alone.
func RecordSpan(base Page, offset int) int {
	b := base.Bytes()
	n := uint32(b[offset]) | uint32(b[offset+1])<<8 | uint32(b[offset+2])<<16 | uint32(b[offset+3])<<24
	return 4 + int(n)
}
