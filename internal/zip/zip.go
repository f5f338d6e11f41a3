// Copyright Elliot Nunn. Portions copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zip reads Zip archives that are already entirely in memory.
// - only stored (0) and DEFLATE (8) entries can be extracted
// - the central directory's sizes are trusted over the local headers'
// - duplicate names are all kept, in central directory order
// - extracted content never shares memory with the archive
package zip

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/elliotnunn/memzip/internal/flate"
)

var (
	ErrFormat    = errors.New("zip: not a valid zip file")
	ErrTruncated = errors.New("zip: truncated archive")
	ErrCorrupt   = errors.New("zip: corrupt compressed data")
	ErrTooLarge  = errors.New("zip: entry too large for this platform")
	ErrAlgorithm = errors.New("zip: unsupported compression algorithm")
	ErrEncrypted = errors.New("zip: encrypted entries not supported")
	ErrNoSpanned = errors.New("zip: spanned archives not supported")
	ErrNoZip64   = errors.New("zip: ZIP64 archives not supported")
)

// UnsupportedMethodError is returned for an entry that is neither stored nor DEFLATE.
// It matches [ErrAlgorithm].
type UnsupportedMethodError struct {
	Method uint16
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("%v: %d", ErrAlgorithm, e.Method)
}

func (e *UnsupportedMethodError) Is(target error) bool { return target == ErrAlgorithm }

// EntryError records which entry stopped [Parse] or [ParseNames].
type EntryError struct {
	Index int
	Name  string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("zip: entry %d %q: %v", e.Index, e.Name, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

const (
	eocdLen         = 22
	dirHeaderLen    = 46
	fileHeaderLen   = 30
	zip64LocatorLen = 20
	maxCommentLen   = 65535

	Store   uint16 = 0
	Deflate uint16 = 8
)

// File is one central directory record.
type File struct {
	Name             string
	Method           uint16
	Flags            uint16
	CompressedSize   uint32
	UncompressedSize uint32
	HeaderOffset     uint32 // relative to the start of the archive proper
	Modified         time.Time
}

// Archive is a parsed central directory over an immutable buffer.
// Its methods may be called concurrently.
type Archive struct {
	data []byte
	base int64 // bytes of unrelated data prepended to the archive
	File []File
}

// Entry is an extracted file.
type Entry struct {
	Name    string
	Content []byte
}

// Text returns the content if it is valid UTF-8, otherwise "".
func (e Entry) Text() string {
	if !utf8.Valid(e.Content) {
		return ""
	}
	return string(e.Content)
}

// Stat describes an entry without extracting it.
type Stat struct {
	Name           string
	Size           uint32
	CompressedSize uint32
}

// Parse extracts every entry in central directory order.
// The first entry that fails stops the parse with an [*EntryError].
func Parse(data []byte) ([]Entry, error) {
	a, err := NewArchive(data)
	if err != nil {
		return nil, err
	}
	ret := make([]Entry, 0, len(a.File))
	for i := range a.File {
		f := &a.File[i]
		name, content, err := a.extract(f)
		if err != nil {
			return nil, &EntryError{Index: i, Name: f.Name, Err: err}
		}
		ret = append(ret, Entry{Name: name, Content: content})
	}
	return ret, nil
}

// ParseNames lists every entry in central directory order without touching
// any compressed data.
func ParseNames(data []byte) ([]Stat, error) {
	a, err := NewArchive(data)
	if err != nil {
		return nil, err
	}
	ret := make([]Stat, 0, len(a.File))
	for i := range a.File {
		st, err := a.Stat(&a.File[i])
		if err != nil {
			return nil, &EntryError{Index: i, Name: a.File[i].Name, Err: err}
		}
		ret = append(ret, st)
	}
	return ret, nil
}

// NewArchive finds and walks the central directory.
// The buffer must not be modified while the Archive is in use.
func NewArchive(data []byte) (*Archive, error) {
	eocdOffset, err := findEOCD(data)
	if err != nil {
		return nil, err
	}
	eocd := data[eocdOffset:]

	thisDisk := binary.LittleEndian.Uint16(eocd[4:])
	centralDisk := binary.LittleEndian.Uint16(eocd[6:])
	// recordsThisDisk := binary.LittleEndian.Uint16(eocd[8:])
	recordsTotal := int(binary.LittleEndian.Uint16(eocd[10:]))
	centralSize := int64(binary.LittleEndian.Uint32(eocd[12:]))
	centralOffset := int64(binary.LittleEndian.Uint32(eocd[16:]))

	// The maximum values are only markers if a ZIP64 locator precedes the record.
	// Otherwise 65535 entries is an ordinary count.
	marked := recordsTotal == 0xffff || centralSize == 0xffffffff || centralOffset == 0xffffffff
	if marked && eocdOffset >= zip64LocatorLen && string(data[eocdOffset-zip64LocatorLen:][:4]) == "PK\x06\x07" {
		return nil, ErrNoZip64
	}
	if thisDisk != 0 || centralDisk != 0 {
		return nil, ErrNoSpanned
	}

	// Fix zip files that are carelessly appended to non-zip data,
	// the creating program unaware of the leading data.
	base := max(0, int64(eocdOffset)-centralSize-centralOffset)
	if base+centralOffset > int64(eocdOffset) {
		return nil, fmt.Errorf("%w: central directory after its end record", ErrFormat)
	}

	a := &Archive{data: data, base: base, File: make([]File, 0, recordsTotal)}
	dir := data[base+centralOffset:]
	for range recordsTotal {
		if len(dir) < dirHeaderLen {
			return nil, ErrTruncated
		}
		if string(dir[:4]) != "PK\x01\x02" {
			return nil, fmt.Errorf("%w: bad central directory record", ErrFormat)
		}
		flags := binary.LittleEndian.Uint16(dir[8:])
		method := binary.LittleEndian.Uint16(dir[10:])
		dostime := binary.LittleEndian.Uint16(dir[12:])
		dosdate := binary.LittleEndian.Uint16(dir[14:])
		// crc32 := binary.LittleEndian.Uint32(dir[16:])
		packed := binary.LittleEndian.Uint32(dir[20:])
		unpacked := binary.LittleEndian.Uint32(dir[24:])
		namelen := int(binary.LittleEndian.Uint16(dir[28:]))
		extralen := int(binary.LittleEndian.Uint16(dir[30:]))
		commentlen := int(binary.LittleEndian.Uint16(dir[32:]))
		loc := binary.LittleEndian.Uint32(dir[42:])
		if len(dir) < dirHeaderLen+namelen+extralen+commentlen {
			return nil, ErrTruncated
		}
		dir = dir[dirHeaderLen:]
		name := decodeName(dir[:namelen])
		dir = dir[namelen:]
		extra := dir[:extralen]
		dir = dir[extralen+commentlen:]

		a.File = append(a.File, File{
			Name:             name,
			Method:           method,
			Flags:            flags,
			CompressedSize:   packed,
			UncompressedSize: unpacked,
			HeaderOffset:     loc,
			Modified:         modTime(dosdate, dostime, extra),
		})
	}
	return a, nil
}

// Lookup returns the last entry with this name, or nil.
func (a *Archive) Lookup(name string) *File {
	for i := len(a.File) - 1; i >= 0; i-- {
		if a.File[i].Name == name {
			return &a.File[i]
		}
	}
	return nil
}

// Stat reads the local header of f, which is the source of the entry's name.
func (a *Archive) Stat(f *File) (Stat, error) {
	name, _, err := a.localHeader(f)
	if err != nil {
		return Stat{}, err
	}
	return Stat{Name: name, Size: f.UncompressedSize, CompressedSize: f.CompressedSize}, nil
}

// ReadFile extracts f into a new slice.
func (a *Archive) ReadFile(f *File) ([]byte, error) {
	_, content, err := a.extract(f)
	return content, err
}

// RawData returns the stored bytes of f without decompressing them.
// The slice shares memory with the archive and must not be modified.
func (a *Archive) RawData(f *File) ([]byte, error) {
	_, packed, err := a.payload(f)
	return packed, err
}

func (a *Archive) payload(f *File) (string, []byte, error) {
	name, offset, err := a.localHeader(f)
	if err != nil {
		return "", nil, err
	}
	if f.Flags&1 != 0 {
		return "", nil, ErrEncrypted
	}
	if int64(f.CompressedSize) > int64(len(a.data))-offset {
		return "", nil, ErrTruncated
	}
	return name, a.data[offset:][:f.CompressedSize], nil
}

func (a *Archive) extract(f *File) (string, []byte, error) {
	name, packed, err := a.payload(f)
	if err != nil {
		return "", nil, err
	}

	switch f.Method {
	case Store:
		return name, slices.Clone(packed), nil
	case Deflate:
		size, err := outputSize(f.UncompressedSize, math.MaxInt)
		if err != nil {
			return "", nil, err
		}
		content, err := flate.Inflate(packed, size)
		if err != nil {
			return "", nil, inflateError(err)
		}
		return name, content, nil
	default:
		return "", nil, &UnsupportedMethodError{Method: f.Method}
	}
}

// outputSize converts a declared size to an int no bigger than maxInt,
// so that it is never mistaken for an unknown (negative) size.
func outputSize(size uint32, maxInt uint64) (int, error) {
	if uint64(size) > maxInt {
		return 0, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	return int(size), nil
}

// inflateError makes a decoding failure match this package's sentinels as well as flate's.
func inflateError(err error) error {
	switch {
	case errors.Is(err, flate.ErrTruncated):
		return fmt.Errorf("%w: %w", ErrTruncated, err)
	case errors.Is(err, flate.ErrCorrupt):
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return err
}

// localHeader returns the name in the local header and the offset of the data after it.
func (a *Archive) localHeader(f *File) (string, int64, error) {
	offset := a.base + int64(f.HeaderOffset)
	if offset+fileHeaderLen > int64(len(a.data)) {
		return "", 0, ErrTruncated
	}
	h := a.data[offset:]
	if string(h[:4]) != "PK\x03\x04" {
		return "", 0, fmt.Errorf("%w: corrupt/absent local file header", ErrFormat)
	}
	// the local method, crc and sizes at 8..26 are ignored in favour of the central directory
	namelen := int64(binary.LittleEndian.Uint16(h[26:]))
	extralen := int64(binary.LittleEndian.Uint16(h[28:]))
	end := offset + fileHeaderLen + namelen + extralen
	if end > int64(len(a.data)) {
		return "", 0, ErrTruncated
	}
	return decodeName(h[fileHeaderLen:][:namelen]), end, nil
}

// decodeName reads a header name as UTF-8 if it is valid,
// and otherwise as one character per byte.
func decodeName(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var s strings.Builder
	for _, c := range b {
		s.WriteRune(rune(c))
	}
	return s.String()
}

// findEOCD returns the offset of the End of Central Directory record.
//
// The record is 22 bytes followed by a comment of at most 64 KiB,
// so the search never looks further back than that.
func findEOCD(data []byte) (int, error) {
	if len(data) < eocdLen {
		return 0, ErrFormat
	}
	lowest := max(0, len(data)-eocdLen-maxCommentLen)
	for i := len(data) - eocdLen; i >= lowest; i-- {
		if data[i] != 'P' || string(data[i:i+4]) != "PK\x05\x06" {
			continue
		}
		cmtSize := int(binary.LittleEndian.Uint16(data[i+20:]))
		if i+eocdLen+cmtSize <= len(data) {
			return i, nil
		}
	}
	return 0, ErrFormat
}
