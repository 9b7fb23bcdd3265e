// Package persistence implements the on-disk snapshot collaborator: the
// binary layout for saving and restoring a keyspace's full contents,
// atomically, at startup and shutdown.
package persistence

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/eternalApril/distkv/internal/keyspace"
	"github.com/eternalApril/distkv/internal/value"
)

// Snapshot saves and loads keyspace.Entry slices to and from a file
// using the fixed little-endian binary layout:
//
//	[u64 count][entry x count]
//	entry := [u64 key_len][key][u8 variant_tag][i64 expires_at][payload]
//	payload(string) := [u64 len][bytes]
//	payload(list)   := [u64 n][(u64 len, bytes) x n]
//	payload(set)    := [u64 n][(u64 len, bytes) x n]
//
// expires_at is Unix seconds; 0 means no expiry.
type Snapshot struct {
	filename string
	logger   *zap.Logger
}

// NewSnapshot builds a Snapshot collaborator writing to/reading from filename.
func NewSnapshot(filename string, logger *zap.Logger) *Snapshot {
	return &Snapshot{filename: filename, logger: logger}
}

// Save writes entries to a temp file and atomically renames it into
// place, so a crash mid-write never corrupts the previous snapshot.
func (s *Snapshot) Save(entries []keyspace.Entry) error {
	start := time.Now()
	tmpFile := s.filename + ".tmp"

	f, err := os.Create(tmpFile)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	w := bufio.NewWriterSize(f, 1<<20)
	if err := writeEntries(w, entries); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpFile, s.filename); err != nil {
		return err
	}

	s.logger.Info("snapshot saved",
		zap.String("file", s.filename),
		zap.Int("entries", len(entries)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Load reads entries back from the snapshot file. A missing file is not
// an error: it reports a nil slice, matching an empty keyspace.
func (s *Snapshot) Load() ([]keyspace.Entry, error) {
	f, err := os.Open(s.filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	start := time.Now()
	entries, err := readEntries(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}

	s.logger.Info("snapshot loaded",
		zap.String("file", s.filename),
		zap.Int("entries", len(entries)),
		zap.Duration("duration", time.Since(start)),
	)
	return entries, nil
}

func writeEntries(w io.Writer, entries []keyspace.Entry) error {
	if err := writeUint64(w, uint64(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeEntry(w, e); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(w io.Writer, e keyspace.Entry) error {
	if err := writeBytes(w, []byte(e.Key)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, byte(e.Kind)); err != nil {
		return err
	}

	var expiresAt int64
	if !e.ExpiresAt.IsZero() {
		expiresAt = e.ExpiresAt.Unix()
	}
	if err := binary.Write(w, binary.LittleEndian, expiresAt); err != nil {
		return err
	}

	switch e.Kind {
	case value.KindString:
		return writeBytes(w, e.Str)
	case value.KindList:
		if err := writeUint64(w, uint64(len(e.List))); err != nil {
			return err
		}
		for _, item := range e.List {
			if err := writeBytes(w, item); err != nil {
				return err
			}
		}
	case value.KindSet:
		if err := writeUint64(w, uint64(len(e.Set))); err != nil {
			return err
		}
		for _, m := range e.Set {
			if err := writeBytes(w, []byte(m)); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := writeUint64(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func writeUint64(w io.Writer, n uint64) error {
	return binary.Write(w, binary.LittleEndian, n)
}

func readEntries(r io.Reader) ([]keyspace.Entry, error) {
	count, err := readUint64(r)
	if err != nil {
		return nil, err
	}

	entries := make([]keyspace.Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		e, err := readEntry(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func readEntry(r io.Reader) (keyspace.Entry, error) {
	var e keyspace.Entry

	key, err := readBytes(r)
	if err != nil {
		return e, err
	}
	e.Key = string(key)

	var tag byte
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return e, err
	}
	e.Kind = value.Kind(tag)

	var expiresAt int64
	if err := binary.Read(r, binary.LittleEndian, &expiresAt); err != nil {
		return e, err
	}
	if expiresAt != 0 {
		e.ExpiresAt = time.Unix(expiresAt, 0)
	}

	switch e.Kind {
	case value.KindString:
		e.Str, err = readBytes(r)
		if err != nil {
			return e, err
		}
	case value.KindList:
		n, err := readUint64(r)
		if err != nil {
			return e, err
		}
		e.List = make([][]byte, 0, n)
		for i := uint64(0); i < n; i++ {
			item, err := readBytes(r)
			if err != nil {
				return e, err
			}
			e.List = append(e.List, item)
		}
	case value.KindSet:
		n, err := readUint64(r)
		if err != nil {
			return e, err
		}
		e.Set = make([]string, 0, n)
		for i := uint64(0); i < n; i++ {
			m, err := readBytes(r)
			if err != nil {
				return e, err
			}
			e.Set = append(e.Set, string(m))
		}
	}
	return e, nil
}

func readBytes(r io.Reader) ([]byte, error) {
	n, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readUint64(r io.Reader) (uint64, error) {
	var n uint64
	err := binary.Read(r, binary.LittleEndian, &n)
	return n, err
}
