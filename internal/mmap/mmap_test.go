// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmap // import "github.com/go-moku/moku/internal/mmap"

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestHandle(t *testing.T) {
	t.Run("nil-handle", func(t *testing.T) {
		var h *Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		err = h.Close()
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid close error: %+v", err)
		}
	})
	t.Run("nil-data", func(t *testing.T) {
		var h Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		err = h.Close()
		if err != nil {
			t.Fatalf("error closing nil-data handle: %+v", err)
		}
	})
}

func TestHandleFrom(t *testing.T) {
	h := HandleFrom([]byte{0, 1, 2, 3})

	if got, want := h.Len(), 4; got != want {
		t.Fatalf("invalid len: got=%d, want=%d", got, want)
	}

	if got, want := h.At(1), byte(1); got != want {
		t.Fatalf("invalid value: got=%d, want=%d", got, want)
	}

	if got, want := h.Bytes(), []byte{0, 1, 2, 3}; !bytes.Equal(got, want) {
		t.Fatalf("invalid bytes: got=%v, want=%v", got, want)
	}

	_, err := h.ReadAt(nil, -1)
	if got, want := err.Error(), "mmap: invalid ReadAt offset -1"; got != want {
		t.Fatalf("invalid error: %+v", err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "data.li")
	want := []byte("LI1\x00\x01\x02\x03")
	if err := os.WriteFile(fname, want, 0644); err != nil {
		t.Fatalf("could not create data file: %+v", err)
	}

	h, err := Open(fname)
	if err != nil {
		t.Fatalf("could not mmap data file: %+v", err)
	}
	defer h.Close()

	if got := h.Len(); got != len(want) {
		t.Fatalf("invalid len: got=%d, want=%d", got, len(want))
	}

	buf := make([]byte, 3)
	n, err := h.ReadAt(buf, 0)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if n != 3 || string(buf) != "LI1" {
		t.Fatalf("invalid read: got=%q (n=%d), want=%q", buf, n, "LI1")
	}

	_, err = h.ReadAt(buf, int64(len(want)-1))
	if err != io.EOF {
		t.Fatalf("invalid short-read error: %+v", err)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("could not close handle: %+v", err)
	}

	if _, err := Open(filepath.Join(dir, "missing.li")); err == nil {
		t.Fatalf("expected an error, got none")
	}
}

func TestOpenEmpty(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "empty.li")
	if err := os.WriteFile(fname, nil, 0644); err != nil {
		t.Fatalf("could not create empty file: %+v", err)
	}

	h, err := Open(fname)
	if err != nil {
		t.Fatalf("could not mmap empty file: %+v", err)
	}
	if got, want := h.Len(), 0; got != want {
		t.Fatalf("invalid len: got=%d, want=%d", got, want)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("could not close handle: %+v", err)
	}
}
