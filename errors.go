// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package rhs

import (
	"fmt"
	"strings"
)

// Kind classifies a FormatError.
type Kind int

const (
	KindIO Kind = iota
	KindBadMagic
	KindUnsupportedVersion
	KindInvalidNotchSetting
	KindTruncated
	KindCorruptHeader
	KindCorruptBlock
	KindIncompatibleSession
	KindEmptySession
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "i/o failure"
	case KindBadMagic:
		return "bad magic number"
	case KindUnsupportedVersion:
		return "unsupported version"
	case KindInvalidNotchSetting:
		return "invalid notch filter setting"
	case KindTruncated:
		return "truncated"
	case KindCorruptHeader:
		return "corrupt header"
	case KindCorruptBlock:
		return "corrupt data block"
	case KindIncompatibleSession:
		return "incompatible session"
	case KindEmptySession:
		return "empty session"
	case KindInvalidInput:
		return "invalid input"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FormatError describes a failure to decode an RHS file or session.
type FormatError struct {
	Kind   Kind
	Offset int64  // Byte offset of the failure, -1 if not applicable
	File   string // Source file, if known
	Field  string // Header field or session key field, if known
	Err    error  // Underlying cause, if any
}

// Sentinel errors, matched by kind with errors.Is.
var (
	ErrIO                  = &FormatError{Kind: KindIO, Offset: -1}
	ErrBadMagic            = &FormatError{Kind: KindBadMagic, Offset: -1}
	ErrUnsupportedVersion  = &FormatError{Kind: KindUnsupportedVersion, Offset: -1}
	ErrInvalidNotchSetting = &FormatError{Kind: KindInvalidNotchSetting, Offset: -1}
	ErrTruncated           = &FormatError{Kind: KindTruncated, Offset: -1}
	ErrCorruptHeader       = &FormatError{Kind: KindCorruptHeader, Offset: -1}
	ErrCorruptBlock        = &FormatError{Kind: KindCorruptBlock, Offset: -1}
	ErrIncompatibleSession = &FormatError{Kind: KindIncompatibleSession, Offset: -1}
	ErrEmptySession        = &FormatError{Kind: KindEmptySession, Offset: -1}
	ErrInvalidInput        = &FormatError{Kind: KindInvalidInput, Offset: -1}
)

func (e *FormatError) Error() string {
	var sb strings.Builder
	sb.WriteString("rhs: ")
	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.String())
	if e.Field != "" {
		fmt.Fprintf(&sb, " (%s)", e.Field)
	}
	if e.Offset >= 0 {
		fmt.Fprintf(&sb, " at offset %d", e.Offset)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a FormatError of the same kind.
func (e *FormatError) Is(target error) bool {
	t, ok := target.(*FormatError)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, offset int64, field string, format string, args ...any) *FormatError {
	e := &FormatError{Kind: kind, Offset: offset, Field: field}
	if format != "" {
		e.Err = fmt.Errorf(format, args...)
	}
	return e
}

// withFile attaches a source path to err, wrapping foreign errors as KindIO.
func withFile(err error, path string) error {
	if err == nil {
		return nil
	}
	if fe, ok := err.(*FormatError); ok {
		if fe.File != "" {
			return fe
		}
		cp := *fe
		cp.File = path
		return &cp
	}
	return &FormatError{Kind: KindIO, Offset: -1, File: path, Err: err}
}
