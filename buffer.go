// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"errors"
	"math/big"
)

// maxStringLength is the sane upper bound placed on any length-prefixed
// string, name-list, or byte blob read off the wire. RFC 4253 doesn't
// mandate a value; this guards against a peer claiming a multi-gigabyte
// field and exhausting memory before we ever see the MAC fail.
const maxStringLength = 256 * 1024

// ErrBufferUnderflow is returned when a read would advance past the
// buffer's write cursor.
var ErrBufferUnderflow = errors.New("ssh: buffer underflow")

// ErrStringTooLong is returned when a length-prefixed field's declared
// length exceeds maxStringLength.
var ErrStringTooLong = errors.New("ssh: string/name-list exceeds maximum length")

// buffer is a mutable, auto-growing byte region with independent read
// and write cursors, plus SSH wire-type accessors. It underlies both
// packet payload construction (encode side) and payload parsing
// (decode side).
type buffer struct {
	data []byte
	rpos int
	wpos int
}

// newBuffer returns an empty buffer.
func newBuffer() *buffer {
	return &buffer{}
}

// newBufferFromBytes wraps an existing byte slice for reading; wpos is
// set to len(b) and rpos to 0.
func newBufferFromBytes(b []byte) *buffer {
	return &buffer{data: b, wpos: len(b)}
}

// newBufferWithType creates a buffer whose first byte is msgType; rpos
// is 0 and wpos is 1, matching the convention used to start building an
// outbound SSH message.
func newBufferWithType(msgType byte) *buffer {
	b := &buffer{data: make([]byte, 1, 64)}
	b.data[0] = msgType
	b.wpos = 1
	return b
}

// newBufferWithHeaderRoom reserves 5 leading bytes (uint32 packet
// length + byte padding length) so the encoder can fill them in place
// instead of reallocating and copying the payload forward.
func newBufferWithHeaderRoom() *buffer {
	return &buffer{data: make([]byte, 5, 64), wpos: 5, rpos: 5}
}

func (b *buffer) grow(n int) {
	if len(b.data)-b.wpos >= n {
		return
	}
	nd := make([]byte, b.wpos+n, 2*(b.wpos+n))
	copy(nd, b.data[:b.wpos])
	b.data = nd
}

// len returns the number of unread bytes remaining.
func (b *buffer) len() int { return b.wpos - b.rpos }

// rpos/wpos accessors.
func (b *buffer) readPos() int  { return b.rpos }
func (b *buffer) writePos() int { return b.wpos }

func (b *buffer) setReadPos(p int)  { b.rpos = p }
func (b *buffer) setWritePos(p int) { b.wpos = p }

// getCompactData returns a fresh copy of the unread region [rpos, wpos).
func (b *buffer) getCompactData() []byte {
	out := make([]byte, b.len())
	copy(out, b.data[b.rpos:b.wpos])
	return out
}

// bytes returns the full backing slice up to wpos, without copying.
// Callers must not retain it past the buffer's next mutation.
func (b *buffer) bytes() []byte {
	return b.data[:b.wpos]
}

func (b *buffer) writeRaw(p []byte) {
	b.grow(len(p))
	copy(b.data[b.wpos:], p)
	b.wpos += len(p)
}

func (b *buffer) readRaw(n int) ([]byte, error) {
	if b.rpos+n > b.wpos {
		return nil, ErrBufferUnderflow
	}
	out := b.data[b.rpos : b.rpos+n]
	b.rpos += n
	return out, nil
}

func (b *buffer) writeU8(v uint8) {
	b.grow(1)
	b.data[b.wpos] = v
	b.wpos++
}

func (b *buffer) readU8() (uint8, error) {
	if b.rpos+1 > b.wpos {
		return 0, ErrBufferUnderflow
	}
	v := b.data[b.rpos]
	b.rpos++
	return v, nil
}

func (b *buffer) writeBool(v bool) {
	if v {
		b.writeU8(1)
	} else {
		b.writeU8(0)
	}
}

func (b *buffer) readBool() (bool, error) {
	v, err := b.readU8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (b *buffer) writeU32(v uint32) {
	b.grow(4)
	b.data[b.wpos] = byte(v >> 24)
	b.data[b.wpos+1] = byte(v >> 16)
	b.data[b.wpos+2] = byte(v >> 8)
	b.data[b.wpos+3] = byte(v)
	b.wpos += 4
}

func (b *buffer) readU32() (uint32, error) {
	if b.rpos+4 > b.wpos {
		return 0, ErrBufferUnderflow
	}
	v := uint32(b.data[b.rpos])<<24 | uint32(b.data[b.rpos+1])<<16 |
		uint32(b.data[b.rpos+2])<<8 | uint32(b.data[b.rpos+3])
	b.rpos += 4
	return v, nil
}

func (b *buffer) writeString(s []byte) {
	b.writeU32(uint32(len(s)))
	b.writeRaw(s)
}

func (b *buffer) readString() ([]byte, error) {
	n, err := b.readU32()
	if err != nil {
		return nil, err
	}
	if n > maxStringLength {
		return nil, ErrStringTooLong
	}
	return b.readRaw(int(n))
}

// writeNameList writes a comma-joined, length-prefixed list of names in
// the order given — order is preference order, per RFC 4253 §6.6.
func (b *buffer) writeNameList(names []string) {
	b.writeString([]byte(joinNames(names)))
}

func (b *buffer) readNameList() ([]string, error) {
	raw, err := b.readString()
	if err != nil {
		return nil, err
	}
	return splitNames(string(raw)), nil
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ","
		}
		out += n
	}
	return out
}

func splitNames(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// writeMpint writes v as an SSH mpint: big-endian two's complement with
// a 32-bit length prefix, sign-extended with a leading zero byte when
// the high bit of the most significant byte is set. Zero encodes as a
// zero-length string.
func (b *buffer) writeMpint(v *big.Int) {
	if v.Sign() == 0 {
		b.writeU32(0)
		return
	}
	bs := v.Bytes()
	if v.Sign() < 0 {
		panic("ssh: negative mpint not supported")
	}
	if bs[0]&0x80 != 0 {
		b.writeU32(uint32(len(bs) + 1))
		b.writeU8(0)
		b.writeRaw(bs)
		return
	}
	b.writeU32(uint32(len(bs)))
	b.writeRaw(bs)
}

func (b *buffer) readMpint() (*big.Int, error) {
	raw, err := b.readString()
	if err != nil {
		return nil, err
	}
	v := new(big.Int)
	if len(raw) == 0 {
		return v, nil
	}
	v.SetBytes(raw)
	return v, nil
}
