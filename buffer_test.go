// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"bytes"
	"math/big"
	"testing"
)

func TestBufferU8RoundTrip(t *testing.T) {
	b := newBuffer()
	b.writeU8(0x42)
	got, err := b.readU8()
	if err != nil {
		t.Fatalf("readU8: %v", err)
	}
	if got != 0x42 {
		t.Fatalf("readU8 = %#x, want 0x42", got)
	}
}

func TestBufferU32RoundTrip(t *testing.T) {
	b := newBuffer()
	b.writeU32(0xdeadbeef)
	got, err := b.readU32()
	if err != nil {
		t.Fatalf("readU32: %v", err)
	}
	if got != 0xdeadbeef {
		t.Fatalf("readU32 = %#x, want 0xdeadbeef", got)
	}
}

func TestBufferBoolRoundTrip(t *testing.T) {
	for _, v := range []bool{true, false} {
		b := newBuffer()
		b.writeBool(v)
		got, err := b.readBool()
		if err != nil {
			t.Fatalf("readBool: %v", err)
		}
		if got != v {
			t.Fatalf("readBool = %v, want %v", got, v)
		}
	}
}

func TestBufferStringRoundTrip(t *testing.T) {
	b := newBuffer()
	want := []byte("hello, ssh")
	b.writeString(want)
	got, err := b.readString()
	if err != nil {
		t.Fatalf("readString: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("readString = %q, want %q", got, want)
	}
}

func TestBufferStringTooLong(t *testing.T) {
	b := newBuffer()
	b.writeU32(maxStringLength + 1)
	if _, err := b.readString(); err != ErrStringTooLong {
		t.Fatalf("readString err = %v, want ErrStringTooLong", err)
	}
}

func TestBufferUnderflow(t *testing.T) {
	b := newBuffer()
	if _, err := b.readU32(); err != ErrBufferUnderflow {
		t.Fatalf("readU32 on empty buffer err = %v, want ErrBufferUnderflow", err)
	}
	if _, err := b.readRaw(1); err != ErrBufferUnderflow {
		t.Fatalf("readRaw on empty buffer err = %v, want ErrBufferUnderflow", err)
	}
}

func TestBufferNameListRoundTrip(t *testing.T) {
	b := newBuffer()
	want := []string{"curve25519-sha256", "diffie-hellman-group14-sha1"}
	b.writeNameList(want)
	got, err := b.readNameList()
	if err != nil {
		t.Fatalf("readNameList: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("readNameList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("readNameList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBufferNameListEmpty(t *testing.T) {
	b := newBuffer()
	b.writeNameList(nil)
	got, err := b.readNameList()
	if err != nil {
		t.Fatalf("readNameList: %v", err)
	}
	if got != nil {
		t.Fatalf("readNameList on empty list = %v, want nil", got)
	}
}

func TestBufferMpintRoundTrip(t *testing.T) {
	cases := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(127),
		big.NewInt(128),  // high bit set in single byte form: needs leading zero
		big.NewInt(255),
		new(big.Int).Lsh(big.NewInt(1), 256), // larger than any single machine word
	}
	for _, v := range cases {
		b := newBuffer()
		b.writeMpint(v)
		got, err := b.readMpint()
		if err != nil {
			t.Fatalf("readMpint(%v): %v", v, err)
		}
		if got.Cmp(v) != 0 {
			t.Fatalf("readMpint(%v) = %v", v, got)
		}
	}
}

func TestBufferMpintHighBitPadding(t *testing.T) {
	// 0x80 alone would look negative in two's complement; the encoder
	// must prepend a zero byte so the mpint round-trips as positive.
	v := big.NewInt(0x80)
	b := newBuffer()
	b.writeMpint(v)
	wire := b.bytes()
	// u32 length prefix (4 bytes) + leading zero byte + 0x80.
	if len(wire) != 4+2 {
		t.Fatalf("mpint(0x80) wire length = %d, want 6", len(wire))
	}
	if wire[4] != 0x00 || wire[5] != 0x80 {
		t.Fatalf("mpint(0x80) wire bytes = %v, want [0 128]", wire[4:])
	}
}

func TestBufferWithTypeAndHeaderRoom(t *testing.T) {
	b := newBufferWithType(msgKexInit)
	if b.bytes()[0] != msgKexInit {
		t.Fatalf("newBufferWithType did not set the leading type byte")
	}
	if b.writePos() != 1 {
		t.Fatalf("newBufferWithType wpos = %d, want 1", b.writePos())
	}

	hb := newBufferWithHeaderRoom()
	if hb.writePos() != 5 || hb.readPos() != 5 {
		t.Fatalf("newBufferWithHeaderRoom rpos/wpos = %d/%d, want 5/5", hb.readPos(), hb.writePos())
	}
}

func TestBufferCompactDataAndCursors(t *testing.T) {
	b := newBuffer()
	b.writeString([]byte("abc"))
	b.writeU8(0xff)
	if got, want := b.len(), 8; got != want {
		t.Fatalf("len() = %d, want %d", got, want)
	}
	if _, err := b.readString(); err != nil {
		t.Fatalf("readString: %v", err)
	}
	if got, want := b.len(), 1; got != want {
		t.Fatalf("len() after readString = %d, want %d", got, want)
	}
	compact := b.getCompactData()
	if !bytes.Equal(compact, []byte{0xff}) {
		t.Fatalf("getCompactData = %v, want [255]", compact)
	}
	b.setReadPos(b.readPos() - 1)
	if b.len() != 2 {
		t.Fatalf("setReadPos did not rewind rpos")
	}
	b.setWritePos(b.writePos())
}
