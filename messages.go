// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssh

import (
	"fmt"
	"math/big"
	"reflect"
)

// RFC-assigned message type numbers (spec.md §6).
const (
	msgDisconnect     = 1
	msgIgnore         = 2
	msgUnimplemented  = 3
	msgDebug          = 4
	msgServiceRequest = 5
	msgServiceAccept  = 6
	msgKexInit        = 20
	msgNewKeys        = 21
)

// Disconnect reason codes (RFC 4253 §11.1), referenced by spec.md §7.
const (
	DisconnectHostNotAllowedToConnect = 1
	DisconnectProtocolError           = 2
	DisconnectKeyExchangeFailed       = 3
	DisconnectReserved                = 4
	DisconnectMACError                = 5
	DisconnectCompressionError        = 6
	DisconnectServiceNotAvailable     = 7
	DisconnectProtocolVersionNotSup   = 8
	DisconnectHostKeyNotVerifiable    = 9
	DisconnectConnectionLost          = 10
	DisconnectByApplication           = 11
	DisconnectTooManyConnections      = 12
	DisconnectAuthCancelledByUser     = 13
	DisconnectNoMoreAuthMethods       = 14
	DisconnectIllegalUserName         = 15
)

// kexInitMsg is the wire layout of SSH_MSG_KEXINIT, RFC 4253 §7.1 /
// spec.md §4.4.3. Field order is the wire order; it is also the order
// of the 10-slot AlgorithmProposal in spec.md §3.
type kexInitMsg struct {
	Cookie                  [16]byte
	KexAlgos                []string
	ServerHostKeyAlgos      []string
	CiphersClientServer     []string
	CiphersServerClient     []string
	MACsClientServer        []string
	MACsServerClient        []string
	CompressionClientServer []string
	CompressionServerClient []string
	LanguagesClientServer   []string
	LanguagesServerClient   []string
	FirstKexFollows         bool
	Reserved                uint32
}

type disconnectMsg struct {
	Reason  uint32
	Message string
	Lang    string
}

type ignoreMsg struct {
	Data string
}

type debugMsg struct {
	AlwaysDisplay bool
	Message       string
	Lang          string
}

type unimplementedMsg struct {
	SeqNum uint32
}

type serviceRequestMsg struct {
	Service string
}

type serviceAcceptMsg struct {
	Service string
}

// marshal encodes msg's exported fields onto a fresh message buffer
// prefixed by msgType, in declaration order. Supported field kinds:
// [16]byte (raw), bool, uint32, string (length-prefixed), []string
// (name-list), *big.Int (mpint), []byte (length-prefixed raw string).
func marshal(msgType byte, msg interface{}) []byte {
	b := newBufferWithType(msgType)
	v := reflect.ValueOf(msg)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	for i := 0; i < v.NumField(); i++ {
		writeField(b, v.Field(i))
	}
	return b.bytes()
}

func writeField(b *buffer, f reflect.Value) {
	switch f.Kind() {
	case reflect.Array:
		if f.Type().Elem().Kind() == reflect.Uint8 {
			raw := make([]byte, f.Len())
			reflect.Copy(reflect.ValueOf(raw), f)
			b.writeRaw(raw)
			return
		}
	case reflect.Bool:
		b.writeBool(f.Bool())
		return
	case reflect.Uint32:
		b.writeU32(uint32(f.Uint()))
		return
	case reflect.String:
		b.writeString([]byte(f.String()))
		return
	case reflect.Slice:
		switch f.Type().Elem().Kind() {
		case reflect.String:
			names := make([]string, f.Len())
			for i := range names {
				names[i] = f.Index(i).String()
			}
			b.writeNameList(names)
			return
		case reflect.Uint8:
			b.writeString(f.Bytes())
			return
		}
	case reflect.Ptr:
		if bi, ok := f.Interface().(*big.Int); ok {
			b.writeMpint(bi)
			return
		}
	}
	panic(fmt.Sprintf("ssh: marshal: unsupported field kind %s", f.Kind()))
}

// unmarshalBody fills msg's exported fields, in declaration order, from
// the message body (payload with the leading message-type byte already
// stripped).
func unmarshalBody(body []byte, msg interface{}) error {
	b := newBufferFromBytes(body)
	v := reflect.ValueOf(msg).Elem()
	for i := 0; i < v.NumField(); i++ {
		if err := readField(b, v.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

func readField(b *buffer, f reflect.Value) error {
	switch f.Kind() {
	case reflect.Array:
		if f.Type().Elem().Kind() == reflect.Uint8 {
			raw, err := b.readRaw(f.Len())
			if err != nil {
				return err
			}
			reflect.Copy(f, reflect.ValueOf(raw))
			return nil
		}
	case reflect.Bool:
		v, err := b.readBool()
		if err != nil {
			return err
		}
		f.SetBool(v)
		return nil
	case reflect.Uint32:
		v, err := b.readU32()
		if err != nil {
			return err
		}
		f.SetUint(uint64(v))
		return nil
	case reflect.String:
		v, err := b.readString()
		if err != nil {
			return err
		}
		f.SetString(string(v))
		return nil
	case reflect.Slice:
		switch f.Type().Elem().Kind() {
		case reflect.String:
			names, err := b.readNameList()
			if err != nil {
				return err
			}
			f.Set(reflect.ValueOf(names))
			return nil
		case reflect.Uint8:
			v, err := b.readString()
			if err != nil {
				return err
			}
			f.SetBytes(v)
			return nil
		}
	case reflect.Ptr:
		if f.Type() == reflect.TypeOf((*big.Int)(nil)) {
			v, err := b.readMpint()
			if err != nil {
				return err
			}
			f.Set(reflect.ValueOf(v))
			return nil
		}
	}
	return fmt.Errorf("ssh: unmarshal: unsupported field kind %s", f.Kind())
}
