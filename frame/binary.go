package frame

import (
	"encoding/binary"
	"strings"

	"github.com/valyala/bytebufferpool"
)

// BinaryCodec implements the binary wire encoding (spec §4.1):
//
//	[2-byte BE length][1 NUL separator][source\0target\0command\0k1\0v1\0...\0\0]
//
// The length prefix counts the *entire* on-wire frame, including the
// trailing double-NUL terminator — this is what "covers the prefix, the
// delimiter, and the payload" means in practice, and it's what makes the
// declared-length-vs-actual-length check in Parse meaningful.
type BinaryCodec struct{}

var binaryTerminator = []byte{0, 0}

func (BinaryCodec) Terminator() []byte { return binaryTerminator }

// FrameLen trusts the 2-byte length prefix rather than scanning for a bare
// {0,0} terminator: a kv value can be empty (Add("gecos", "")), which writes
// its own NUL immediately before the next token's leading NUL or the real
// terminator, so free-scanning for two consecutive NULs finds that false
// positive one byte early and truncates the frame.
func (BinaryCodec) FrameLen(buf []byte) (int, bool, error) {
	if len(buf) < 2 {
		return 0, false, nil
	}
	total := int(binary.BigEndian.Uint16(buf[:2]))
	if total > MAXFRAME {
		return 0, false, &SizeError{Reason: "declared length exceeds MAXFRAME"}
	}
	if len(buf) < total {
		return 0, false, nil
	}
	return total, true, nil
}

func (BinaryCodec) Parse(data []byte) (Frame, error) {
	if len(data) < 6 {
		return Frame{}, ErrIncomplete
	}

	llen := binary.BigEndian.Uint16(data[:2])
	if int(llen) > MAXFRAME {
		return Frame{}, &SizeError{Reason: "declared length exceeds MAXFRAME"}
	}
	if int(llen) != len(data) {
		return Frame{}, &SizeError{Reason: "declared length does not match actual frame size"}
	}

	if data[2] != 0 {
		return Frame{}, &InvalidError{Reason: "missing separator byte"}
	}
	rest := data[3:]

	if len(rest) < 2 || rest[len(rest)-2] != 0 || rest[len(rest)-1] != 0 {
		return Frame{}, &InvalidError{Reason: "missing double-NUL terminator"}
	}
	payload := rest[:len(rest)-2]

	var tokens []string
	if len(payload) > 0 {
		tokens = strings.Split(string(payload), "\x00")
	}
	if len(tokens) < 3 {
		return Frame{}, &InvalidError{Reason: "invalid opening header"}
	}

	source, target, command := tokens[0], tokens[1], strings.ToLower(tokens[2])
	if err := validateCommand(command); err != nil {
		return Frame{}, err
	}

	kv := tokens[3:]
	if len(kv)%2 != 0 {
		kv = append(kv, "*")
	}

	kval := map[string][]string{}
	for i := 0; i < len(kv); i += 2 {
		k, v := strings.ToLower(kv[i]), kv[i+1]
		for _, existing := range kval[k] {
			if existing == v {
				return Frame{}, ErrDuplicateValue
			}
		}
		kval[k] = append(kval[k], v)
	}

	return Frame{Source: source, Target: target, Command: command, KVal: kval}, nil
}

func (BinaryCodec) Serialize(f Frame) ([]byte, error) {
	if err := validateCommand(f.Command); err != nil {
		return nil, err
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteString(f.Source)
	buf.WriteByte(0)
	buf.WriteString(f.Target)
	buf.WriteByte(0)
	buf.WriteString(f.Command)
	for k, vs := range f.KVal {
		for _, v := range vs {
			buf.WriteByte(0)
			buf.WriteString(k)
			buf.WriteByte(0)
			buf.WriteString(v)
		}
	}
	buf.WriteByte(0)
	buf.WriteByte(0)

	total := 2 + 1 + buf.Len()
	if total > MAXFRAME {
		return nil, &SizeError{Reason: "serialized frame exceeds MAXFRAME"}
	}

	out := make([]byte, 0, total)
	var lenBytes [2]byte
	binary.BigEndian.PutUint16(lenBytes[:], uint16(total))
	out = append(out, lenBytes[:]...)
	out = append(out, 0)
	out = append(out, buf.Bytes()...)
	return out, nil
}

// OverheadLen predicts the wire size of a frame carrying command and kval,
// using MAXTARGET-sized stand-ins for source and target. Used by multipart
// chunk sizing to prove a split fits before serializing it.
func (b BinaryCodec) OverheadLen(command string, kval map[string][]string) int {
	stub := strings.Repeat("x", MAXTARGET)
	// 2 (len prefix) + 1 (sep) + source + NUL + target + NUL + command + kv + 2 (terminator)
	return 2 + 1 + len(stub) + 1 + len(stub) + 1 + len(command) + b.LenKV(kval) + 2
}

// LenKV returns the serialized byte cost of a kval map's tokens alone,
// including the NUL separators that precede each key and value.
func (BinaryCodec) LenKV(kval map[string][]string) int {
	n := 0
	for k, vs := range kval {
		for _, v := range vs {
			n += 1 + len(k) + 1 + len(v)
		}
	}
	return n
}
