package frame

import (
	"bytes"
	"encoding/json"
	"strings"
)

// JSONCodec implements the JSON wire encoding (spec §4.1): a two-element JSON
// array `[{"source":...,"target":...,"command":...}, {key:[v,...],...}]`
// followed by a single NUL terminator.
type JSONCodec struct{}

var jsonTerminator = []byte{0}

func (JSONCodec) Terminator() []byte { return jsonTerminator }

// FrameLen scans for the single NUL terminator. Unlike BinaryCodec's
// payload, encoding/json never emits a raw NUL byte inside a string (it
// comes out as a "\u0000" escape sequence), so a plain scan for the
// terminator byte can't collide with frame content the way it can for
// BinaryCodec's NUL-delimited tokens.
func (JSONCodec) FrameLen(buf []byte) (int, bool, error) {
	idx := bytes.IndexByte(buf, 0)
	if idx < 0 {
		if len(buf) > MAXFRAME {
			return 0, false, &SizeError{Reason: "frame exceeds MAXFRAME before terminator"}
		}
		return 0, false, nil
	}
	return idx + 1, true, nil
}

type jsonHeader struct {
	Source  string `json:"source"`
	Target  string `json:"target"`
	Command string `json:"command"`
}

func (JSONCodec) Parse(data []byte) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, ErrIncomplete
	}
	if data[len(data)-1] != 0 {
		return Frame{}, ErrIncomplete
	}
	if len(data) > MAXFRAME {
		return Frame{}, &SizeError{Reason: "frame exceeds MAXFRAME"}
	}
	body := data[:len(data)-1]

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Frame{}, &InvalidError{Reason: "malformed JSON: " + err.Error()}
	}
	if len(raw) == 0 {
		return Frame{}, &InvalidError{Reason: "empty JSON frame"}
	}

	var hdr jsonHeader
	if err := json.Unmarshal(raw[0], &hdr); err != nil {
		return Frame{}, &InvalidError{Reason: "bad JSON frame header: " + err.Error()}
	}
	hdr.Command = strings.ToLower(hdr.Command)
	if err := validateCommand(hdr.Command); err != nil {
		return Frame{}, err
	}

	rawKval := map[string][]string{}
	if len(raw) > 1 {
		var loose map[string][]string
		if err := json.Unmarshal(raw[1], &loose); err != nil {
			return Frame{}, &InvalidError{Reason: "bad JSON frame key/values: " + err.Error()}
		}
		for k, vs := range loose {
			k = strings.ToLower(k)
			for _, v := range vs {
				for _, existing := range rawKval[k] {
					if existing == v {
						return Frame{}, ErrDuplicateValue
					}
				}
				rawKval[k] = append(rawKval[k], v)
			}
		}
	}

	return Frame{Source: hdr.Source, Target: hdr.Target, Command: hdr.Command, KVal: rawKval}, nil
}

func (JSONCodec) Serialize(f Frame) ([]byte, error) {
	if err := validateCommand(f.Command); err != nil {
		return nil, err
	}

	hdr := jsonHeader{Source: f.Source, Target: f.Target, Command: f.Command}
	kval := f.KVal
	if kval == nil {
		kval = map[string][]string{}
	}

	payload := []any{hdr, kval}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &InvalidError{Reason: "marshal: " + err.Error()}
	}

	if len(body)+1 > MAXFRAME {
		return nil, &SizeError{Reason: "serialized frame exceeds MAXFRAME"}
	}

	out := make([]byte, 0, len(body)+1)
	out = append(out, body...)
	out = append(out, 0)
	return out, nil
}

// OverheadLen predicts the wire size of a frame carrying command and kval,
// using MAXTARGET-sized stand-ins for source and target.
func (j JSONCodec) OverheadLen(command string, kval map[string][]string) int {
	stub := strings.Repeat("x", MAXTARGET)
	hdr := jsonHeader{Source: stub, Target: stub, Command: command}
	if kval == nil {
		kval = map[string][]string{}
	}
	body, err := json.Marshal([]any{hdr, kval})
	if err != nil {
		return MAXFRAME + 1
	}
	return len(body) + 1
}

// LenKV returns the serialized byte cost of a kval map alone.
func (JSONCodec) LenKV(kval map[string][]string) int {
	if len(kval) == 0 {
		return 2 // "{}"
	}
	body, err := json.Marshal(kval)
	if err != nil {
		return MAXFRAME + 1
	}
	return len(body)
}
