package frame

import "fmt"

// MultipartError reports a violation of the multipart-splitting contract
// (spec §4.2): either a reserved key was passed in the split-keys list, or a
// single value is too large to ever fit in one frame.
type MultipartError struct{ Reason string }

func (e *MultipartError) Error() string { return "frame: multipart: " + e.Reason }

const (
	keyMultipart    = "multipart"
	keyTransferSize = "transfer-size"
)

// Plan computes the chunking of kval's multipart keys across as few frames
// as possible, deriving every size decision from Codec.OverheadLen /
// Codec.LenKV so the result is provably within MAXFRAME by construction
// (spec §9's design note about the source's off-by-one chunk-sizing math).
//
// firstExtra holds keys to add to the caller's first frame (the "multipart"
// and "transfer-size" announcements, when useSize is set). chunks holds one
// kval map per subsequent frame to send for the split keys. The caller is
// responsible for emitting the first frame (its own payload plus firstExtra),
// each chunk as its own frame, and a final sentinel frame with
// {"multipart": ["*"]} to mark end-of-stream.
func Plan(codec Codec, command string, keys []string, kval map[string][]string, useSize bool) (firstExtra map[string][]string, firstKval map[string][]string, chunks []map[string][]string, err error) {
	for _, k := range keys {
		if k == keyMultipart || k == keyTransferSize {
			return nil, nil, nil, &MultipartError{Reason: "reserved key in multipart key list"}
		}
	}

	keySet := map[string]bool{}
	for _, k := range keys {
		keySet[k] = true
	}
	if len(keys) == 0 {
		for k := range kval {
			keySet[k] = true
			keys = append(keys, k)
		}
	}

	firstKval = map[string][]string{}
	type pair struct {
		key, value string
	}
	var pairs []pair
	transferSize := 0
	for k, vs := range kval {
		if keySet[k] {
			for _, v := range vs {
				pairs = append(pairs, pair{k, v})
				transferSize += len(v)
			}
			continue
		}
		firstKval[k] = append([]string(nil), vs...)
	}

	firstExtra = map[string][]string{}
	if useSize {
		firstExtra[keyMultipart] = append([]string(nil), keys...)
		firstExtra[keyTransferSize] = []string{fmt.Sprintf("%d", transferSize)}
	}

	// Budget: how much room is left in a frame once source/target/command
	// overhead (with MAXTARGET stand-ins) is accounted for.
	fit := codec.OverheadLen(command, map[string][]string{})
	if fit >= MAXFRAME {
		return nil, nil, nil, &MultipartError{Reason: "command leaves no room for any payload"}
	}

	// Verify every individual pair can fit alone; otherwise no packing can
	// ever succeed for it.
	for _, p := range pairs {
		pairKval := map[string][]string{p.key: {p.value}}
		if fit+codec.LenKV(pairKval) >= MAXFRAME {
			return nil, nil, nil, &MultipartError{Reason: "a single multipart value cannot fit in one frame"}
		}
	}

	cur := map[string][]string{}
	curLen := 0
	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, cur)
			cur = map[string][]string{}
			curLen = 0
		}
	}
	for _, p := range pairs {
		pairLen := codec.LenKV(map[string][]string{p.key: {p.value}})
		if fit+curLen+pairLen >= MAXFRAME {
			flush()
		}
		cur[p.key] = append(cur[p.key], p.value)
		curLen += pairLen
	}
	flush()

	return firstExtra, firstKval, chunks, nil
}
