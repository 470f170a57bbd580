package discovery

import (
	"fmt"
	"sort"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates the TXT records for an upstream.
func EncodeTXT(info *UpstreamInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeySubprotocol: info.Subprotocol,
	}
	if info.Path != "" {
		txt[TXTKeyPath] = info.Path
	}
	if info.TLS {
		txt[TXTKeyTLS] = "1"
	}
	if info.ID != "" {
		txt[TXTKeyID] = info.ID
	}
	return txt
}

// DecodeTXT parses upstream TXT records. Only the subprotocol is required.
func DecodeTXT(txt TXTRecordMap) (*UpstreamInfo, error) {
	proto, ok := txt[TXTKeySubprotocol]
	if !ok || proto == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeySubprotocol)
	}

	info := &UpstreamInfo{
		Subprotocol: proto,
		Path:        txt[TXTKeyPath],
		ID:          txt[TXTKeyID],
	}
	if info.Path != "" && !strings.HasPrefix(info.Path, "/") {
		return nil, ErrInvalidPath
	}
	switch strings.ToLower(txt[TXTKeyTLS]) {
	case "1", "true", "yes":
		info.TLS = true
	}
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings. A bare key maps to "".
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}
