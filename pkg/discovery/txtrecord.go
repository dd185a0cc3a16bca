package discovery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wishbone-tools/etherbone-go/pkg/wire"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeDeviceTXT creates the TXT records of an advertised device.
func EncodeDeviceTXT(info *DeviceInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	txt[TXTKeyWidths] = fmt.Sprintf("%02x", info.Widths)

	if info.Endian != "" {
		txt[TXTKeyEndian] = info.Endian
	}
	if info.HasSDB {
		txt[TXTKeySDB] = strconv.FormatUint(info.SDBRoot, 16)
	}
	if info.Name != "" {
		txt[TXTKeyName] = info.Name
	}
	return txt
}

// DecodeDeviceTXT parses the TXT records of an advertised device.
func DecodeDeviceTXT(txt TXTRecordMap) (*DeviceInfo, error) {
	info := &DeviceInfo{}

	w, ok := txt[TXTKeyWidths]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyWidths)
	}
	n, err := strconv.ParseUint(w, 16, 8)
	if err != nil || uint8(n)&wire.AddrMask == 0 || uint8(n)&wire.DataMask == 0 {
		return nil, fmt.Errorf("%w: widths %q", ErrInvalidTXTRecord, w)
	}
	info.Widths = uint8(n)

	switch e := strings.ToLower(txt[TXTKeyEndian]); e {
	case "", "big", "little":
		info.Endian = e
	default:
		return nil, fmt.Errorf("%w: endian %q", ErrInvalidTXTRecord, e)
	}

	if s, ok := txt[TXTKeySDB]; ok {
		root, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: sdb %q", ErrInvalidTXTRecord, s)
		}
		info.SDBRoot, info.HasSDB = root, true
	}

	info.Name = txt[TXTKeyName]
	return info, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to a slice of "key=value" strings.
// This format is commonly used by mDNS libraries.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return ErrEmptyInstanceName
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
