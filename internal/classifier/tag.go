package classifier

import (
	"errors"
	"regexp"
	"strings"

	"github.com/srg/mstlink/internal/device"
)

// ErrNoAddress is returned by ParseTag when the code carries no MAC address.
var ErrNoAddress = errors.New("tag carries no device address")

var macPattern = regexp.MustCompile(`(?i)\b([0-9A-F]{2}[:-]){5}[0-9A-F]{2}\b`)

// Tag is the content of a printed device label, e.g. "MINEW:MST01:C3:00:00:12:34:56".
type Tag struct {
	Kind    device.Kind `json:"type"`
	Address string      `json:"address"`
}

// ParseTag decodes a device label or any text holding a model token and a MAC address.
// The model defaults to MST01; the address is returned upper-case with ':' separators.
func ParseTag(code string) (Tag, error) {
	code = strings.TrimSpace(code)

	kind := device.KindMST01
	if strings.Contains(strings.ToUpper(code), "MST03") {
		kind = device.KindMST03
	}

	mac := macPattern.FindString(code)
	if mac == "" {
		return Tag{Kind: kind}, ErrNoAddress
	}
	return Tag{
		Kind:    kind,
		Address: strings.ToUpper(strings.ReplaceAll(mac, "-", ":")),
	}, nil
}
