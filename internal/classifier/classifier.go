// Package classifier decides whether an advertisement belongs to an MST01 or MST03 sensor.
//
// Classification is an ordered list of pure predicate rules over an Advertisement value.
// The first strong rule that matches makes the advertisement a target; weak rules are
// evaluated and reported but never match.
package classifier

import (
	"encoding/hex"
	"strings"

	"github.com/srg/mstlink/internal/device"
)

// Advertisement is the classifier's view of a discovery packet.
type Advertisement struct {
	ID               string
	Name             string
	RSSI             int
	ManufacturerData []byte
}

// FromDevice copies the fields the classifier needs out of a radio advertisement.
func FromDevice(adv device.Advertisement) Advertisement {
	return Advertisement{
		ID:               adv.Addr(),
		Name:             adv.LocalName(),
		RSSI:             adv.RSSI(),
		ManufacturerData: adv.ManufacturerData(),
	}
}

// Rule is a named predicate. A Weak rule never makes an advertisement a target.
type Rule struct {
	Name  string
	Match func(Advertisement) bool
	Weak  bool
}

// Result is the outcome of Classify. Rule names the strong rule that matched, if any.
// WeakHit names a weak rule that held for an advertisement no strong rule matched.
type Result struct {
	Kind    device.Kind
	Rule    string
	WeakHit string
}

// Target reports whether the advertisement is an MST sensor.
func (r Result) Target() bool {
	return r.Kind != device.KindNone
}

var (
	nameKeywords = []string{"MST01", "MST03", "Minew", "Recover"}

	addressPrefixes = []string{"C3:", "C3:00:00:", "C3:01:", "C4:00:"}
	addressInfix    = ":00:00:"

	// hex of "MINEW" and "MST0"
	manufacturerSignatures = []string{"4d494e4557", "4d535430"}

	mst03Tokens = []string{"MST03", "RECOVER 03", "C3:00:03:", "C3:00:00:1B:4F:A0"}
)

const (
	weakRSSIMin = -80
	weakRSSIMax = -30
)

// DefaultRules is the rule list in evaluation order.
var DefaultRules = []Rule{
	{Name: "name-keyword", Match: matchNameKeyword},
	{Name: "address-prefix", Match: matchAddressPrefix},
	{Name: "manufacturer-signature", Match: matchManufacturerSignature},
	{Name: "unnamed-plausible-rssi", Match: matchUnnamedPlausibleRSSI, Weak: true},
}

func matchNameKeyword(adv Advertisement) bool {
	for _, kw := range nameKeywords {
		if strings.Contains(adv.Name, kw) {
			return true
		}
	}
	return false
}

func matchAddressPrefix(adv Advertisement) bool {
	id := strings.ToUpper(adv.ID)
	for _, prefix := range addressPrefixes {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return strings.Contains(id, addressInfix)
}

func matchManufacturerSignature(adv Advertisement) bool {
	if len(adv.ManufacturerData) == 0 {
		return false
	}
	payload := hex.EncodeToString(adv.ManufacturerData)
	for _, sig := range manufacturerSignatures {
		if strings.Contains(payload, sig) {
			return true
		}
	}
	return false
}

func matchUnnamedPlausibleRSSI(adv Advertisement) bool {
	return adv.Name == "" && adv.RSSI > weakRSSIMin && adv.RSSI < weakRSSIMax
}

// Classify runs DefaultRules against adv.
func Classify(adv Advertisement) Result {
	return ClassifyWith(DefaultRules, adv)
}

// ClassifyWith runs rules in order; the first strong match wins.
func ClassifyWith(rules []Rule, adv Advertisement) Result {
	var weakHit string
	for _, rule := range rules {
		if !rule.Match(adv) {
			continue
		}
		if rule.Weak {
			if weakHit == "" {
				weakHit = rule.Name
			}
			continue
		}
		return Result{Kind: resolveKind(adv), Rule: rule.Name}
	}
	return Result{Kind: device.KindNone, WeakHit: weakHit}
}

// resolveKind tells MST03 from MST01 for an advertisement already known to be a target.
func resolveKind(adv Advertisement) device.Kind {
	name := strings.ToUpper(adv.Name)
	id := strings.ToUpper(adv.ID)
	for _, token := range mst03Tokens {
		if strings.Contains(name, token) || strings.Contains(id, token) {
			return device.KindMST03
		}
	}
	return device.KindMST01
}

// DisplayName is the name shown for a matched sensor: the reported name when it already
// carries a model tag, otherwise "<TYPE> - <name>" or "<TYPE> - <last 8 chars of id>".
func DisplayName(adv Advertisement, kind device.Kind) string {
	if strings.Contains(adv.Name, "MST01") || strings.Contains(adv.Name, "MST03") {
		return adv.Name
	}
	if adv.Name != "" {
		return kind.String() + " - " + adv.Name
	}
	id := adv.ID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return kind.String() + " - " + id
}
