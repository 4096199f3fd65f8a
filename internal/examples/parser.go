package examples

import (
	"io"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"

	"idmask/internal/identity/models"
)

// Labels the example page renders as "<Label> : <span>value</span>".
var labelled = []struct {
	label string
	key   models.AttributeKey
}{
	{"Brand", models.KeyBrand},
	{"Model", models.KeyModel},
	{"Device", models.KeyDevice},
	{"ID", models.KeyBuildID},
	{"Manufacturer", models.KeyManufacturer},
	{"Product", models.KeyProduct},
	{"Fingerprint", models.KeyFingerprint},
	{"IMEI", models.KeyIMEI},
}

// Source is the random source for fallback values. *rand.Rand from
// math/rand/v2 satisfies it.
type Source interface {
	Int64N(n int64) int64
}

// scanLabels walks the document and returns the first span value following
// each known label. Labels whose span is empty are treated as absent.
func scanLabels(r io.Reader) map[string]string {
	found := make(map[string]string, len(labelled))
	z := html.NewTokenizer(r)

	var preceding strings.Builder
	pending := ""
	inSpan := false
	var value strings.Builder

	for {
		switch z.Next() {
		case html.ErrorToken:
			return found
		case html.TextToken:
			if inSpan {
				value.Write(z.Text())
				continue
			}
			preceding.Write(z.Text())
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) != "span" || inSpan {
				continue
			}
			pending = labelBefore(preceding.String())
			preceding.Reset()
			if pending != "" {
				inSpan = true
				value.Reset()
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if inSpan && string(name) == "span" {
				inSpan = false
				v := strings.TrimSpace(value.String())
				if _, seen := found[pending]; !seen && v != "" {
					found[pending] = v
				}
				pending = ""
				preceding.Reset()
			}
		}
	}
}

// labelBefore returns the known label that text ends with, as in
// "Brand :" or "Build ID:". The label must start at a word boundary.
func labelBefore(text string) string {
	text = strings.TrimRightFunc(text, unicode.IsSpace)
	text, ok := strings.CutSuffix(text, ":")
	if !ok {
		return ""
	}
	text = strings.TrimRightFunc(text, unicode.IsSpace)
	for _, l := range labelled {
		rest, ok := strings.CutSuffix(text, l.label)
		if !ok {
			continue
		}
		if rest == "" {
			return l.label
		}
		if r := []rune(rest); !isWord(r[len(r)-1]) {
			return l.label
		}
	}
	return ""
}

func isWord(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// buildSnapshot fills every attribute: labelled ones from found or their
// fallback, the rest always generated. missing reports which labels fell back.
func buildSnapshot(found map[string]string, src Source) (snap models.Snapshot, missing []models.AttributeKey) {
	prefix := strconv.FormatInt(between(src, 100000, 999999), 10)
	fallback := map[models.AttributeKey]string{
		models.KeyBrand:        "Generic",
		models.KeyModel:        "Generic Model",
		models.KeyDevice:       "generic_device",
		models.KeyBuildID:      "ID" + prefix,
		models.KeyManufacturer: "Generic",
		models.KeyProduct:      "generic_product",
		models.KeyFingerprint:  "generic/device/id:android/release/keys",
		models.KeyIMEI:         "86" + strconv.FormatInt(between(src, 1000000000, 9999999999), 10),
	}

	values := map[models.AttributeKey]string{
		models.KeyHardwareSerial: "HW" + strconv.FormatInt(between(src, 1000000, 9999999), 10),
		models.KeyPhoneNumber:    "+1" + strconv.FormatInt(between(src, 2000000000, 9999999999), 10),
		models.KeySimIMSI:        "31026" + strconv.FormatInt(between(src, 1000000000, 9999999999), 10),
		models.KeyBootloader:     "BL" + prefix,
		models.KeyBoard:          "board_" + prefix[:3],
		models.KeyDisplayID:      "ID." + prefix,
	}
	for _, l := range labelled {
		if v, ok := found[l.label]; ok {
			values[l.key] = v
			continue
		}
		values[l.key] = fallback[l.key]
		missing = append(missing, l.key)
	}

	snap, _ = models.NewSnapshot(values)
	return snap, missing
}

// between returns a value in [lo, hi].
func between(src Source, lo, hi int64) int64 {
	return lo + src.Int64N(hi-lo+1)
}
