// Package settings holds the sitewide UI text for the read confirmation widget.
package settings

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

const (
	KeyInstructions         = "instructions"
	KeyButtonText           = "button_text"
	KeyConfirmedMessageText = "confirmed_message_text"
	KeyConfirmedText        = "confirmed_text"
	KeyNoneConfirmedText    = "none_confirmed_text"
	KeyUnconfirmedText      = "unconfirmed_text"

	// KeyNoneUnconfirmedText has a default but is not editable.
	KeyNoneUnconfirmedText = "none_unconfirmed_text"
)

// Keys lists the editable keys in form order.
func Keys() []string {
	return []string{
		KeyInstructions,
		KeyButtonText,
		KeyConfirmedMessageText,
		KeyConfirmedText,
		KeyNoneConfirmedText,
		KeyUnconfirmedText,
	}
}

// Labels are the settings form field labels.
var Labels = map[string]string{
	KeyInstructions:         "Instruction text",
	KeyButtonText:           "Button text",
	KeyConfirmedMessageText: "Confirmed message text",
	KeyConfirmedText:        "Confirmed heading text",
	KeyNoneConfirmedText:    "None confirmed text",
	KeyUnconfirmedText:      "Unconfirmed heading text",
}

// Text is a key to string mapping.
type Text map[string]string

func (t Text) Get(key string) string {
	if t == nil {
		return ""
	}
	return t[key]
}

// Defaults builds the built-in text for an item type label such as "post".
func Defaults(typeLabel string) Text {
	return Text{
		KeyInstructions: fmt.Sprintf(
			"Please confirm that you have read and understood the content of this %s and any material that has been linked to from it.",
			typeLabel,
		),
		KeyButtonText:           fmt.Sprintf("I confirm that I have read this %s.", typeLabel),
		KeyConfirmedMessageText: "You have confirmed you have read this.",
		KeyConfirmedText:        "The following users have confirmed.",
		KeyNoneConfirmedText:    "No users have confirmed.",
		KeyUnconfirmedText:      "The following users have not confirmed.",
		KeyNoneUnconfirmedText:  "Great! Everyone has confirmed.",
	}
}

// Raw returns only stored values for the editable keys, missing keys as "".
func Raw(stored Text) Text {
	out := make(Text, len(Keys()))
	for _, key := range Keys() {
		out[key] = stored.Get(key)
	}
	return out
}

// Effective overlays non-empty stored values on the defaults.
func Effective(stored Text, typeLabel string) Text {
	out := Defaults(typeLabel)
	for key, value := range stored {
		if value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// Sanitize keeps the editable keys present in dirty and strips each to plain text.
func Sanitize(dirty map[string]string) Text {
	clean := make(Text, len(dirty))
	for _, key := range Keys() {
		value, ok := dirty[key]
		if !ok {
			continue
		}
		clean[key] = PlainText(value)
	}
	return clean
}

var percentOctet = regexp.MustCompile(`%[a-fA-F0-9]{2}`)

// PlainText removes markup, script and style bodies, percent-encoded octets and
// invalid UTF-8, then collapses whitespace runs into single spaces. Character
// references are kept as written. The passes repeat until the text is stable, so
// PlainText(PlainText(x)) == PlainText(x).
func PlainText(raw string) string {
	text := strings.ToValidUTF8(raw, "")
	for {
		next := collapseSpace(stripPercentOctets(stripMarkup(text)))
		if next == text {
			return text
		}
		text = next
	}
}

func stripMarkup(raw string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(raw))
	skipDepth := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.StartTagToken:
			if isRawTextTag(z) {
				skipDepth++
			}
		case html.EndTagToken:
			if isRawTextTag(z) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Raw())
			}
		}
	}
	return b.String()
}

func stripPercentOctets(text string) string {
	for percentOctet.MatchString(text) {
		text = percentOctet.ReplaceAllString(text, "")
	}
	return text
}

func collapseSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func isRawTextTag(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style":
		return true
	default:
		return false
	}
}
