package tts

import (
	"encoding/xml"
	"fmt"
	"strings"
)

const (
	ssmlVersion   = "1.0"
	defaultLocale = "en-US"
)

type ssmlVoice struct {
	XMLName xml.Name `xml:"voice"`
	Name    string   `xml:"name,attr"`
	Text    string   `xml:",chardata"`
}

type ssmlSpeak struct {
	XMLName xml.Name  `xml:"http://www.w3.org/2001/10/synthesis speak"`
	Version string    `xml:"version,attr"`
	Lang    string    `xml:"http://www.w3.org/XML/1998/namespace lang,attr"`
	Voice   ssmlVoice `xml:"voice"`
}

// VoiceLocale extracts the locale prefix of a neural voice name,
// e.g. "pt-BR" from "pt-BR-FranciscaNeural".
func VoiceLocale(voiceName string) string {
	parts := strings.Split(voiceName, "-")
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
		return defaultLocale
	}

	return parts[0] + "-" + parts[1]
}

// BuildSSML wraps plain text in a speak/voice document. Text is escaped,
// so markup in the input is spoken literally.
func BuildSSML(text, voiceName string) ([]byte, error) {
	doc := ssmlSpeak{
		Version: ssmlVersion,
		Lang:    VoiceLocale(voiceName),
		Voice: ssmlVoice{
			Name: voiceName,
			Text: text,
		},
	}

	out, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SSML: %w", err)
	}

	return out, nil
}
