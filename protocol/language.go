package protocol

import (
	"encoding/json"
	"fmt"
)

// Language is the closed set of languages both the suggestion and execution services accept.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJavascript Language = "javascript"
	LanguageCpp        Language = "c++"
	LanguageC          Language = "c"
	LanguageJava       Language = "java"
)

const DefaultLanguage = LanguagePython

var Languages = []Language{
	LanguagePython,
	LanguageJavascript,
	LanguageCpp,
	LanguageC,
	LanguageJava,
}

func ParseLanguage(s string) (Language, error) {
	for _, language := range Languages {
		if string(language) == s {
			return language, nil
		}
	}
	return "", fmt.Errorf("unsupported language: %q", s)
}

func (self Language) Valid() bool {
	_, err := ParseLanguage(string(self))
	return err == nil
}

// EditorId is the syntax id an editor widget uses for the language.
func (self Language) EditorId() string {
	switch self {
	case LanguageCpp:
		return "cpp"
	case LanguagePython, LanguageJavascript, LanguageC, LanguageJava:
		return string(self)
	default:
		return "plaintext"
	}
}

func (self Language) String() string {
	return string(self)
}

func (self *Language) UnmarshalJSON(src []byte) error {
	var s string
	if err := json.Unmarshal(src, &s); err != nil {
		return err
	}
	language, err := ParseLanguage(s)
	if err != nil {
		return err
	}
	*self = language
	return nil
}
