package protocol

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestParseLanguage(t *testing.T) {
	for _, language := range Languages {
		parsed, err := ParseLanguage(string(language))
		assert.Equal(t, err, nil)
		assert.Equal(t, parsed, language)
		assert.Equal(t, parsed.Valid(), true)
	}

	_, err := ParseLanguage("cpp")
	assert.NotEqual(t, err, nil)
	_, err = ParseLanguage("Python")
	assert.NotEqual(t, err, nil)
	_, err = ParseLanguage("")
	assert.NotEqual(t, err, nil)

	assert.Equal(t, Language("rust").Valid(), false)
}

func TestLanguageEditorId(t *testing.T) {
	assert.Equal(t, LanguageCpp.EditorId(), "cpp")
	assert.Equal(t, LanguagePython.EditorId(), "python")
	assert.Equal(t, LanguageJava.EditorId(), "java")
	assert.Equal(t, Language("cobol").EditorId(), "plaintext")
}

func TestLanguageJson(t *testing.T) {
	args := &RunArgs{
		Language: LanguageCpp,
		Code:     "int main() {}",
	}
	argsJson, err := json.Marshal(args)
	assert.Equal(t, err, nil)
	assert.Equal(t, string(argsJson), `{"language":"c++","code":"int main() {}"}`)

	decoded := &RunArgs{}
	err = json.Unmarshal(argsJson, decoded)
	assert.Equal(t, err, nil)
	assert.Equal(t, decoded.Language, LanguageCpp)

	err = json.Unmarshal([]byte(`{"language":"ruby","code":""}`), decoded)
	assert.NotEqual(t, err, nil)
}

func TestRunResultOutput(t *testing.T) {
	stdout := "hello\n"
	stderr := "warning\n"
	empty := ""

	assert.Equal(t, (&RunResult{Stdout: &stdout, Stderr: &stderr}).Output(), "hello\nwarning\n")
	assert.Equal(t, (&RunResult{Stderr: &stderr}).Output(), "warning\n")
	assert.Equal(t, (&RunResult{Stdout: &empty, Stderr: &empty}).Output(), "")
	assert.Equal(t, (&RunResult{}).Output(), "")

	result := &RunResult{}
	err := json.Unmarshal([]byte(`{"stdout":"3\n"}`), result)
	assert.Equal(t, err, nil)
	assert.Equal(t, result.Output(), "3\n")
	assert.Equal(t, result.Stderr, nil)
}
