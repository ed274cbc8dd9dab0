// Wire types exchanged with the room backend.
// The directory, suggestion and execution services speak JSON over http.
// The realtime channel carries the raw document text and has no envelope.
package protocol

// `GET /rooms` item
type RoomSummary struct {
	RoomId string `json:"roomId"`
}

// `GET /rooms/{roomId}` and `POST /rooms`
type Room struct {
	RoomId string `json:"roomId"`
	// the server copy of the document. `POST /rooms` may omit it.
	Code string `json:"code,omitempty"`
}

// `POST /autocomplete`
type AutocompleteArgs struct {
	Code           string   `json:"code"`
	CursorPosition int      `json:"cursorPosition"`
	Language       Language `json:"language"`
}

type AutocompleteResult struct {
	// may be empty, meaning nothing to suggest
	Suggestion string `json:"suggestion"`
}

// `POST /run`
type RunArgs struct {
	Language Language `json:"language"`
	Code     string   `json:"code"`
}

type RunResult struct {
	Stdout *string `json:"stdout,omitempty"`
	Stderr *string `json:"stderr,omitempty"`
}

// Output concatenates stdout then stderr. Unset streams count as empty.
func (self *RunResult) Output() string {
	out := ""
	if self.Stdout != nil {
		out += *self.Stdout
	}
	if self.Stderr != nil {
		out += *self.Stderr
	}
	return out
}
