package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/term"

	"github.com/coderoom/coderoom/protocol"
	"github.com/coderoom/coderoom/room"
)

type joinCommandType int

const (
	joinAppend joinCommandType = iota
	joinLanguage
	joinRun
	joinAccept
	joinDismiss
	joinShow
	joinQuit
	joinUnknown
)

type joinCommand struct {
	commandType joinCommandType
	arg         string
}

// lines starting with `:` are commands. `::` escapes a text line that starts with `:`.
func parseJoinLine(line string) joinCommand {
	if !strings.HasPrefix(line, ":") {
		return joinCommand{commandType: joinAppend, arg: line}
	}
	if strings.HasPrefix(line, "::") {
		return joinCommand{commandType: joinAppend, arg: line[1:]}
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return joinCommand{commandType: joinUnknown, arg: line}
	}
	arg := strings.Join(fields[1:], " ")
	switch fields[0] {
	case "lang", "language":
		return joinCommand{commandType: joinLanguage, arg: arg}
	case "run":
		return joinCommand{commandType: joinRun}
	case "accept":
		return joinCommand{commandType: joinAccept}
	case "dismiss":
		return joinCommand{commandType: joinDismiss}
	case "show":
		return joinCommand{commandType: joinShow}
	case "quit", "q":
		return joinCommand{commandType: joinQuit}
	default:
		return joinCommand{commandType: joinUnknown, arg: line}
	}
}

// joiner is a line oriented editor for one room session.
type joiner struct {
	session *room.RoomSession
	in      io.Reader
	out     *log.Logger
	prompt  bool

	stateLock sync.Mutex
	last      *room.SessionState
	// text of the latest local edit, used to tell peer updates apart
	localText string
	accepting bool
}

func newJoiner(session *room.RoomSession, in io.Reader, out *log.Logger) *joiner {
	prompt := false
	if f, ok := in.(*os.File); ok {
		prompt = term.IsTerminal(int(f.Fd()))
	}
	return &joiner{
		session: session,
		in:      in,
		out:     out,
		prompt:  prompt,
	}
}

// Run reads commands until `:quit`, end of input, or `ctx` is done.
func (self *joiner) Run(ctx context.Context) {
	removeStateCallback := self.session.AddStateCallback(self.report)
	defer removeStateCallback()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(self.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		self.showPrompt()
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				self.awaitRun(ctx)
				return
			}
			if !self.handle(parseJoinLine(line)) {
				return
			}
		}
	}
}

// at the end of input, waits for a run in flight so its output is reported
func (self *joiner) awaitRun(ctx context.Context) {
	done := make(chan struct{})
	var doneOnce sync.Once
	removeStateCallback := self.session.AddStateCallback(func(state room.SessionState) {
		if !state.Running {
			doneOnce.Do(func() {
				close(done)
			})
		}
	})
	defer removeStateCallback()

	if !self.session.State().Running {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (self *joiner) showPrompt() {
	if self.prompt {
		fmt.Fprint(self.out.Writer(), "> ")
	}
}

// returns false to quit
func (self *joiner) handle(command joinCommand) bool {
	switch command.commandType {
	case joinAppend:
		text := self.session.State().Document.Text + command.arg + "\n"
		self.stateLock.Lock()
		self.localText = text
		self.stateLock.Unlock()
		self.session.Edit(text, utf8.RuneCountInString(text))
	case joinLanguage:
		if command.arg == "" {
			self.out.Printf("Language: %s", self.session.State().Language)
			return true
		}
		language, err := protocol.ParseLanguage(command.arg)
		if err == nil {
			err = self.session.ChangeLanguage(language)
		}
		if err != nil {
			self.out.Printf("%s", err)
		} else {
			self.out.Printf("Language: %s (%s)", language, language.EditorId())
		}
	case joinRun:
		if !self.session.Run() {
			self.out.Printf("Already running.")
		}
	case joinAccept:
		self.stateLock.Lock()
		self.accepting = true
		self.stateLock.Unlock()
		accepted := self.session.AcceptSuggestion()
		self.stateLock.Lock()
		self.accepting = false
		self.stateLock.Unlock()
		if !accepted {
			self.out.Printf("No suggestion.")
		}
	case joinDismiss:
		self.session.DismissSuggestion()
	case joinShow:
		self.show(self.session.State())
	case joinQuit:
		return false
	default:
		self.out.Printf("Unknown command %s. Use :lang <language>, :run, :accept, :dismiss, :show, :quit.", command.arg)
	}
	return true
}

func (self *joiner) show(state room.SessionState) {
	self.out.Printf(
		"[%s] %s cursor %d",
		state.Status.Label(),
		state.Language,
		state.Document.Cursor,
	)
	self.out.Printf("%s", state.Document.Text)
	if state.SuggestionState == room.SuggestionHolding {
		self.out.Printf("Suggestion: %q", state.Suggestion)
	}
	if state.RunOutput != "" {
		self.out.Printf("Output:\n%s", state.RunOutput)
	}
}

// called on the session loop
func (self *joiner) report(state room.SessionState) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	last := self.last
	self.last = &state
	if last == nil {
		last = &room.SessionState{Status: room.StatusConnecting}
	}

	if state.Status != last.Status {
		self.out.Printf("Status: %s", state.Status.Label())
	}
	if state.LoadError != "" && state.LoadError != last.LoadError {
		self.out.Printf("%s", state.LoadError)
	}
	if state.Document.Text != last.Document.Text {
		if self.accepting {
			self.localText = state.Document.Text
		} else if state.Document.Text != self.localText {
			self.out.Printf("Updated by a peer (%d characters). Use :show to see it.", state.Document.Len())
		}
	}
	if state.LoadingSuggestion() && !last.LoadingSuggestion() {
		self.out.Printf("Getting AI suggestion…")
	}
	if state.SuggestionState == room.SuggestionHolding && state.Suggestion != last.Suggestion {
		self.out.Printf("Suggestion: %q. Use :accept or :dismiss.", state.Suggestion)
	}
	if state.RunOutput != last.RunOutput && state.RunOutput != "" {
		self.out.Printf("%s", state.RunOutput)
	}
}
