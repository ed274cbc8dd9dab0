package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/docopt/docopt-go"

	"github.com/coderoom/coderoom/protocol"
	"github.com/coderoom/coderoom/room"
)

const RoomCtlVersion = "0.0.1"

const defaultRequestTimeout = 30 * time.Second

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := fmt.Sprintf(
		`Code room control.

The default urls are:
    api_url: %s
    ws_url: %s

Usage:
    roomctl list-rooms [--api_url=<api_url>] [-v]
    roomctl create-room [--api_url=<api_url>] [-v]
    roomctl join <room_id> [--api_url=<api_url>] [--ws_url=<ws_url>]
        [--language=<language>]
        [--debounce=<debounce>]
        [-v]
    roomctl run --language=<language> <file> [--api_url=<api_url>] [-v]
    roomctl suggest --language=<language> <file> [--cursor=<cursor>] [--api_url=<api_url>] [-v]

Options:
    -h --help                  Show this screen.
    --version                  Show version.
    --api_url=<api_url>
    --ws_url=<ws_url>
    --language=<language>      One of python, javascript, c++, c, java.
    --debounce=<debounce>      Idle time before asking for a suggestion [default: 600ms].
    --cursor=<cursor>          Cursor offset in characters. Defaults to the end of the file.
    -v --verbose               Verbose logging to stderr.`,
		room.DefaultApiUrl,
		room.DefaultWsUrl,
	)

	opts, err := docopt.ParseArgs(usage, os.Args[1:], RoomCtlVersion)
	if err != nil {
		panic(err)
	}

	initGlog(opts)

	if listRooms_, _ := opts.Bool("list-rooms"); listRooms_ {
		listRooms(opts)
	} else if createRoom_, _ := opts.Bool("create-room"); createRoom_ {
		createRoom(opts)
	} else if join_, _ := opts.Bool("join"); join_ {
		join(opts)
	} else if run_, _ := opts.Bool("run"); run_ {
		run(opts)
	} else if suggest_, _ := opts.Bool("suggest"); suggest_ {
		suggest(opts)
	}
}

func initGlog(opts docopt.Opts) {
	flag.Set("logtostderr", "true")
	if verbose, _ := opts.Bool("--verbose"); verbose {
		flag.Set("stderrthreshold", "INFO")
		flag.Set("v", "2")
	} else {
		flag.Set("stderrthreshold", "ERROR")
	}
}

func apiUrl(opts docopt.Opts) string {
	if apiUrl, err := opts.String("--api_url"); err == nil {
		return apiUrl
	}
	return room.DefaultApiUrl
}

func wsUrl(opts docopt.Opts) string {
	if wsUrl, err := opts.String("--ws_url"); err == nil {
		return wsUrl
	}
	return room.DefaultWsUrl
}

func language(opts docopt.Opts) protocol.Language {
	languageStr, err := opts.String("--language")
	if err != nil {
		return protocol.DefaultLanguage
	}
	language, err := protocol.ParseLanguage(languageStr)
	if err != nil {
		Err.Fatalf("%s", err)
	}
	return language
}

// waits for a blocking api callback, giving up after the request timeout
func await[R any](c chan room.ApiCallbackResult[R]) (R, error) {
	select {
	case result := <-c:
		return result.Result, result.Error
	case <-time.After(defaultRequestTimeout):
		var empty R
		return empty, fmt.Errorf("Timeout after %s.", defaultRequestTimeout)
	}
}

func listRooms(opts docopt.Opts) {
	api := room.NewRoomApi(apiUrl(opts))
	defer api.Close()

	callback, c := room.NewBlockingApiCallback[[]*protocol.RoomSummary]()
	api.ListRooms(callback)
	summaries, err := await(c)
	if err != nil {
		Err.Printf("%s", err)
		Out.Printf("Could not load rooms. Please try again.")
		os.Exit(1)
	}

	if len(summaries) == 0 {
		Out.Printf("No rooms yet.")
		return
	}
	for _, summary := range summaries {
		Out.Printf("%s", summary.RoomId)
	}
}

func createRoom(opts docopt.Opts) {
	api := room.NewRoomApi(apiUrl(opts))
	defer api.Close()

	callback, c := room.NewBlockingApiCallback[*protocol.Room]()
	api.CreateRoom(callback)
	created, err := await(c)
	if err != nil {
		Err.Printf("%s", err)
		Out.Printf("Failed to create room.")
		os.Exit(1)
	}
	Out.Printf("%s", created.RoomId)
}

func readCode(opts docopt.Opts) string {
	path, _ := opts.String("<file>")
	code, err := os.ReadFile(path)
	if err != nil {
		Err.Fatalf("Could not read %s (%s).", path, err)
	}
	return string(code)
}

func run(opts docopt.Opts) {
	api := room.NewRoomApi(apiUrl(opts))
	defer api.Close()

	args := &protocol.RunArgs{
		Language: language(opts),
		Code:     readCode(opts),
	}

	callback, c := room.NewBlockingApiCallback[*protocol.RunResult]()
	api.Run(args, callback)
	result, err := await(c)
	if err != nil {
		Err.Printf("%s", err)
		Out.Printf("%s", room.RunError)
		os.Exit(1)
	}
	output := result.Output()
	if output == "" {
		output = room.RunNoOutput
	}
	Out.Print(output)
}

func suggest(opts docopt.Opts) {
	api := room.NewRoomApi(apiUrl(opts))
	defer api.Close()

	code := readCode(opts)
	cursor := utf8.RuneCountInString(code)
	if cursor_, err := opts.Int("--cursor"); err == nil {
		cursor = room.NewDocument(code, cursor_).Cursor
	}

	args := &protocol.AutocompleteArgs{
		Code:           code,
		CursorPosition: cursor,
		Language:       language(opts),
	}

	callback, c := room.NewBlockingApiCallback[*protocol.AutocompleteResult]()
	api.Autocomplete(args, callback)
	result, err := await(c)
	if err != nil {
		Err.Printf("%s", err)
		os.Exit(1)
	}
	if result.Suggestion == "" {
		Out.Printf("No suggestion.")
		return
	}
	Out.Print(result.Suggestion)
}

func join(opts docopt.Opts) {
	roomId, _ := opts.String("<room_id>")

	settings := room.DefaultRoomSessionSettings()
	settings.Language = language(opts)
	if debounceStr, err := opts.String("--debounce"); err == nil {
		debounce, err := time.ParseDuration(debounceStr)
		if err != nil {
			Err.Fatalf("Invalid debounce (%s).", err)
		}
		settings.SuggestionSettings.DebounceTimeout = debounce
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := room.NewRoomApiWithContext(ctx, apiUrl(opts))
	defer api.Close()

	session := room.NewRoomSession(
		ctx,
		roomId,
		room.NewBuffer(),
		room.NewApiServices(api),
		room.NewWebsocketChannelFactory(wsUrl(opts), room.DefaultChannelSettings()),
		settings,
	)
	defer session.Close()

	Out.Printf("Room %s", roomId)

	joiner := newJoiner(session, os.Stdin, Out)
	joiner.Run(ctx)
}
